package classify

import (
	"regexp"
	"sort"
)

// PIIKind is a bounded label for a kind of personal data
type PIIKind string

const (
	PIIEmail      PIIKind = "email"
	PIIPhone      PIIKind = "phone"
	PIINationalID PIIKind = "national_id"
	PIICardNumber PIIKind = "card_number"
)

// PIIKinds returns every PII label in detection order
func PIIKinds() []PIIKind {
	return []PIIKind{PIIEmail, PIICardNumber, PIINationalID, PIIPhone}
}

// PIIFinding is one verbatim match. Offset is a byte offset into the text.
type PIIFinding struct {
	Kind   PIIKind `json:"kind"`
	Value  string  `json:"value"`
	Offset int     `json:"offset"`
}

type detector struct {
	kind     PIIKind
	patterns []*regexp.Regexp
	accept   func(match string) bool
}

// Detectors run in order; a later match overlapping an earlier one is dropped,
// so a card number is never also reported as a phone number.
var detectors = []detector{
	{
		kind:     PIIEmail,
		patterns: []*regexp.Regexp{regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)},
	},
	{
		kind:     PIICardNumber,
		patterns: []*regexp.Regexp{regexp.MustCompile(`\b\d(?:[ -]?\d){12,18}\b`)},
		accept:   luhn,
	},
	{
		kind: PIINationalID,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),                                   // US SSN
			regexp.MustCompile(`\b[A-CEGHJ-PR-TW-Z]{2} ?\d{2} ?\d{2} ?\d{2} ?[A-D]\b`), // UK NINO
		},
	},
	{
		kind:     PIIPhone,
		patterns: []*regexp.Regexp{regexp.MustCompile(`(?:\+\d{1,3}[ .\-]?)?(?:\(\d{1,5}\)[ .\-]?)?\d[\d .\-]{6,}\d`)},
		accept: func(m string) bool {
			n := digitCount(m)
			return n >= 9 && n <= 15
		},
	},
}

// DetectPII returns every PII finding in text, ordered by offset
func DetectPII(text string) []PIIFinding {
	type span struct{ start, end int }
	var taken []span
	overlaps := func(s, e int) bool {
		for _, t := range taken {
			if s < t.end && t.start < e {
				return true
			}
		}
		return false
	}

	var out []PIIFinding
	for _, d := range detectors {
		for _, re := range d.patterns {
			for _, loc := range re.FindAllStringIndex(text, -1) {
				m := text[loc[0]:loc[1]]
				if d.accept != nil && !d.accept(m) {
					continue
				}
				if overlaps(loc[0], loc[1]) {
					continue
				}
				taken = append(taken, span{loc[0], loc[1]})
				out = append(out, PIIFinding{Kind: d.kind, Value: m, Offset: loc[0]})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// kindsOf returns the distinct kinds present, in PIIKinds order
func kindsOf(findings []PIIFinding) []PIIKind {
	seen := make(map[PIIKind]bool, len(findings))
	for _, f := range findings {
		seen[f.Kind] = true
	}
	kinds := []PIIKind{}
	for _, k := range PIIKinds() {
		if seen[k] {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// luhn validates a card number checksum, ignoring separators
func luhn(s string) bool {
	var digits []int
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	if len(digits) < 13 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
