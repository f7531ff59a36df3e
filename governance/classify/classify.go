// Package classify maps free text onto a bounded set of category labels
// and detects personal data.
//
// Results carry only labels unless the caller opts into PII extraction,
// so a default Result never contains text from the input.
package classify

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Category is a bounded classification label
type Category string

const (
	SlipTripFall   Category = "slip_trip_fall"
	Vehicle        Category = "vehicle"
	Fire           Category = "fire"
	Chemical       Category = "chemical"
	Equipment      Category = "equipment"
	Security       Category = "security"
	Medical        Category = "medical"
	Environmental  Category = "environmental"
	StaffConduct   Category = "staff_conduct"
	ServiceQuality Category = "service_quality"
	Billing        Category = "billing"
	Other          Category = "other"
)

// Categories returns every label in rank order. Ties between scores are
// broken by this order.
func Categories() []Category {
	return []Category{
		SlipTripFall, Vehicle, Fire, Chemical, Equipment, Security,
		Medical, Environmental, StaffConduct, ServiceQuality, Billing, Other,
	}
}

// keywords are matched against whole words of the folded text.
// Multi-word entries match consecutive words.
var keywords = map[Category][]string{
	SlipTripFall:   {"slip", "slipped", "slippery", "trip", "tripped", "fall", "fell", "wet floor", "stairs", "ladder"},
	Vehicle:        {"vehicle", "car", "van", "truck", "lorry", "bus", "forklift", "collision", "crash", "reversing", "driver"},
	Fire:           {"fire", "smoke", "flame", "flames", "burning", "alarm", "extinguisher", "arson"},
	Chemical:       {"chemical", "spill", "leak", "fumes", "toxic", "acid", "solvent", "hazardous substance"},
	Equipment:      {"equipment", "machine", "machinery", "tool", "malfunction", "faulty", "broken", "guard", "conveyor"},
	Security:       {"theft", "stolen", "intruder", "break in", "trespass", "assault", "vandalism", "cctv"},
	Medical:        {"injury", "injured", "first aid", "ambulance", "hospital", "bleeding", "fracture", "unconscious"},
	Environmental:  {"pollution", "emission", "waste", "noise", "flood", "contamination", "dust"},
	StaffConduct:   {"rude", "staff", "employee", "behaviour", "behavior", "harassment", "unprofessional", "attitude"},
	ServiceQuality: {"delay", "delayed", "late", "cancelled", "canceled", "waiting", "poor service", "no response", "ignored"},
	Billing:        {"bill", "billing", "invoice", "charge", "charged", "overcharged", "refund", "payment", "fee"},
}

// Options control what a Result may contain
type Options struct {
	// ExtractPII returns verbatim PII findings. Off by default.
	ExtractPII bool
}

// Result of classifying one text
type Result struct {
	Primary     Category         `json:"primary"`
	Categories  []Category       `json:"categories"`
	Scores      map[Category]int `json:"scores"`
	ContainsPII bool             `json:"contains_pii"`
	PIIKinds    []PIIKind        `json:"pii_kinds"`
	PII         []PIIFinding     `json:"pii,omitempty"`
}

// Classifier is stateless and safe for concurrent use
type Classifier struct {
	phrases map[Category][][]string
}

// New creates a Classifier over the built-in keyword table
func New() *Classifier {
	phrases := make(map[Category][][]string, len(keywords))
	for cat, words := range keywords {
		for _, w := range words {
			phrases[cat] = append(phrases[cat], tokenize(w))
		}
	}
	return &Classifier{phrases: phrases}
}

// Classify scores text against every category. The primary category is
// the highest scoring one; text matching nothing is Other.
func (c *Classifier) Classify(text string, opts Options) Result {
	tokens := tokenize(text)

	scores := make(map[Category]int)
	for _, cat := range Categories() {
		n := 0
		for _, phrase := range c.phrases[cat] {
			n += countPhrase(tokens, phrase)
		}
		if n > 0 {
			scores[cat] = n
		}
	}

	var matched []Category
	for _, cat := range Categories() {
		if scores[cat] > 0 {
			matched = append(matched, cat)
		}
	}
	rank := rankOf()
	sort.SliceStable(matched, func(i, j int) bool {
		if scores[matched[i]] != scores[matched[j]] {
			return scores[matched[i]] > scores[matched[j]]
		}
		return rank[matched[i]] < rank[matched[j]]
	})
	if len(matched) == 0 {
		matched = []Category{Other}
	}

	findings := DetectPII(text)
	res := Result{
		Primary:     matched[0],
		Categories:  matched,
		Scores:      scores,
		ContainsPII: len(findings) > 0,
		PIIKinds:    kindsOf(findings),
	}
	if opts.ExtractPII && len(findings) > 0 {
		res.PII = findings
	}
	return res
}

func rankOf() map[Category]int {
	all := Categories()
	rank := make(map[Category]int, len(all))
	for i, c := range all {
		rank[c] = i
	}
	return rank
}

// tokenize folds text (NFKC, Unicode case folding) and splits it into
// letter/digit words
func tokenize(s string) []string {
	s = cases.Fold().String(norm.NFKC.String(s))
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func countPhrase(tokens, phrase []string) int {
	if len(phrase) == 0 {
		return 0
	}
	n := 0
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		match := true
		for j, w := range phrase {
			if tokens[i+j] != w {
				match = false
				break
			}
		}
		if match {
			n++
		}
	}
	return n
}
