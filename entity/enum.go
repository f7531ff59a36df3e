package entity

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// EnumSet is a closed vocabulary with a fixed synonym table
type EnumSet struct {
	Name     string
	Values   []string
	Synonyms map[string]string
}

// Severity levels, lowest first
var Severity = EnumSet{
	Name:   "severity",
	Values: []string{"low", "medium", "high", "critical"},
	Synonyms: map[string]string{
		"minor":    "low",
		"sev4":     "low",
		"moderate": "medium",
		"med":      "medium",
		"sev3":     "medium",
		"major":    "high",
		"sev2":     "high",
		"severe":   "critical",
		"urgent":   "critical",
		"sev1":     "critical",
	},
}

// Status of an incident, complaint or collision
var Status = EnumSet{
	Name:   "status",
	Values: []string{"open", "investigating", "closed"},
	Synonyms: map[string]string{
		"new":                 "open",
		"reported":            "open",
		"in_progress":         "investigating",
		"under_investigation": "investigating",
		"under_review":        "investigating",
		"resolved":            "closed",
		"done":                "closed",
	},
}

// ComplaintCategory classifies complaints at intake
var ComplaintCategory = EnumSet{
	Name:   "category",
	Values: []string{"service", "safety", "staff", "billing", "other"},
	Synonyms: map[string]string{
		"customer_service": "service",
		"service_quality":  "service",
		"staff_conduct":    "staff",
		"employee":         "staff",
		"payment":          "billing",
		"fees":             "billing",
		"misc":             "other",
	},
}

// Channel a complaint was received through
var Channel = EnumSet{
	Name:   "channel",
	Values: []string{"email", "phone", "web", "letter", "in_person"},
	Synonyms: map[string]string{
		"e_mail":    "email",
		"telephone": "phone",
		"call":      "phone",
		"online":    "web",
		"website":   "web",
		"web_form":  "web",
		"post":      "letter",
		"mail":      "letter",
		"walk_in":   "in_person",
	},
}

// AnalysisStatus is the lifecycle of a root-cause analysis
var AnalysisStatus = EnumSet{
	Name:   "status",
	Values: []string{"draft", "in_review", "approved", "rejected"},
	Synonyms: map[string]string{
		"review":     "in_review",
		"submitted":  "in_review",
		"accepted":   "approved",
		"signed_off": "approved",
	},
}

// NormalizeToken canonicalises free text for vocabulary lookup:
// NFKC, Unicode case folding, trimmed, with spaces and hyphens as underscores.
func NormalizeToken(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return '_'
		}
		return r
	}, s)
}

// Normalize resolves raw to a canonical value of the set
func (e EnumSet) Normalize(raw string) (string, bool) {
	token := NormalizeToken(raw)
	if token == "" {
		return "", false
	}
	for _, v := range e.Values {
		if token == v {
			return v, true
		}
	}
	if v, ok := e.Synonyms[token]; ok {
		return v, true
	}
	return "", false
}

// Contains reports whether v is already a canonical value
func (e EnumSet) Contains(v string) bool {
	for _, known := range e.Values {
		if v == known {
			return true
		}
	}
	return false
}

// Rank returns the position of a canonical value, or -1
func (e EnumSet) Rank(v string) int {
	for i, known := range e.Values {
		if v == known {
			return i
		}
	}
	return -1
}

// Describe lists canonical values for error messages
func (e EnumSet) Describe() string {
	values := append([]string(nil), e.Values...)
	sort.Strings(values)
	return strings.Join(values, ", ")
}
