package entity

import (
	"sort"
)

// defaultAliases are source column names commonly seen in exports,
// keyed by normalized token. Config mappings are merged on top.
var defaultAliases = map[Type]map[string]string{
	Incident: {
		"summary":       "title",
		"name":          "title",
		"details":       "description",
		"priority":      "severity",
		"state":         "status",
		"date":          "occurred_at",
		"incident_date": "occurred_at",
		"occurred":      "occurred_at",
		"reporter":      "reported_by",
		"cause":         "root_cause",
		"ref":           ExternalRefField,
		"reference":     ExternalRefField,
		"external_id":   ExternalRefField,
	},
	Complaint: {
		"subject":       "title",
		"summary":       "title",
		"details":       "description",
		"type":          "category",
		"source":        "channel",
		"priority":      "severity",
		"state":         "status",
		"date":          "received_at",
		"date_received": "received_at",
		"received":      "received_at",
		"complainant":   "complainant_name",
		"ref":           ExternalRefField,
		"reference":     ExternalRefField,
		"external_id":   ExternalRefField,
	},
	Collision: {
		"summary":     "title",
		"details":     "description",
		"date":        "occurred_at",
		"vehicles":    "vehicles_involved",
		"injured":     "injuries",
		"deaths":      "fatalities",
		"priority":    "severity",
		"state":       "status",
		"ref":         ExternalRefField,
		"reference":   ExternalRefField,
		"external_id": ExternalRefField,
	},
}

// FieldMapping renames source fields to canonical field names
type FieldMapping struct {
	aliases map[string]string
}

// NewFieldMapping merges the static alias table of t with overrides
// (source name → canonical name). Override keys are normalized.
func NewFieldMapping(t Type, overrides map[string]string) FieldMapping {
	aliases := make(map[string]string)
	for src, dst := range defaultAliases[t] {
		aliases[src] = dst
	}
	for src, dst := range overrides {
		aliases[NormalizeToken(src)] = NormalizeToken(dst)
	}
	return FieldMapping{aliases: aliases}
}

// Canonical returns the canonical name for a source field name
func (m FieldMapping) Canonical(raw string) string {
	token := NormalizeToken(raw)
	if dst, ok := m.aliases[token]; ok {
		return dst
	}
	return token
}

// Resolve renames the keys of fields. When several source keys land on
// the same canonical name, a key spelled exactly as the canonical name
// wins; otherwise the lexicographically first source key wins.
func (m FieldMapping) Resolve(fields map[string]any) map[string]any {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(fields))
	exact := make(map[string]bool, len(fields))
	for _, k := range keys {
		token := NormalizeToken(k)
		dst := m.Canonical(k)
		isExact := token == dst
		if _, taken := out[dst]; taken && (exact[dst] || !isExact) {
			continue
		}
		out[dst] = fields[k]
		exact[dst] = isExact
	}
	return out
}
