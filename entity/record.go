package entity

// SourceRecord is one row of a source file, exactly as loaded.
// Index is its 0-based position in the file.
type SourceRecord struct {
	Index  int            `json:"index"`
	Type   Type           `json:"entity_type"`
	Fields map[string]any `json:"fields"`
}

// Record is a source record reshaped into the canonical schema
type Record struct {
	Index       int            `json:"-"`
	Type        Type           `json:"-"`
	ExternalRef string         `json:"-"`
	Fields      map[string]any `json:"fields"`
}

// ExternalRefOf returns the trimmed external_ref of canonical fields, or ""
func ExternalRefOf(fields map[string]any) string {
	s, _ := AsString(fields[ExternalRefField])
	return s
}
