// Package transform reshapes validated source records into the canonical
// entity schema the API accepts.
package transform

import (
	"fmt"

	"github.com/teranos/govpipe/entity"
)

// TransformError reports a field that could not be resolved
type TransformError struct {
	Index       int
	ExternalRef string
	Field       string
	Value       any
	Reason      string
}

func (e *TransformError) Error() string {
	id := fmt.Sprintf("record %d", e.Index)
	if e.ExternalRef != "" {
		id += fmt.Sprintf(" (external_ref=%s)", e.ExternalRef)
	}
	return fmt.Sprintf("%s: field %s: %s", id, e.Field, e.Reason)
}

// Transformer maps source records of one entity type to canonical records
type Transformer struct {
	entityType entity.Type
	mapping    entity.FieldMapping
	schema     []entity.Field
}

// New creates a Transformer
func New(entityType entity.Type, mapping entity.FieldMapping) *Transformer {
	return &Transformer{
		entityType: entityType,
		mapping:    mapping,
		schema:     entity.Schema(entityType),
	}
}

// Transform renames fields, parses dates into RFC 3339 UTC, normalizes
// enums, coerces integers and applies defaults. Fields outside the schema
// are dropped. The first field that cannot be resolved is returned as a
// *TransformError.
func (t *Transformer) Transform(rec entity.SourceRecord) (*entity.Record, error) {
	fields := t.mapping.Resolve(rec.Fields)
	ref := entity.ExternalRefOf(fields)

	fail := func(field string, value any, format string, args ...any) error {
		return &TransformError{
			Index:       rec.Index,
			ExternalRef: ref,
			Field:       field,
			Value:       value,
			Reason:      fmt.Sprintf(format, args...),
		}
	}

	if len(t.schema) == 0 {
		return nil, fail("", nil, "entity type %q has no import schema", t.entityType)
	}

	out := make(map[string]any, len(t.schema))
	for _, spec := range t.schema {
		raw := fields[spec.Name]
		if !entity.IsPresent(raw) {
			if spec.Required {
				return nil, fail(spec.Name, raw, "required field is missing")
			}
			if spec.Default != nil {
				out[spec.Name] = spec.Default
			}
			continue
		}

		switch spec.Kind {
		case entity.KindString, entity.KindText, entity.KindRef:
			s, ok := entity.AsString(raw)
			if !ok {
				return nil, fail(spec.Name, raw, "cannot convert %T to text", raw)
			}
			out[spec.Name] = s

		case entity.KindEnum:
			s, _ := entity.AsString(raw)
			v, ok := spec.Enum.Normalize(s)
			if !ok {
				return nil, fail(spec.Name, raw, "cannot normalize %q: expected one of %s", s, spec.Enum.Describe())
			}
			out[spec.Name] = v

		case entity.KindDate:
			d, err := entity.ParseDate(raw)
			if err != nil {
				return nil, fail(spec.Name, raw, "%v", err)
			}
			out[spec.Name] = entity.FormatDate(d)

		case entity.KindInteger:
			n, err := entity.ParseInt(raw)
			if err != nil {
				return nil, fail(spec.Name, raw, "%v", err)
			}
			out[spec.Name] = n
		}
	}

	return &entity.Record{
		Index:       rec.Index,
		Type:        t.entityType,
		ExternalRef: ref,
		Fields:      out,
	}, nil
}
