// Package validate checks source records against the canonical field
// rules of their entity type. It performs no I/O and never fails a batch:
// every record yields exactly one Outcome.
package validate

import (
	"fmt"
	"unicode/utf8"

	"github.com/teranos/govpipe/entity"
)

// Status is the tri-state result of validating one record
type Status string

const (
	StatusValid   Status = "valid"
	StatusWarning Status = "warning"
	StatusInvalid Status = "invalid"
)

// Level of a failed check
type Level int

const (
	LevelError Level = iota
	LevelWarning
)

// Outcome is the validation result for one source record
type Outcome struct {
	Index   int      `json:"index"`
	Status  Status   `json:"status"`
	Reasons []string `json:"reasons,omitempty"`
}

// Importable reports whether the record may proceed to transformation
func (o Outcome) Importable() bool {
	return o.Status != StatusInvalid
}

// Failure is a single failed check
type Failure struct {
	Field  string
	Level  Level
	Reason string
}

// Validator applies the declared checks of one entity type
type Validator struct {
	entityType entity.Type
	mapping    entity.FieldMapping
	schema     []entity.Field
}

// New creates a Validator. Source field names are resolved through mapping
// before any check runs.
func New(entityType entity.Type, mapping entity.FieldMapping) *Validator {
	return &Validator{
		entityType: entityType,
		mapping:    mapping,
		schema:     entity.Schema(entityType),
	}
}

// Validate runs every check for the record's entity type, in declared
// order, without short-circuiting.
func (v *Validator) Validate(rec entity.SourceRecord) Outcome {
	failures := v.Check(rec)

	out := Outcome{Index: rec.Index, Status: StatusValid}
	for _, f := range failures {
		out.Reasons = append(out.Reasons, f.Reason)
		switch f.Level {
		case LevelError:
			out.Status = StatusInvalid
		case LevelWarning:
			if out.Status == StatusValid {
				out.Status = StatusWarning
			}
		}
	}
	return out
}

// ValidateAll validates records in order
func (v *Validator) ValidateAll(recs []entity.SourceRecord) []Outcome {
	out := make([]Outcome, len(recs))
	for i, rec := range recs {
		out[i] = v.Validate(rec)
	}
	return out
}

// Check returns the failed checks of a record in declared order
func (v *Validator) Check(rec entity.SourceRecord) []Failure {
	if rec.Type != "" && rec.Type != v.entityType {
		return []Failure{{Level: LevelError, Reason: fmt.Sprintf("record is tagged %q but validator expects %q", rec.Type, v.entityType)}}
	}
	if len(v.schema) == 0 {
		return []Failure{{Level: LevelError, Reason: fmt.Sprintf("no field rules for entity type %q", v.entityType)}}
	}

	fields := v.mapping.Resolve(rec.Fields)

	var failures []Failure
	for _, spec := range v.schema {
		if f, failed := checkField(spec, fields[spec.Name]); failed {
			failures = append(failures, f)
		}
	}
	return failures
}

// checkField applies presence first; type checks only run on present values
func checkField(spec entity.Field, raw any) (Failure, bool) {
	fail := func(level Level, format string, args ...any) (Failure, bool) {
		return Failure{Field: spec.Name, Level: level, Reason: fmt.Sprintf(format, args...)}, true
	}

	if !entity.IsPresent(raw) {
		if spec.Required {
			return fail(LevelError, "missing required field %q", spec.Name)
		}
		return Failure{}, false
	}

	switch spec.Kind {
	case entity.KindString:
		s, ok := entity.AsString(raw)
		if !ok {
			return fail(LevelError, "%s must be text, got %T", spec.Name, raw)
		}
		n := utf8.RuneCountInString(s)
		if spec.MinLen > 0 && n < spec.MinLen {
			return fail(LevelError, "%s must be at least %d characters (got %d)", spec.Name, spec.MinLen, n)
		}
		if spec.MaxLen > 0 && n > spec.MaxLen {
			return fail(LevelError, "%s must be at most %d characters (got %d)", spec.Name, spec.MaxLen, n)
		}

	case entity.KindText:
		s, ok := entity.AsString(raw)
		if !ok {
			return fail(LevelError, "%s must be text, got %T", spec.Name, raw)
		}
		if n := utf8.RuneCountInString(s); spec.WarnLen > 0 && n > spec.WarnLen {
			return fail(LevelWarning, "%s is unusually long (%d characters, expected at most %d)", spec.Name, n, spec.WarnLen)
		}

	case entity.KindEnum:
		s, _ := entity.AsString(raw)
		if _, ok := spec.Enum.Normalize(s); !ok {
			// Optional enums are only warned here; the transformer rejects them
			level := LevelWarning
			if spec.Required {
				level = LevelError
			}
			return fail(level, "%s %q is not one of: %s", spec.Name, s, spec.Enum.Describe())
		}

	case entity.KindDate:
		if _, err := entity.ParseDate(raw); err != nil {
			return fail(LevelError, "%s: %v", spec.Name, err)
		}

	case entity.KindInteger:
		n, err := entity.ParseInt(raw)
		if err != nil {
			return fail(LevelError, "%s: %v", spec.Name, err)
		}
		if n < spec.Min {
			return fail(LevelError, "%s must be >= %d (got %d)", spec.Name, spec.Min, n)
		}

	case entity.KindRef:
		s, _ := entity.AsString(raw)
		if !entity.ValidExternalRef(s) {
			return fail(LevelError, "%s %q must be 1-128 characters of letters, digits, '.', '_', ':' or '-'", spec.Name, s)
		}
	}

	return Failure{}, false
}

// Summary counts outcomes by status
type Summary struct {
	Total    int `json:"total"`
	Valid    int `json:"valid"`
	Invalid  int `json:"invalid"`
	Warnings int `json:"warnings"`
}

// Summarize counts outcomes by status
func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.Status {
		case StatusValid:
			s.Valid++
		case StatusWarning:
			s.Warnings++
		case StatusInvalid:
			s.Invalid++
		}
	}
	return s
}
