package validate

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/teranos/govpipe/entity"
)

// Property: Validate(r) == Validate(r) for any record, including reason order
func TestValidateDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	v := New(entity.Incident, entity.NewFieldMapping(entity.Incident, nil))

	properties.Property("validation is deterministic", prop.ForAll(
		func(title, severity, status, occurred, ref, extraKey, extraVal string) bool {
			fields := map[string]any{
				"title":       title,
				"severity":    severity,
				"status":      status,
				"occurred_at": occurred,
				"ref":         ref,
			}
			if extraKey != "" {
				fields[extraKey] = extraVal
			}
			rec := entity.SourceRecord{Index: 7, Type: entity.Incident, Fields: fields}

			first := v.Validate(rec)
			second := v.Validate(rec)
			return reflect.DeepEqual(first, second) &&
				(first.Status == StatusInvalid) == (len(first.Reasons) > 0 && !allWarnings(v, rec))
		},
		gen.AnyString(),
		gen.OneConstOf("low", "Medium", "HIGH", "severe", "", "bogus"),
		gen.OneConstOf("open", "resolved", "pending", ""),
		gen.OneConstOf("2024-01-02", "02/01/2024", "not a date", ""),
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func allWarnings(v *Validator, rec entity.SourceRecord) bool {
	for _, f := range v.Check(rec) {
		if f.Level != LevelWarning {
			return false
		}
	}
	return true
}

// Property: every record gets exactly one outcome, in source order
func TestValidateAllOneOutcomePerRecord(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	v := New(entity.Collision, entity.NewFieldMapping(entity.Collision, nil))

	properties.Property("one outcome per record", prop.ForAll(
		func(titles []string) bool {
			recs := make([]entity.SourceRecord, len(titles))
			for i, title := range titles {
				recs[i] = entity.SourceRecord{Index: i, Type: entity.Collision, Fields: map[string]any{"title": title}}
			}
			outcomes := v.ValidateAll(recs)
			if len(outcomes) != len(recs) {
				return false
			}
			for i, o := range outcomes {
				if o.Index != i {
					return false
				}
			}
			return Summarize(outcomes).Total == len(recs)
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
