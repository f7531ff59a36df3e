package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/govpipe/entity"
	"github.com/teranos/govpipe/errors"
)

func TestTransform_Incident(t *testing.T) {
	tr := New(entity.Incident, entity.NewFieldMapping(entity.Incident, map[string]string{"Incident Title": "title"}))

	rec, err := tr.Transform(entity.SourceRecord{Index: 4, Type: entity.Incident, Fields: map[string]any{
		"Incident Title": "  Forklift clipped racking ",
		"Priority":       "Medium",
		"Date":           "03/02/2024",
		"Ref":            "INC-42",
		"Internal Notes": "dropped",
	}})
	require.NoError(t, err)

	assert.Equal(t, 4, rec.Index)
	assert.Equal(t, entity.Incident, rec.Type)
	assert.Equal(t, "INC-42", rec.ExternalRef)
	assert.Equal(t, map[string]any{
		"title":        "Forklift clipped racking",
		"severity":     "medium",
		"status":       "open",
		"occurred_at":  "2024-02-03T00:00:00Z",
		"external_ref": "INC-42",
	}, rec.Fields)
}

func TestTransform_CollisionCoercion(t *testing.T) {
	tr := New(entity.Collision, entity.NewFieldMapping(entity.Collision, nil))

	rec, err := tr.Transform(entity.SourceRecord{Type: entity.Collision, Fields: map[string]any{
		"title":             "Van vs cyclist",
		"occurred_at":       "2024-06-01T17:45:00+01:00",
		"location":          "High St",
		"vehicles_involved": "2",
		"injuries":          1.0,
		"severity":          "Severe",
		"status":            "Under Investigation",
	}})
	require.NoError(t, err)

	assert.Equal(t, "2024-06-01T16:45:00Z", rec.Fields["occurred_at"])
	assert.Equal(t, 2, rec.Fields["vehicles_involved"])
	assert.Equal(t, 1, rec.Fields["injuries"])
	assert.Equal(t, 0, rec.Fields["fatalities"])
	assert.Equal(t, "critical", rec.Fields["severity"])
	assert.Equal(t, "investigating", rec.Fields["status"])
	assert.Empty(t, rec.ExternalRef)
	assert.NotContains(t, rec.Fields, "external_ref")
}

func TestTransform_ComplaintDefaults(t *testing.T) {
	tr := New(entity.Complaint, entity.NewFieldMapping(entity.Complaint, nil))

	rec, err := tr.Transform(entity.SourceRecord{Type: entity.Complaint, Fields: map[string]any{
		"subject":  "Overcharged for season ticket",
		"type":     "Fees",
		"source":   "Telephone",
		"received": "2024-07-09",
	}})
	require.NoError(t, err)

	assert.Equal(t, "billing", rec.Fields["category"])
	assert.Equal(t, "phone", rec.Fields["channel"])
	assert.Equal(t, "medium", rec.Fields["severity"])
	assert.Equal(t, "open", rec.Fields["status"])
}

func TestTransform_Errors(t *testing.T) {
	tr := New(entity.Incident, entity.NewFieldMapping(entity.Incident, nil))

	base := func() map[string]any {
		return map[string]any{
			"title":        "Chemical spill",
			"severity":     "high",
			"occurred_at":  "2024-01-01",
			"external_ref": "INC-9",
		}
	}

	tests := []struct {
		name      string
		mutate    func(map[string]any)
		wantField string
		wantMsg   string
	}{
		{
			name:      "unmapped enum",
			mutate:    func(f map[string]any) { f["status"] = "pending" },
			wantField: "status",
			wantMsg:   `record 2 (external_ref=INC-9): field status: cannot normalize "pending": expected one of closed, investigating, open`,
		},
		{
			name:      "missing required",
			mutate:    func(f map[string]any) { delete(f, "title") },
			wantField: "title",
			wantMsg:   "record 2 (external_ref=INC-9): field title: required field is missing",
		},
		{
			name:      "bad date",
			mutate:    func(f map[string]any) { f["occurred_at"] = "next week" },
			wantField: "occurred_at",
			wantMsg:   `record 2 (external_ref=INC-9): field occurred_at: cannot parse date "next week"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := base()
			tt.mutate(fields)

			rec, err := tr.Transform(entity.SourceRecord{Index: 2, Type: entity.Incident, Fields: fields})
			require.Error(t, err)
			assert.Nil(t, rec)

			var terr *TransformError
			require.True(t, errors.As(err, &terr))
			assert.Equal(t, tt.wantField, terr.Field)
			assert.Equal(t, 2, terr.Index)
			assert.Equal(t, "INC-9", terr.ExternalRef)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestTransform_GovernanceOnlyType(t *testing.T) {
	tr := New(entity.Analysis, entity.NewFieldMapping(entity.Analysis, nil))
	_, err := tr.Transform(entity.SourceRecord{Index: 0, Type: entity.Analysis, Fields: map[string]any{}})

	var terr *TransformError
	require.True(t, errors.As(err, &terr))
	assert.Contains(t, terr.Reason, "no import schema")
}
