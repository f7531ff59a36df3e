package risk

import (
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/govpipe/entity"
	"github.com/teranos/govpipe/errors"
)

var asOf = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func TestScore(t *testing.T) {
	s := NewScorer()

	tests := []struct {
		name   string
		et     entity.Type
		fields map[string]any
		score  int
		level  Level
		inputs Inputs
	}{
		{
			name:   "open critical incident, 60 days old",
			et:     entity.Incident,
			fields: map[string]any{"severity": "CRITICAL", "status": "open", "occurred_at": "2024-01-01", "external_ref": "INC-9"},
			score:  60,
			level:  High,
			inputs: Inputs{Severity: "critical", SeverityWeight: 40, AgeDays: 60, AgeWeight: 10, Status: "open", StatusWeight: 10, AsOf: asOf},
		},
		{
			name:   "closed incidents do not age",
			et:     entity.Incident,
			fields: map[string]any{"severity": "high", "status": "Resolved", "occurred_at": "2020-01-01"},
			score:  30,
			level:  Medium,
			inputs: Inputs{Severity: "high", SeverityWeight: 30, Status: "closed", AsOf: asOf},
		},
		{
			name:   "collision harm is capped for injuries",
			et:     entity.Collision,
			fields: map[string]any{"severity": "minor", "status": "investigating", "occurred_at": "2024-02-28", "injuries": 5, "fatalities": "1"},
			score:  65,
			level:  Critical,
			inputs: Inputs{Severity: "low", SeverityWeight: 10, AgeDays: 2, Status: "investigating", StatusWeight: 5, HarmWeight: 50, AsOf: asOf},
		},
		{
			name:   "complaint ages by received_at, status defaults to open",
			et:     entity.Complaint,
			fields: map[string]any{"severity": "medium", "received_at": "2023-11-01"},
			score:  50,
			level:  High,
			inputs: Inputs{Severity: "medium", SeverityWeight: 20, AgeDays: 121, AgeWeight: 20, Status: "open", StatusWeight: 10, AsOf: asOf},
		},
		{
			name:   "large injury counts hit the cap without overflowing",
			et:     entity.Collision,
			fields: map[string]any{"severity": "high", "occurred_at": "2024-02-28", "injuries": 2147483647},
			score:  60,
			level:  High,
			inputs: Inputs{Severity: "high", SeverityWeight: 30, AgeDays: 2, Status: "open", StatusWeight: 10, HarmWeight: 20, AsOf: asOf},
		},
		{
			name:   "out of range injury count adds no harm",
			et:     entity.Collision,
			fields: map[string]any{"severity": "high", "occurred_at": "2024-02-28", "injuries": "1844674407370955162"},
			score:  40,
			level:  Medium,
			inputs: Inputs{Severity: "high", SeverityWeight: 30, AgeDays: 2, Status: "open", StatusWeight: 10, AsOf: asOf},
		},
		{
			name:   "harm only counts for collisions",
			et:     entity.Incident,
			fields: map[string]any{"severity": "low", "status": "closed", "injuries": 3},
			score:  10,
			level:  Low,
			inputs: Inputs{Severity: "low", SeverityWeight: 10, Status: "closed", AsOf: asOf},
		},
		{
			name:   "unrecognised values weigh nothing",
			et:     entity.Analysis,
			fields: map[string]any{"severity": "Spicy", "status": "approved", "created_at": "not a date"},
			score:  0,
			level:  Low,
			inputs: Inputs{Severity: "spicy", Status: "approved", AsOf: asOf},
		},
		{
			name:   "future dates have no age",
			et:     entity.Incident,
			fields: map[string]any{"severity": "medium", "occurred_at": "2025-01-01"},
			score:  30,
			level:  Medium,
			inputs: Inputs{Severity: "medium", SeverityWeight: 20, Status: "open", StatusWeight: 10, AsOf: asOf},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := s.Score(tt.fields, tt.et, asOf)
			require.NoError(t, err)
			assert.Equal(t, tt.et, a.EntityType)
			assert.Equal(t, tt.score, a.Score)
			assert.Equal(t, tt.level, a.Level)
			assert.Equal(t, tt.inputs, a.Inputs)
		})
	}
}

func TestScoreEntityRef(t *testing.T) {
	s := NewScorer()

	a, err := s.Score(map[string]any{"external_ref": " INC-1 ", "id": 7}, entity.Incident, asOf)
	require.NoError(t, err)
	assert.Equal(t, "INC-1", a.EntityRef)

	a, err = s.Score(map[string]any{"id": 7}, entity.Incident, asOf)
	require.NoError(t, err)
	assert.Equal(t, "7", a.EntityRef)
}

func TestScoreUnknownType(t *testing.T) {
	_, err := NewScorer().Score(map[string]any{}, "vessel", asOf)
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrUnknownType))
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, Low, LevelFor(0))
	assert.Equal(t, Low, LevelFor(24))
	assert.Equal(t, Medium, LevelFor(25))
	assert.Equal(t, Medium, LevelFor(44))
	assert.Equal(t, High, LevelFor(45))
	assert.Equal(t, High, LevelFor(64))
	assert.Equal(t, Critical, LevelFor(65))
	assert.Equal(t, Critical, LevelFor(130))
}

// Property: identical entity and as-of time give identical assessments
func TestScoreDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	s := NewScorer()
	properties.Property("score is a pure function of entity and as-of", prop.ForAll(
		func(severity, status string, ageDays, injuries, fatalities int, asOfOffset int64) bool {
			at := asOf.Add(time.Duration(asOfOffset) * time.Minute)
			fields := map[string]any{
				"severity":    severity,
				"status":      status,
				"occurred_at": at.AddDate(0, 0, -ageDays).Format(time.RFC3339),
				"injuries":    injuries,
				"fatalities":  fatalities,
			}
			a, err := s.Score(fields, entity.Collision, at)
			if err != nil {
				return false
			}
			b, err := s.Score(fields, entity.Collision, at)
			if err != nil {
				return false
			}
			in := a.Inputs
			sum := in.SeverityWeight + in.AgeWeight + in.StatusWeight + in.HarmWeight
			return reflect.DeepEqual(a, b) && a.Score == sum && a.Level == LevelFor(a.Score)
		},
		gen.OneConstOf("low", "Medium", "HIGH", "critical", "sev1", "", "unknown"),
		gen.OneConstOf("open", "investigating", "closed", "resolved", "", "pending"),
		gen.IntRange(0, 400),
		gen.IntRange(0, 10),
		gen.IntRange(0, 3),
		gen.Int64Range(-100000, 100000),
	))

	properties.TestingRun(t)
}
