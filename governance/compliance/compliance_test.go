package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/govpipe/entity"
	"github.com/teranos/govpipe/errors"
)

func ruleIDs(vs []Violation) []string {
	ids := []string{}
	for _, v := range vs {
		ids = append(ids, v.RuleID)
	}
	return ids
}

func TestCheck_MissingRootCause(t *testing.T) {
	e := NewEngine()

	vs, err := e.Check(map[string]any{"severity": "CRITICAL", "root_cause": nil}, entity.Incident)
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, Violation{
		EntityType: entity.Incident,
		RuleID:     "INC-001",
		Severity:   SeverityError,
		Message:    "critical severity incident has no root cause",
	}, vs[0])

	vs, err = e.Check(map[string]any{"severity": "LOW", "root_cause": nil}, entity.Incident)
	require.NoError(t, err)
	assert.Empty(t, vs)
	assert.NotNil(t, vs)
}

func TestCheck(t *testing.T) {
	e := NewEngine()

	tests := []struct {
		name   string
		et     entity.Type
		fields map[string]any
		want   []string
	}{
		{"incident: short root cause", entity.Incident,
			map[string]any{"severity": "high", "root_cause": "ice"}, []string{"INC-002"}},
		{"incident: closed without date", entity.Incident,
			map[string]any{"severity": "low", "status": "Resolved"}, []string{"INC-003"}},
		{"incident: closed with date", entity.Incident,
			map[string]any{"severity": "low", "status": "closed", "closed_at": "2024-01-10"}, []string{}},
		{"incident: critical and explicitly unassigned", entity.Incident,
			map[string]any{"severity": "critical", "root_cause": "brake failure on unit 4", "assigned_to": ""}, []string{"INC-004"}},
		{"incident: critical without assignment key", entity.Incident,
			map[string]any{"severity": "critical", "root_cause": "brake failure on unit 4"}, []string{}},
		{"incident: all rules run", entity.Incident,
			map[string]any{"severity": "Severe", "status": "closed", "assigned_to": ""}, []string{"INC-001", "INC-003"}},

		{"complaint: closed without response", entity.Complaint,
			map[string]any{"status": "closed", "category": "billing"}, []string{"CMP-001"}},
		{"complaint: escalated unassigned", entity.Complaint,
			map[string]any{"escalated": "yes"}, []string{"CMP-002"}},
		{"complaint: escalated false", entity.Complaint,
			map[string]any{"escalated": false}, []string{}},
		{"complaint: safety rated low", entity.Complaint,
			map[string]any{"category": "Safety", "severity": "minor"}, []string{"CMP-003"}},

		{"collision: fatal not critical", entity.Collision,
			map[string]any{"fatalities": 1, "severity": "high", "vehicles_involved": 2}, []string{"COL-001"}},
		{"collision: injuries rated low", entity.Collision,
			map[string]any{"injuries": "2", "severity": "LOW", "vehicles_involved": 1}, []string{"COL-002"}},
		{"collision: no vehicles", entity.Collision,
			map[string]any{"vehicles_involved": 0, "severity": "low"}, []string{"COL-003"}},
		{"collision: vehicles absent", entity.Collision,
			map[string]any{"severity": "low"}, []string{}},

		{"analysis: approved with nothing", entity.Analysis,
			map[string]any{"status": "Approved"}, []string{"ANA-001", "ANA-002"}},
		{"analysis: accepted counts as approved", entity.Analysis,
			map[string]any{"status": "accepted"}, []string{"ANA-001", "ANA-002"}},
		{"analysis: signed off counts as approved", entity.Analysis,
			map[string]any{"status": "Signed Off", "approved_by": "QA lead"}, []string{"ANA-001"}},
		{"analysis: in review is not approved", entity.Analysis,
			map[string]any{"status": "submitted"}, []string{}},
		{"analysis: actions without owners", entity.Analysis,
			map[string]any{"status": "approved", "approved_by": "QA lead",
				"corrective_actions": []any{map[string]any{"action": "retrain", "owner": "ops"}, map[string]any{"action": "signage"}}},
			[]string{"ANA-003"}},
		{"analysis: top-level owners", entity.Analysis,
			map[string]any{"status": "draft", "corrective_actions": []any{"retrain"}, "owners": []any{"ops"}}, []string{}},
		{"analysis: scalar actions", entity.Analysis,
			map[string]any{"status": "draft", "corrective_actions": "retrain staff"}, []string{"ANA-003"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs, err := e.Check(tt.fields, tt.et)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ruleIDs(vs))
			for _, v := range vs {
				assert.Equal(t, tt.et, v.EntityType)
				assert.NotEmpty(t, v.Message)
			}
		})
	}
}

func TestCheck_UnknownEntityType(t *testing.T) {
	_, err := NewEngine().Check(map[string]any{}, "vessel")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownEntityType))
}

func TestCheck_NilFields(t *testing.T) {
	vs, err := NewEngine().Check(nil, entity.Collision)
	require.NoError(t, err)
	assert.Empty(t, vs)
}

func TestRules(t *testing.T) {
	e := NewEngine()
	assert.Equal(t, []string{"INC-001", "INC-002", "INC-003", "INC-004"}, e.Rules(entity.Incident))
	assert.Equal(t, []string{"CMP-001", "CMP-002", "CMP-003"}, e.Rules(entity.Complaint))
	assert.Equal(t, []string{"COL-001", "COL-002", "COL-003"}, e.Rules(entity.Collision))
	assert.Equal(t, []string{"ANA-001", "ANA-002", "ANA-003"}, e.Rules(entity.Analysis))
	assert.Nil(t, e.Rules("vessel"))

	for _, et := range entity.All() {
		for _, r := range e.Describe(et) {
			assert.NotEmpty(t, r.Description, r.ID)
			assert.NotNil(t, r.Fn, r.ID)
		}
	}
}

func TestErrors(t *testing.T) {
	vs, err := NewEngine().Check(map[string]any{"status": "approved"}, entity.Analysis)
	require.NoError(t, err)
	errs := Errors(vs)
	require.Len(t, errs, 1)
	assert.Equal(t, "ANA-001", errs[0].RuleID)
}
