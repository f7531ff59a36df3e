package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/govpipe/errors"
)

func TestParse(t *testing.T) {
	et, err := Parse(" Incident ")
	require.NoError(t, err)
	assert.Equal(t, Incident, et)
	assert.Equal(t, "/incidents", et.ResourcePath())

	_, err = Parse("invoice")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownType))

	et, err = Parse("analysis")
	require.NoError(t, err)
	assert.False(t, et.Importable())
	assert.Empty(t, et.ResourcePath())

	_, err = ParseImportable("analysis")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotImportable))
	assert.Contains(t, errors.FlattenHints(err), "collision, complaint, incident")
}

func TestEnumNormalize(t *testing.T) {
	tests := []struct {
		set  EnumSet
		raw  string
		want string
		ok   bool
	}{
		{Severity, "Medium", "medium", true},
		{Severity, "  HIGH ", "high", true},
		{Severity, "moderate", "medium", true},
		{Severity, "Severe", "critical", true},
		{Severity, "ＣＲＩＴＩＣＡＬ", "critical", true}, // full-width, folded by NFKC
		{Severity, "catastrophic", "", false},
		{Severity, "", "", false},
		{Status, "In Progress", "investigating", true},
		{Status, "under-investigation", "investigating", true},
		{Status, "pending", "", false},
		{Channel, "E-Mail", "email", true},
		{Channel, "in person", "in_person", true},
		{ComplaintCategory, "Customer Service", "service", true},
	}

	for _, tt := range tests {
		t.Run(tt.set.Name+"/"+tt.raw, func(t *testing.T) {
			got, ok := tt.set.Normalize(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, 3, Severity.Rank("critical"))
	assert.Equal(t, -1, Severity.Rank("nope"))
	assert.True(t, Status.Contains("closed"))
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	for _, raw := range []any{"2024-03-05", "05/03/2024", "5 March 2024", "Mar 5, 2024", "2024-03-05T00:00:00Z", want} {
		got, err := ParseDate(raw)
		require.NoError(t, err, "%v", raw)
		assert.True(t, want.Equal(got), "%v parsed as %v", raw, got)
	}

	got, err := ParseDate("2024-03-05T10:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05T08:30:00Z", FormatDate(got))

	_, err = ParseDate("yesterday")
	assert.Error(t, err)
	_, err = ParseDate(nil)
	assert.Error(t, err)
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		raw     any
		want    int
		wantErr bool
	}{
		{3, 3, false},
		{"3", 3, false},
		{" 3.0 ", 3, false},
		{3.0, 3, false},
		{json.Number("7"), 7, false},
		{"3.5", 0, true},
		{"three", 0, true},
		{true, 0, true},
		{1e12, 0, true},
		{2147483647, 2147483647, false},
		{"1844674407370955162", 0, true},
		{int64(1) << 40, 0, true},
		{json.Number("99999999999"), 0, true},
		{"-2147483649", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseInt(tt.raw)
		if tt.wantErr {
			assert.Error(t, err, "%v", tt.raw)
			continue
		}
		require.NoError(t, err, "%v", tt.raw)
		assert.Equal(t, tt.want, got)
	}
}

func TestIsPresent(t *testing.T) {
	assert.False(t, IsPresent(nil))
	assert.False(t, IsPresent("   "))
	assert.False(t, IsPresent([]any{}))
	assert.True(t, IsPresent("x"))
	assert.True(t, IsPresent(0))
}

func TestValidExternalRef(t *testing.T) {
	assert.True(t, ValidExternalRef("INC-2024.001:a_b"))
	assert.False(t, ValidExternalRef(""))
	assert.False(t, ValidExternalRef("has space"))
	assert.False(t, ValidExternalRef(string(make([]byte, 129))))
}

func TestFieldMappingResolve(t *testing.T) {
	m := NewFieldMapping(Incident, map[string]string{"Incident Title": "title", "When": "occurred_at"})

	got := m.Resolve(map[string]any{
		"Incident Title": "Forklift collision",
		"When":           "2024-01-02",
		"Priority":       "High",
		"Ref":            "INC-1",
		"Unrelated":      "kept under its own name",
	})

	assert.Equal(t, "Forklift collision", got["title"])
	assert.Equal(t, "2024-01-02", got["occurred_at"])
	assert.Equal(t, "High", got["severity"])
	assert.Equal(t, "INC-1", got["external_ref"])
	assert.Equal(t, "kept under its own name", got["unrelated"])
	assert.Equal(t, "INC-1", ExternalRefOf(got))
}

func TestFieldMappingResolve_ExactNameWins(t *testing.T) {
	m := NewFieldMapping(Incident, nil)

	got := m.Resolve(map[string]any{
		"summary": "from alias",
		"title":   "from canonical",
		"name":    "another alias",
	})
	assert.Equal(t, "from canonical", got["title"])

	got = m.Resolve(map[string]any{"summary": "s", "name": "n"})
	assert.Equal(t, "n", got["title"], "lexicographically first alias wins")
}

func TestSchema(t *testing.T) {
	for _, et := range Importable() {
		fields := Schema(et)
		require.NotEmpty(t, fields, et)
		assert.Equal(t, "title", fields[0].Name)
		assert.Equal(t, ExternalRefField, fields[len(fields)-1].Name)
	}
	assert.Empty(t, Schema(Analysis))
	assert.Contains(t, FieldNames(Collision), "vehicles_involved")
}
