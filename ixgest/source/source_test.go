package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/govpipe/entity"
	"github.com/teranos/govpipe/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		location string
		want     Format
	}{
		{"incidents.csv", FormatCSV},
		{"/data/Complaints.JSON", FormatJSON},
		{"feed.jsonl", FormatJSONL},
		{"feed.ndjson", FormatJSONL},
		{"batch.yml", FormatYAML},
		{"https://example.com/exports/collisions.csv?token=abc", FormatCSV},
		{"s3::https://s3.amazonaws.com/bucket/incidents.yaml", FormatYAML},
	}
	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			got, err := DetectFormat(tt.location)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := DetectFormat("incidents.xlsx")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedSource))
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestLoad_CSV(t *testing.T) {
	p := writeFile(t, "incidents.csv", "\xEF\xBB\xBFtitle, severity ,date,ref\n"+
		"Slip in yard,high,2024-01-02,INC-1\n"+
		"\"Fire, kitchen\",critical,,INC-2\n")

	src, err := NewLoader(nil).Load(context.Background(), p, entity.Incident)
	require.NoError(t, err)

	assert.Equal(t, FormatCSV, src.Format)
	assert.False(t, src.Remote)
	require.Len(t, src.Records, 2)

	assert.Equal(t, entity.SourceRecord{Index: 0, Type: entity.Incident, Fields: map[string]any{
		"title": "Slip in yard", "severity": "high", "date": "2024-01-02", "ref": "INC-1",
	}}, src.Records[0])
	assert.Equal(t, 1, src.Records[1].Index)
	assert.Equal(t, "Fire, kitchen", src.Records[1].Fields["title"])
	assert.NotContains(t, src.Records[1].Fields, "date")
}

func TestLoad_JSONShapes(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"array", `[{"title":"A","vehicles":2},{"title":"B","vehicles":3}]`},
		{"records wrapper", `{"records":[{"title":"A","vehicles":2},{"title":"B","vehicles":3}]}`},
		{"items wrapper", `{"meta":{},"items":[{"title":"A","vehicles":2},{"title":"B","vehicles":3}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := writeFile(t, "collisions.json", tt.content)
			src, err := NewLoader(nil).Load(context.Background(), p, entity.Collision)
			require.NoError(t, err)
			require.Len(t, src.Records, 2)
			assert.Equal(t, "B", src.Records[1].Fields["title"])
			assert.Equal(t, json.Number("2"), src.Records[0].Fields["vehicles"])
			assert.Equal(t, entity.Collision, src.Records[1].Type)
		})
	}
}

func TestLoad_JSONSingleObject(t *testing.T) {
	p := writeFile(t, "incident.json", `{"title":"Only one","severity":"high"}`)
	src, err := NewLoader(nil).Load(context.Background(), p, entity.Incident)
	require.NoError(t, err)
	require.Len(t, src.Records, 1)
	assert.Equal(t, "Only one", src.Records[0].Fields["title"])
}

func TestLoad_JSONL(t *testing.T) {
	p := writeFile(t, "complaints.jsonl", "{\"title\":\"One\"}\n\n{\"title\":\"Two\"}\n")
	src, err := NewLoader(nil).Load(context.Background(), p, entity.Complaint)
	require.NoError(t, err)
	require.Len(t, src.Records, 2)
	assert.Equal(t, "Two", src.Records[1].Fields["title"])
	assert.Equal(t, 1, src.Records[1].Index)
}

func TestLoad_YAML(t *testing.T) {
	p := writeFile(t, "incidents.yaml", `
records:
  - title: Leaking valve
    severity: Medium
    occurred_at: "2024-03-04"
  - title: Broken gate
    severity: low
    injuries: 2
`)
	src, err := NewLoader(nil).Load(context.Background(), p, entity.Incident)
	require.NoError(t, err)
	require.Len(t, src.Records, 2)
	assert.Equal(t, "Leaking valve", src.Records[0].Fields["title"])
	assert.Equal(t, 2, src.Records[1].Fields["injuries"])
}

func TestLoad_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"truncated json", "a.json", `[{"title":"A"`},
		{"json scalar", "a.json", `42`},
		{"json array of strings", "a.json", `["a","b"]`},
		{"json object in array", "a.json", `[{"title":"A"}, 7]`},
		{"jsonl bad line", "a.jsonl", "{\"a\":1}\nnot json\n"},
		{"csv ragged row", "a.csv", "title,severity\nA,high,extra\n"},
		{"csv empty", "a.csv", ""},
		{"yaml scalar", "a.yaml", "just a string\n"},
		{"yaml empty", "a.yaml", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := writeFile(t, tt.file, tt.content)
			src, err := NewLoader(nil).Load(context.Background(), p, entity.Incident)
			require.Error(t, err)
			assert.Nil(t, src)
			assert.True(t, errors.Is(err, ErrMalformedSource), "got %v", err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader(nil).Load(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), entity.Incident)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedSource))
}

func TestLoad_Remote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/exports/incidents.csv" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("title,severity\nRemote row,low\n"))
	}))
	defer srv.Close()

	src, err := NewLoader(nil).Load(context.Background(), srv.URL+"/exports/incidents.csv", entity.Incident)
	require.NoError(t, err)
	assert.True(t, src.Remote)
	require.Len(t, src.Records, 1)
	assert.Equal(t, "Remote row", src.Records[0].Fields["title"])

	_, err = NewLoader(nil).Load(context.Background(), srv.URL+"/exports/missing.csv", entity.Incident)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedSource))
}
