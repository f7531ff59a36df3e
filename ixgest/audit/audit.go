// Package audit builds the tamper-evident summary written at the end of
// every pipeline run.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"github.com/teranos/govpipe/entity"
	"github.com/teranos/govpipe/errors"
)

// Event is the audit record of one completed run
type Event struct {
	RunID       string    `json:"run_id"`
	Environment string    `json:"environment"`
	EntityType  string    `json:"entity_type"`
	Mode        string    `json:"mode"`
	Source      string    `json:"source"`
	SourceHash  string    `json:"source_hash"`
	RecordCount int       `json:"record_count"`
	Timestamp   time.Time `json:"timestamp"`
	Imported    int       `json:"imported"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
}

// runNamespace scopes name-based run IDs to this tool
var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/teranos/govpipe/runs"))

// Canonical returns the RFC 8785 canonical JSON of v
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode value")
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, errors.Wrap(err, "failed to canonicalize JSON")
	}
	return out, nil
}

// SourceHash is the SHA-256 of the canonical JSON array of record
// fields in source order. Key order and number spelling in the source
// file do not affect it.
func SourceHash(records []entity.SourceRecord) (string, error) {
	rows := make([]map[string]any, len(records))
	for i, r := range records {
		rows[i] = r.Fields
		if rows[i] == nil {
			rows[i] = map[string]any{}
		}
	}
	canonical, err := Canonical(rows)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// DeterministicRunID derives a stable run ID, so repeating a
// no-side-effect run over the same input yields the same ID
func DeterministicRunID(sourceHash, entityType, environment, mode string) string {
	name := strings.Join([]string{sourceHash, entityType, environment, mode}, "\n")
	return uuid.NewSHA1(runNamespace, []byte(name)).String()
}

// NewRunID returns a random run ID
func NewRunID() string {
	return uuid.NewString()
}
