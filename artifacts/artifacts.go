// Package artifacts persists run reports (probe, validation, stats and
// audit JSON) to the local filesystem or to S3.
//
// Keys are slash-separated and relative, e.g. "incident/<run_id>/stats.json".
package artifacts

import (
	"context"
	"encoding/json"
	"path"
	"strings"

	"github.com/teranos/govpipe/config"
	"github.com/teranos/govpipe/errors"
)

// Artifact file names
const (
	ProbeFile      = "probe.json"
	ValidationFile = "validation.json"
	StatsFile      = "stats.json"
	AuditFile      = "audit.json"
)

// ErrWrite marks a failed artifact write; it is fatal to a run
var ErrWrite = errors.New("artifact write failed")

// Sink stores artifacts
type Sink interface {
	// Put stores data under key, replacing any previous content
	Put(ctx context.Context, key string, data []byte) error
	// Location describes where key is stored, for display
	Location(key string) string
}

// Key builds the artifact key of one run file
func Key(entityType, runID, name string) string {
	return path.Join(entityType, runID, name)
}

// Encode renders v as indented JSON with a trailing newline, so repeated
// writes of the same value are byte-identical
func Encode(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode artifact")
	}
	return append(data, '\n'), nil
}

// PutJSON encodes v and stores it under key
func PutJSON(ctx context.Context, sink Sink, key string, v any) error {
	data, err := Encode(v)
	if err != nil {
		return err
	}
	if err := sink.Put(ctx, key, data); err != nil {
		return errors.Wrapf(errors.Mark(err, ErrWrite), "%s", sink.Location(key))
	}
	return nil
}

// validKey rejects keys that could escape the artifact root
func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return errors.Newf("invalid artifact key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "" {
			return errors.Newf("invalid artifact key %q", key)
		}
	}
	return nil
}

// NewSinkFromConfig builds the configured sink
func NewSinkFromConfig(ctx context.Context, cfg config.ArtifactsConfig) (Sink, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", config.BackendFS:
		dir := cfg.Dir
		if dir == "" {
			dir = config.DefaultArtifactsDir
		}
		return NewFileSink(dir), nil
	case config.BackendS3:
		return NewS3Sink(ctx, S3Config{
			Bucket:   cfg.S3.Bucket,
			Region:   cfg.S3.Region,
			Endpoint: cfg.S3.Endpoint,
			Prefix:   cfg.S3.Prefix,
		})
	default:
		return nil, errors.WithHint(errors.Newf("unknown artifacts backend %q", cfg.Backend), "use \"fs\" or \"s3\"")
	}
}
