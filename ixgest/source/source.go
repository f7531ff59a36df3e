// Package source loads batch input files into source records.
//
// Supported formats are chosen by file extension:
//   - .csv   header row, one record per line
//   - .json  array of objects, or an object with a records/items/data array
//   - .jsonl one object per line
//   - .yaml/.yml same shapes as JSON
//
// Locations may be local paths or anything go-getter can fetch
// (http(s), s3, gcs, git). Remote files are downloaded to a temporary
// directory that is removed once parsing is done.
package source

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-getter"
	"go.uber.org/zap"

	"github.com/teranos/govpipe/entity"
	"github.com/teranos/govpipe/errors"
	"github.com/teranos/govpipe/logger"
)

// ErrMalformedSource is returned when a source cannot be read or parsed
var ErrMalformedSource = errors.New("malformed source")

// Format of a source file
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// wrapperKeys are the object keys searched, in order, for a record array
var wrapperKeys = []string{"records", "items", "data"}

// DetectFormat infers the format from a path or URL extension
func DetectFormat(location string) (Format, error) {
	p := location
	if u, err := url.Parse(location); err == nil && u.Scheme != "" && u.Path != "" {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", errors.WithHint(
		errors.Wrapf(ErrMalformedSource, "unsupported source format %q", location),
		"use a .csv, .json, .jsonl or .yaml file",
	)
}

// Source is a loaded batch
type Source struct {
	Location string
	Format   Format
	Remote   bool
	Records  []entity.SourceRecord
}

// Loader resolves and parses sources
type Loader struct {
	logger *zap.SugaredLogger
	pwd    string
}

// NewLoader creates a Loader. A nil logger is allowed.
func NewLoader(l *zap.SugaredLogger) *Loader {
	pwd, err := os.Getwd()
	if err != nil {
		pwd = "."
	}
	return &Loader{logger: logger.OrNop(l), pwd: pwd}
}

// Load reads every record at location and tags it with entityType.
// Any read or parse failure is returned wrapped in ErrMalformedSource.
func (l *Loader) Load(ctx context.Context, location string, entityType entity.Type) (*Source, error) {
	format, err := DetectFormat(location)
	if err != nil {
		return nil, err
	}

	local, remote, cleanup, err := l.resolve(ctx, location)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	f, err := os.Open(local)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedSource, "open %s: %v", location, err)
	}
	defer f.Close()

	var rows []map[string]any
	switch format {
	case FormatCSV:
		rows, err = parseCSV(f)
	case FormatJSON:
		rows, err = parseJSON(f)
	case FormatJSONL:
		rows, err = parseJSONL(f)
	case FormatYAML:
		rows, err = parseYAML(f)
	}
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedSource, "%s: %v", location, err)
	}

	records := make([]entity.SourceRecord, len(rows))
	for i, row := range rows {
		records[i] = entity.SourceRecord{Index: i, Type: entityType, Fields: row}
	}

	l.logger.Infow("Loaded source",
		logger.FieldSource, location,
		"format", format,
		"remote", remote,
		logger.FieldCount, len(records),
	)

	return &Source{Location: location, Format: format, Remote: remote, Records: records}, nil
}

// resolve returns a local file path for location, downloading remote
// sources first. cleanup is always non-nil.
func (l *Loader) resolve(ctx context.Context, location string) (string, bool, func(), error) {
	noop := func() {}

	detected, err := getter.Detect(location, l.pwd, getter.Detectors)
	if err != nil {
		return "", false, noop, errors.Wrapf(ErrMalformedSource, "detect source %s: %v", location, err)
	}

	u, err := url.Parse(detected)
	if err != nil {
		return "", false, noop, errors.Wrapf(ErrMalformedSource, "parse source %s: %v", detected, err)
	}
	if u.Scheme == "" || u.Scheme == "file" {
		local := location
		if u.Scheme == "file" {
			local = u.Path
		}
		if strings.HasPrefix(local, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				local = filepath.Join(home, local[2:])
			}
		}
		return local, false, noop, nil
	}

	return l.fetch(ctx, location, detected)
}

func (l *Loader) fetch(ctx context.Context, location, detected string) (string, bool, func(), error) {
	tempDir, err := os.MkdirTemp("", "pipeline-source-*")
	if err != nil {
		return "", true, func() {}, errors.Wrap(err, "failed to create temp directory")
	}
	cleanup := func() {
		l.logger.Debugw("Removing fetched source", logger.FieldPath, tempDir)
		os.RemoveAll(tempDir)
	}

	name := filepath.Base(strings.SplitN(path.Base(detected), "?", 2)[0])
	if name == "" || name == "." || name == "/" {
		name = "source"
	}
	dst := filepath.Join(tempDir, name)

	client := &getter.Client{
		Ctx:     ctx,
		Src:     detected,
		Dst:     dst,
		Pwd:     l.pwd,
		Mode:    getter.ClientModeFile,
		Getters: getter.Getters,
	}

	l.logger.Infow("Fetching remote source",
		logger.FieldSource, location,
		"detected", detected,
		logger.FieldPath, dst,
	)

	if err := client.Get(); err != nil {
		cleanup()
		return "", true, func() {}, errors.Wrapf(ErrMalformedSource, "fetch %s: %v", location, err)
	}
	return dst, true, cleanup, nil
}

// asObject checks that a decoded element is a record object
func asObject(i int, v any) (map[string]any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("record %d: expected an object, got %T", i, v)
	}
	return obj, nil
}

// unwrap returns the record array of a decoded document. An object
// without a wrapper array is a single record.
func unwrap(doc any) ([]any, error) {
	switch x := doc.(type) {
	case []any:
		return x, nil
	case map[string]any:
		for _, key := range wrapperKeys {
			if arr, ok := x[key].([]any); ok {
				return arr, nil
			}
		}
		return []any{x}, nil
	case nil:
		return nil, fmt.Errorf("empty document")
	default:
		return nil, fmt.Errorf("expected an array of records, got %T", doc)
	}
}
