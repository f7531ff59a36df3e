// Package probe verifies that a target API environment honours the
// contract the importer relies on before any record is sent.
//
// The endpoint list is fixed: liveness, readiness, and a list call for
// every importable entity type. A probe never fails as a whole; each
// endpoint carries its own success flag and error.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/teranos/govpipe/config"
	"github.com/teranos/govpipe/entity"
	"github.com/teranos/govpipe/internal/httpclient"
	"github.com/teranos/govpipe/logger"
)

// Fixed endpoints
const (
	HealthPath = "/healthz"
	ReadyPath  = "/readyz"
)

// maxBodyBytes bounds how much of a probe response is read
const maxBodyBytes = 1 << 20

// listShapeSchema accepts a bare array or an object wrapping one
const listShapeSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"anyOf": [
		{"type": "array"},
		{"type": "object", "required": ["items"], "properties": {"items": {"type": "array"}}},
		{"type": "object", "required": ["data"], "properties": {"data": {"type": "array"}}},
		{"type": "object", "required": ["results"], "properties": {"results": {"type": "array"}}}
	]
}`

const listShapeURL = "https://govpipe.schemas.local/probe/list-shape.schema.json"

// Result of probing one endpoint
type Result struct {
	Endpoint       string `json:"endpoint"`
	Method         string `json:"method"`
	ExpectedStatus int    `json:"expected_status"`
	StatusCode     int    `json:"status_code"`
	Success        bool   `json:"success"`
	LatencyMS      int64  `json:"latency_ms"`
	Error          string `json:"error,omitempty"`
}

// Report is the outcome of one probe
type Report struct {
	Environment string   `json:"environment"`
	BaseURL     string   `json:"base_url"`
	APIVersion  string   `json:"api_version,omitempty"`
	AllPassed   bool     `json:"all_passed"`
	Results     []Result `json:"results"`
}

// Failed returns the results that did not succeed
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Success {
			out = append(out, res)
		}
	}
	return out
}

// check describes one fixed endpoint
type check struct {
	path     string
	validate func(body []byte, env config.Environment, report *Report) error
}

// Prober runs the contract checks
type Prober struct {
	client     *httpclient.SaferClient
	logger     *zap.SugaredLogger
	listSchema *jsonschema.Schema
}

// New creates a Prober. client carries the per-request timeout.
func New(client *httpclient.SaferClient, l *zap.SugaredLogger) *Prober {
	return &Prober{
		client:     client,
		logger:     logger.OrNop(l),
		listSchema: mustCompileListShape(),
	}
}

func mustCompileListShape() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(listShapeURL, strings.NewReader(listShapeSchema)); err != nil {
		panic(fmt.Sprintf("probe: list-shape schema: %v", err))
	}
	return c.MustCompile(listShapeURL)
}

// checks returns the fixed endpoint list in probe order
func (p *Prober) checks() []check {
	out := []check{
		{path: HealthPath},
		{path: ReadyPath, validate: p.checkReady},
	}
	for _, t := range entity.Importable() {
		out = append(out, check{path: t.ResourcePath(), validate: p.checkListShape})
	}
	return out
}

// Probe checks every endpoint in order and never returns an error
func (p *Prober) Probe(ctx context.Context, env config.Environment) *Report {
	report := &Report{Environment: env.Name, BaseURL: env.BaseURL, AllPassed: true}

	for _, c := range p.checks() {
		res := p.probeOne(ctx, env, c, report)
		if !res.Success {
			report.AllPassed = false
		}
		report.Results = append(report.Results, res)
	}

	p.logger.Infow("Probe finished",
		logger.FieldEnvironment, env.Name,
		"all_passed", report.AllPassed,
		"failed", len(report.Failed()),
	)
	return report
}

func (p *Prober) probeOne(ctx context.Context, env config.Environment, c check, report *Report) Result {
	res := Result{Endpoint: c.path, Method: http.MethodGet, ExpectedStatus: http.StatusOK}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.URL(c.path), nil)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := p.client.Do(req)
	res.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		res.Error = err.Error()
		p.logger.Warnw("Probe request failed",
			logger.FieldEndpoint, c.path,
			logger.FieldError, err,
		)
		return res
	}
	defer resp.Body.Close()

	res.StatusCode = resp.StatusCode
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		res.Error = fmt.Sprintf("read body: %v", err)
		return res
	}

	if resp.StatusCode != res.ExpectedStatus {
		res.Error = fmt.Sprintf("expected status %d, got %d", res.ExpectedStatus, resp.StatusCode)
		return res
	}
	if c.validate != nil {
		if err := c.validate(body, env, report); err != nil {
			res.Error = err.Error()
			return res
		}
	}

	res.Success = true
	p.logger.Debugw("Probe endpoint ok",
		logger.FieldEndpoint, c.path,
		logger.FieldStatusCode, resp.StatusCode,
		logger.FieldLatencyMS, res.LatencyMS,
	)
	return res
}

func decodeJSON(body []byte) (any, error) {
	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// checkListShape validates a list response body against the shape schema
func (p *Prober) checkListShape(body []byte, _ config.Environment, _ *Report) error {
	v, err := decodeJSON(body)
	if err != nil {
		return fmt.Errorf("contract mismatch: response is not JSON: %v", err)
	}
	if err := p.listSchema.Validate(v); err != nil {
		return fmt.Errorf("contract mismatch: expected an array or an object with an items, data or results array")
	}
	return nil
}

// checkReady enforces min_api_version against the reported version
func (p *Prober) checkReady(body []byte, env config.Environment, report *Report) error {
	var ready struct {
		Version string `json:"version"`
	}
	// Readiness bodies are informational unless a version is required
	if err := json.Unmarshal(body, &ready); err == nil {
		report.APIVersion = ready.Version
	}
	if env.MinAPIVersion == "" {
		return nil
	}

	constraint, err := semver.NewConstraint(env.MinAPIVersion)
	if err != nil {
		return fmt.Errorf("invalid min_api_version %q: %v", env.MinAPIVersion, err)
	}
	if ready.Version == "" {
		return fmt.Errorf("contract mismatch: readiness response has no version, need %s", env.MinAPIVersion)
	}
	v, err := semver.NewVersion(ready.Version)
	if err != nil {
		return fmt.Errorf("contract mismatch: API version %q is not semver", ready.Version)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("contract mismatch: API version %s does not satisfy %s", v, env.MinAPIVersion)
	}
	return nil
}
