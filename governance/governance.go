// Package governance composes classification, risk scoring and
// compliance checks into one analysis per entity. It has no state and
// no side effects.
package governance

import (
	"strings"
	"time"

	"github.com/teranos/govpipe/entity"
	"github.com/teranos/govpipe/errors"
	"github.com/teranos/govpipe/governance/classify"
	"github.com/teranos/govpipe/governance/compliance"
	"github.com/teranos/govpipe/governance/risk"
)

// ErrAsOfRequired is returned when Options.AsOf is zero
var ErrAsOfRequired = errors.New("as-of time is required")

// textFields are joined, in this order, as the classifier input
var textFields = []string{"title", "description", "root_cause", "findings", "response_summary", "location"}

// Options for one analysis
type Options struct {
	// AsOf is the reference time for risk ageing
	AsOf time.Time
	// ExtractPII includes verbatim PII findings in the classification
	ExtractPII bool
}

// Analysis is the combined governance view of one entity
type Analysis struct {
	EntityType     entity.Type            `json:"entity_type"`
	Classification classify.Result        `json:"classification"`
	Risk           *risk.Assessment       `json:"risk"`
	Compliance     []compliance.Violation `json:"compliance"`
}

// Engine runs the three analyses
type Engine struct {
	classifier *classify.Classifier
	scorer     *risk.Scorer
	compliance *compliance.Engine
}

// NewEngine creates an Engine
func NewEngine() *Engine {
	return &Engine{
		classifier: classify.New(),
		scorer:     risk.NewScorer(),
		compliance: compliance.NewEngine(),
	}
}

// Analyze classifies, scores and checks fields as an entity of type et
func (e *Engine) Analyze(fields map[string]any, et entity.Type, opts Options) (*Analysis, error) {
	if opts.AsOf.IsZero() {
		return nil, ErrAsOfRequired
	}

	violations, err := e.compliance.Check(fields, et)
	if err != nil {
		return nil, err
	}
	assessment, err := e.scorer.Score(fields, et, opts.AsOf)
	if err != nil {
		return nil, err
	}

	return &Analysis{
		EntityType:     et,
		Classification: e.classifier.Classify(Text(fields), classify.Options{ExtractPII: opts.ExtractPII}),
		Risk:           assessment,
		Compliance:     violations,
	}, nil
}

// AnalyzeIncident analyzes an incident
func (e *Engine) AnalyzeIncident(fields map[string]any, opts Options) (*Analysis, error) {
	return e.Analyze(fields, entity.Incident, opts)
}

// AnalyzeComplaint analyzes a complaint
func (e *Engine) AnalyzeComplaint(fields map[string]any, opts Options) (*Analysis, error) {
	return e.Analyze(fields, entity.Complaint, opts)
}

// AnalyzeCollision analyzes a collision
func (e *Engine) AnalyzeCollision(fields map[string]any, opts Options) (*Analysis, error) {
	return e.Analyze(fields, entity.Collision, opts)
}

// AnalyzeAnalysis analyzes a root-cause analysis record
func (e *Engine) AnalyzeAnalysis(fields map[string]any, opts Options) (*Analysis, error) {
	return e.Analyze(fields, entity.Analysis, opts)
}

// Text is the free text of an entity that the classifier sees
func Text(fields map[string]any) string {
	var parts []string
	for _, name := range textFields {
		if s, ok := fields[name].(string); ok && strings.TrimSpace(s) != "" {
			parts = append(parts, strings.TrimSpace(s))
		}
	}
	return strings.Join(parts, "\n")
}
