// Package compliance checks entities against a fixed table of rules.
//
// Every rule is a named Go function registered in the table in rules.go.
// There is no way to load or evaluate a rule from data; adding a rule is
// a code change.
package compliance

import (
	"github.com/teranos/govpipe/entity"
	"github.com/teranos/govpipe/errors"
)

// Severity of a violation
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// ErrUnknownEntityType is returned for types without a rule set
var ErrUnknownEntityType = entity.ErrUnknownType

// RuleFunc inspects an entity's fields and returns a message when the rule is violated
type RuleFunc func(fields map[string]any) (message string, violated bool)

// Rule is one entry of the rule table
type Rule struct {
	ID          string
	Severity    Severity
	Description string
	Fn          RuleFunc
}

// Violation is one failed rule
type Violation struct {
	EntityType entity.Type `json:"entity_type"`
	RuleID     string      `json:"rule_id"`
	Severity   Severity    `json:"severity"`
	Message    string      `json:"message"`
}

// Engine evaluates the rule table. It holds no mutable state.
type Engine struct {
	rules map[entity.Type][]Rule
}

// NewEngine creates an Engine over the built-in rule table
func NewEngine() *Engine {
	return &Engine{rules: ruleTable}
}

// Check runs every rule for et, in table order, and returns all
// violations. The result is empty, not nil, for a compliant entity.
func (e *Engine) Check(fields map[string]any, et entity.Type) ([]Violation, error) {
	rules, ok := e.rules[et]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownEntityType, "%q", et)
	}
	if fields == nil {
		fields = map[string]any{}
	}

	violations := []Violation{}
	for _, r := range rules {
		msg, violated := r.Fn(fields)
		if !violated {
			continue
		}
		violations = append(violations, Violation{
			EntityType: et,
			RuleID:     r.ID,
			Severity:   r.Severity,
			Message:    msg,
		})
	}
	return violations, nil
}

// Rules returns the rule IDs registered for et, in evaluation order
func (e *Engine) Rules(et entity.Type) []string {
	rules := e.rules[et]
	if rules == nil {
		return nil
	}
	ids := make([]string, len(rules))
	for i, r := range rules {
		ids[i] = r.ID
	}
	return ids
}

// Describe returns the rules registered for et
func (e *Engine) Describe(et entity.Type) []Rule {
	return append([]Rule(nil), e.rules[et]...)
}

// Errors filters violations down to ERROR severity
func Errors(violations []Violation) []Violation {
	var out []Violation
	for _, v := range violations {
		if v.Severity == SeverityError {
			out = append(out, v)
		}
	}
	return out
}
