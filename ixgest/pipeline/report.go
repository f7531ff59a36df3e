package pipeline

import (
	"github.com/teranos/govpipe/ixgest/validate"
)

// ValidationReport is the validation.json artifact. Only records that are
// not strictly valid are listed.
type ValidationReport struct {
	EntityType string             `json:"entity_type"`
	RunID      string             `json:"run_id"`
	Total      int                `json:"total"`
	Valid      int                `json:"valid"`
	Invalid    int                `json:"invalid"`
	Warnings   int                `json:"warnings"`
	Records    []validate.Outcome `json:"records"`
}

// RecordNote explains why one record was skipped or failed
type RecordNote struct {
	Index       int    `json:"index"`
	ExternalRef string `json:"external_ref,omitempty"`
	Reason      string `json:"reason"`
}

// Stats is the stats.json artifact. In dry-run mode Imported and Skipped
// count records that would be imported or skipped.
type Stats struct {
	EntityType string       `json:"entity_type"`
	RunID      string       `json:"run_id"`
	Mode       Mode         `json:"mode"`
	Imported   int          `json:"imported"`
	Skipped    int          `json:"skipped"`
	Failed     int          `json:"failed"`
	Failures   []RecordNote `json:"failures"`
	Skips      []RecordNote `json:"skips"`
}

func (s *Stats) fail(index int, ref, reason string) {
	s.Failed++
	s.Failures = append(s.Failures, RecordNote{Index: index, ExternalRef: ref, Reason: reason})
}

func (s *Stats) skip(index int, ref, reason string) {
	s.Skipped++
	s.Skips = append(s.Skips, RecordNote{Index: index, ExternalRef: ref, Reason: reason})
}

func newValidationReport(entityType, runID string, outcomes []validate.Outcome) *ValidationReport {
	sum := validate.Summarize(outcomes)
	report := &ValidationReport{
		EntityType: entityType,
		RunID:      runID,
		Total:      sum.Total,
		Valid:      sum.Valid,
		Invalid:    sum.Invalid,
		Warnings:   sum.Warnings,
		Records:    []validate.Outcome{},
	}
	for _, o := range outcomes {
		if o.Status != validate.StatusValid {
			report.Records = append(report.Records, o)
		}
	}
	return report
}
