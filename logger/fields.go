package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for structured logging.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Run identity
	FieldRunID       = "run_id"
	FieldEnvironment = "environment"
	FieldEntityType  = "entity_type"
	FieldMode        = "mode"
	FieldSource      = "source"
	FieldSourceHash  = "source_hash"

	// Records
	FieldRecordIndex = "record_index"
	FieldExternalRef = "external_ref"

	// HTTP
	FieldEndpoint   = "endpoint"
	FieldMethod     = "method"
	FieldStatusCode = "status_code"
	FieldAttempt    = "attempt"

	// Timing
	FieldDurationMS = "duration_ms"
	FieldLatencyMS  = "latency_ms"

	// Errors
	FieldError = "error"

	// Counts
	FieldCount    = "count"
	FieldImported = "imported"
	FieldSkipped  = "skipped"
	FieldFailed   = "failed"

	// Files and paths
	FieldPath = "path"
)

type contextKey string

const runIDKey contextKey = "logger_run_id"

// WithRunID adds a pipeline run ID to the context for logging
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with With/Infow/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	if runID, ok := ctx.Value(runIDKey).(string); ok && runID != "" {
		return []interface{}{FieldRunID, runID}
	}
	return nil
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	orch := pipeline.New(pipeline.Deps{
//	    Logger: logger.ComponentLogger("pipeline"),
//	})
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l == nil {
		return zap.NewNop().Sugar()
	}
	return l
}
