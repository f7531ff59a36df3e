package logger

import "go.uber.org/zap/zapcore"

// Verbosity level constants for CLI flag counts.
//
// These levels also gate output categories; see output.go.
const (
	VerbosityUser  = 0 // No flags: results and errors only
	VerbosityInfo  = 1 // -v: + progress, probe results
	VerbosityDebug = 2 // -vv: + per-record outcomes, HTTP calls
)

// VerbosityToLevel maps verbosity flags (-v, -vv, etc.) to zap log levels
//
//	0 (none)  -> WarnLevel
//	1 (-v)    -> InfoLevel
//	2+ (-vv)  -> DebugLevel
func VerbosityToLevel(verbosity int) zapcore.Level {
	switch {
	case verbosity <= VerbosityUser:
		return zapcore.WarnLevel
	case verbosity == VerbosityInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
