package logger

// OutputCategory is a kind of CLI output that appears only from a given
// verbosity. Log levels filter by severity; categories filter by what is shown.
//
//	0 (default) - run summary, first failures, fatal errors with hints
//	1 (-v)      - + probe endpoint table for runs that passed the probe
//	2 (-vv)     - + every per-record failure and skip reason
type OutputCategory int

const (
	OutputProbeDetail OutputCategory = iota
	OutputRecordDetail
)

var categoryLevels = map[OutputCategory]int{
	OutputProbeDetail:  VerbosityInfo,
	OutputRecordDetail: VerbosityDebug,
}

// ShouldOutput reports whether category is shown at the given verbosity
func ShouldOutput(verbosity int, category OutputCategory) bool {
	minLevel, ok := categoryLevels[category]
	if !ok {
		return false
	}
	return verbosity >= minLevel
}
