package version

import (
	"fmt"
	"runtime"
)

// Build information, set at build time via ldflags:
//
//	go build -ldflags "-X github.com/teranos/govpipe/version.Version=1.4.0"
var (
	CommitHash = "dev"
	BuildTime  = "unknown"
	Version    = "dev"
)

// Info contains version and build information
type Info struct {
	CommitHash string `json:"commit_hash"`
	BuildTime  string `json:"build_time"`
	Version    string `json:"version"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

// Get returns the current version information
func Get() Info {
	return Info{
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
		Version:    Version,
		GoVersion:  runtime.Version(),
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns a human-readable version string
func (i Info) String() string {
	return fmt.Sprintf("pipeline %s (commit %s, built %s)", i.Version, i.Short(), i.BuildTime)
}

// Short returns a short version string with just the commit hash
func (i Info) Short() string {
	if len(i.CommitHash) >= 7 {
		return i.CommitHash[:7]
	}
	return i.CommitHash
}

// UserAgent is sent on every outbound API request
func (i Info) UserAgent() string {
	return fmt.Sprintf("govpipe/%s (%s)", i.Version, i.Short())
}
