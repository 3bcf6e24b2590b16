package app

import "fmt"

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	GitTag    = ""
	BuildTime = "unknown"
)

// VersionInfo contains version information for the application.
type VersionInfo struct {
	Version   string
	GitCommit string
	GitTag    string
	BuildTime string
}

// GetVersionInfo returns the current version information.
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		GitTag:    GitTag,
		BuildTime: BuildTime,
	}
}

func (v VersionInfo) name() string {
	if v.GitTag != "" {
		return v.GitTag
	}
	return v.Version
}

// Release returns the release identifier reported to Sentry.
func (v VersionInfo) Release() string {
	return "avscore@" + v.name()
}

// FullString returns a detailed version string for logging.
func (v VersionInfo) FullString() string {
	return fmt.Sprintf("AVS Core %s (commit: %s, built: %s)", v.name(), v.GitCommit, v.BuildTime)
}
