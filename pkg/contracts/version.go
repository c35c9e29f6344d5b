package contracts

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is the release of the engine and its binaries.
const Version = "1.0.0"

const (
	// DataFormatVersion changes whenever the master CSV columns change.
	DataFormatVersion = "v2"
	// APIVersion covers the /api routes and the /ws event payloads.
	APIVersion = "v1"
)

// Overridden at link time:
//
//	-ldflags "-X pharmapulse/pkg/contracts.BuildTime=... -X pharmapulse/pkg/contracts.GitCommit=..."
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionInfo is served by /api/version and printed by -version.
type VersionInfo struct {
	Version      string `json:"version"`
	BuildTime    string `json:"build_time"`
	GitCommit    string `json:"git_commit"`
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	DataFormat   string `json:"data_format"`
	APIVersion   string `json:"api_version"`
}

// GetVersionInfo falls back to the VCS revision embedded by the Go
// toolchain when GitCommit was not set at link time.
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:      Version,
		BuildTime:    BuildTime,
		GitCommit:    commit(),
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		DataFormat:   DataFormatVersion,
		APIVersion:   APIVersion,
	}
}

func commit() string {
	if GitCommit != "unknown" {
		return GitCommit
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return s.Value
			}
		}
	}
	return GitCommit
}

// GetVersionString returns e.g. "Pharma Pulse v1.0.0".
func GetVersionString() string {
	return "Pharma Pulse v" + Version
}

// GetFullVersionString adds build metadata to GetVersionString.
func GetFullVersionString() string {
	v := GetVersionInfo()
	return fmt.Sprintf("%s (data %s, api %s, commit %s, built %s, %s %s/%s)",
		GetVersionString(), v.DataFormat, v.APIVersion, v.GitCommit, v.BuildTime,
		v.GoVersion, v.OS, v.Architecture)
}
