package lib

import (
	"runtime/debug"
	"strings"
)

// Set through -ldflags at build time.
var (
	Version   = "v0.0.1"
	Commit    = ""
	Timestamp = ""
)

// VersionInfo renders the version block printed by the CLI. Missing commit
// data is filled from the embedded VCS build info when available.
func VersionInfo() string {
	commit, timestamp := Commit, Timestamp
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "" {
					commit = s.Value
				}
			case "vcs.time":
				if timestamp == "" {
					timestamp = s.Value
				}
			}
		}
	}
	if commit == "" {
		commit = "unknown"
	}
	if timestamp == "" {
		timestamp = "unknown"
	}

	var sb strings.Builder
	_, _ = sb.WriteString("Version       " + Version)
	_, _ = sb.WriteString("\n")
	_, _ = sb.WriteString("Git Commit    " + commit)
	_, _ = sb.WriteString("\n")
	_, _ = sb.WriteString("Git Timestamp " + timestamp)
	_, _ = sb.WriteString("\n")

	return sb.String()
}
