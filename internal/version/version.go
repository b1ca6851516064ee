// Package version reports the build version of the zubwifi binaries.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/muurk/zubwifi/internal/version.Version=v0.3.0 \
//	                   -X github.com/muurk/zubwifi/internal/version.Commit=abc1234"
//
// Unset values are filled from the module's VCS build info, then "dev" and
// "unknown".
var (
	Version = ""
	Commit  = ""
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		Version, Commit = fromBuildInfo(info, Version, Commit)
	}
	if Version == "" {
		Version = "dev"
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// fromBuildInfo fills whichever of version and commit are empty
func fromBuildInfo(info *debug.BuildInfo, version, commit string) (string, string) {
	var revision, modified, vcsTime string
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			modified = s.Value
		case "vcs.time":
			vcsTime = s.Value
		}
	}

	if commit == "" && revision != "" {
		commit = revision
		if len(commit) > 7 {
			commit = commit[:7]
		}
		if modified == "true" {
			commit += "-dirty"
		}
	}

	if version == "" {
		switch {
		case info.Main.Version != "" && info.Main.Version != "(devel)":
			version = info.Main.Version
		case len(vcsTime) >= 10:
			// vcs.time is RFC 3339; keep the date.
			version = "dev-" + vcsTime[:4] + vcsTime[5:7] + vcsTime[8:10]
		}
	}
	return version, commit
}

// Full returns the version with its commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// Banner returns the line printed by the version commands
func Banner(binary string) string {
	return fmt.Sprintf("%s %s %s/%s %s", binary, Full(), runtime.GOOS, runtime.GOARCH, runtime.Version())
}
