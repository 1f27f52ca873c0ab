// Package version reports which build of deepsearch is running.
//
// The commit is resolved once at startup: an -ldflags override takes
// precedence, then the VCS revision stamped into the build info, then
// "dev" for builds carrying neither (go test, source tarballs).
package version

import "runtime/debug"

// AppName names this service in version strings and client handshakes.
const AppName = "deepsearch"

// commitOverride may be injected at build time for container builds
// where .git is unavailable:
//
//	go build -ldflags "-X github.com/openprobe/deepsearch/pkg/version.commitOverride=$COMMIT"
var commitOverride string

// GitCommit is the short commit hash identifying this build.
var GitCommit = resolveCommit()

// Full reports "deepsearch/<commit>", suitable for User-Agent headers.
func Full() string {
	return AppName + "/" + GitCommit
}

func resolveCommit() string {
	if commitOverride != "" {
		return shorten(commitOverride)
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return shorten(s.Value)
			}
		}
	}
	return "dev"
}

// shorten trims a full 40-char revision to the familiar 8-char form.
func shorten(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}
