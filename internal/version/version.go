// Package version exposes build identification, stamped at release
// time:
//
//	go build -ldflags "-X git.arenberg.net/steen/sitebuilder/internal/version.Version=v0.3.0"
package version

// Version is the release tag, "unknown" for untagged builds.
var Version = "unknown"

// Stamped alongside Version.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)
