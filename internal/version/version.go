// Package version carries the tagscan build identity stamped at link
// time via ldflags.
package version

// Build-time variables set by ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns the version, git commit, and build date of this tagscan
// binary.
func Info() (string, string, string) {
	return Version, GitCommit, BuildDate
}
