// Package version holds the jsonopt release information.
package version

// Set at build time:
// go build -ldflags "-X jsonopt/internal/version.Version=1.0.0 -X jsonopt/internal/version.Commit=abc123"
var (
	// Version is the semantic version of jsonopt
	Version = "1.0.0"

	// Commit is the git commit hash (set at build time)
	Commit = "unknown"

	// BuildDate is the build timestamp (set at build time)
	BuildDate = "unknown"
)

// Info returns a one-line version string
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}

// Full returns complete version information
func Full() string {
	return "jsonopt version " + Version + "\n" +
		"Commit: " + Commit + "\n" +
		"Built: " + BuildDate
}
