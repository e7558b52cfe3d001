// Package version exposes build-time version information.
// The variables are meant to be overridden via -ldflags at build time.
package version

// Build-time variables, overridden by the linker.
var (
	// Version is the semantic version of the binary.
	Version = "1.0.0"
	// Commit is the git commit the binary was built from.
	Commit = "none"
	// BuildTime is the timestamp of the build.
	BuildTime = "unknown"
)

// Short returns just the version number.
func Short() string {
	return Version
}

// Full returns the version, commit and build timestamp in one line.
func Full() string {
	return "version: " + Version + ", commit: " + Commit + ", built at: " + BuildTime
}
