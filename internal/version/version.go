// Package version carries build identification stamped in via ldflags.
package version

import "fmt"

var (
	// Version is the release version, "dev" for local builds.
	Version = "dev"
	// GitSHA is the git commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String formats the build identity for -version output and telemetry.
func String() string {
	return fmt.Sprintf("sitscope %s (%s, built %s)", Version, GitSHA, BuildTime)
}
