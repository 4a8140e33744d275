// Package version carries build metadata, set with -ldflags at build time:
//
//	go build -ldflags "-X github.com/banshee-data/autoaim/internal/version.Version=v0.3.0 \
//	  -X github.com/banshee-data/autoaim/internal/version.GitSHA=$(git rev-parse --short HEAD)"
package version

import "fmt"

var (
	// Version is the release tag.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String returns "version (sha, built time)".
func String() string {
	return fmt.Sprintf("%s (%s, built %s)", Version, GitSHA, BuildTime)
}
