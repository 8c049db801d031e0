// Package buildinfo carries version metadata stamped at link time:
//
//	go build -ldflags "-X github.com/m3rciful/savdobot/core/buildinfo.Version=v0.3.0 \
//	  -X github.com/m3rciful/savdobot/core/buildinfo.Commit=$(git rev-parse --short HEAD)"
package buildinfo

import "fmt"

var (
	// Version reports the semantic version or tag of the build.
	Version = "dev"
	// Commit reports the source control commit used for the build.
	Commit = "local"
	// Date reports the build timestamp in RFC3339 format.
	Date = ""
)

// String renders the build as "version (commit)".
func String() string {
	return fmt.Sprintf("%s (%s)", Version, Commit)
}
