package version

import "fmt"

// Version is the sitesnap release, set at build time:
// go build -ldflags "-X git.home.luguber.info/inful/sitesnap/internal/version.Version=v1.0.0".
var Version = "unknown"

// Build metadata, set the same way as Version.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version with its build metadata.
func String() string {
	return fmt.Sprintf("sitesnap %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
