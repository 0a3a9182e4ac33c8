// Package version holds build-time version information, injected via
// -ldflags at build time the way the teacher's cmd/dittofs/commands root
// injects Version/Commit/Date.
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the tagged release version, or "dev" outside a release build.
	Version = "dev"

	// Commit is the git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// String renders a one-line version banner for both cmd/rsm and cmd/ccu.
func String(binary string) string {
	return fmt.Sprintf("%s %s (commit %s, built %s, %s/%s, %s)",
		binary, Version, Commit, Date, runtime.GOOS, runtime.GOARCH, runtime.Version())
}
