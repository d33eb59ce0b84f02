// Package version carries build metadata for the arbengine binary.
package version

// Stamped at build time via
// -ldflags "-X arb-engine/internal/version.Version=v1.2.3 …".
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)
