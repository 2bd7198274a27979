// Package version holds build-time version information.
package version

// Version is the application version, overridden at build time via
// -ldflags "-X github.com/amckee/cantata/internal/version.Version=...".
var Version = "dev"
