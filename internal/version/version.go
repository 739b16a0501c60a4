// Package version exposes build metadata set with -ldflags "-X".
package version

//nolint:gochecknoglobals // overwritten by the linker
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// UserAgent identifies the service to upstream backends.
func UserAgent() string {
	return "discovery/" + Version + " (" + Commit + ")"
}
