package version

// Set with -ldflags "-X .../internal/version.Version=... " at build time.
var (
	// Version is the semantic version.
	Version = "dev"
	// Commit is the git commit SHA.
	Commit = "unknown"
	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// Info returns the version line printed by the version subcommand.
func Info() string {
	return Version + " (" + Commit + ", built " + BuildDate + ")"
}
