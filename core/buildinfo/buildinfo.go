package buildinfo

// Set at build time via -ldflags, for example:
//
//	-X 'github.com/m3rciful/intakebot/core/buildinfo.Version=v0.3.0'
//	-X 'github.com/m3rciful/intakebot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/intakebot/core/buildinfo.Date=2026-10-01T09:00:00Z'
var (
	// Version is the release tag of the binary.
	Version = "dev"
	// Commit is the VCS revision the binary was built from.
	Commit = "local"
	// Date is the RFC3339 build timestamp; empty for local builds.
	Date = ""
)

// String renders a one-line build description for CLI output.
func String() string {
	s := Version + " (" + Commit
	if Date != "" {
		s += ", " + Date
	}
	return s + ")"
}
