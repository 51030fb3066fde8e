package ir

// Version constants for the snapshot format and the module.
const (
	// IRVersion is the snapshot schema version stored alongside drafts.
	IRVersion = "1"

	// Version is the formguard release.
	Version = "0.1.0"
)
