package ir

// Version constants for the store schema and engine.
const (
	// SchemaVersion is the recipient store schema version (PRAGMA user_version).
	SchemaVersion = 1

	// EngineVersion is the rmerge engine version.
	EngineVersion = "0.1.0"
)
