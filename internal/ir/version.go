package ir

// Version constants for IR schema and engine.
const (
	// IRVersion is the StreamIR schema version.
	IRVersion = "1"

	// EngineVersion is the monitor engine version recorded with every run.
	EngineVersion = "0.1.0"
)
