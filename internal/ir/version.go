package ir

// Version constants for the persisted document and the engine.
const (
	// DocumentVersion is written on every saved graph.
	DocumentVersion = "1"

	// EngineVersion is the Lumo engine version.
	EngineVersion = "0.1.0"
)
