package registry

// ToolDefinition is an optional per-tool record carrying argument-level
// screening configuration. Tools without a definition skip screening
// entirely. Loaded from the warden_tools table or a static map.
type ToolDefinition struct {
	ToolName         string
	Description      string
	ArgumentSchema   map[string]any // JSON Schema for args, nil if not set
	ScanForInjection bool
}
