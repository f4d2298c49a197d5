package registry

import "context"

// ToolRegistry provides tool definitions by name.
type ToolRegistry interface {
	// GetTool returns the definition for a tool, or nil if the tool is
	// not registered.
	GetTool(ctx context.Context, toolName string) (*ToolDefinition, error)
}

// StaticRegistry serves definitions from a fixed map. Used for embedding
// the engine without a database, and for tests.
type StaticRegistry struct {
	tools map[string]*ToolDefinition
}

// NewStaticRegistry creates a registry over the given definitions.
func NewStaticRegistry(defs []*ToolDefinition) *StaticRegistry {
	tools := make(map[string]*ToolDefinition, len(defs))
	for _, d := range defs {
		tools[d.ToolName] = d
	}
	return &StaticRegistry{tools: tools}
}

func (r *StaticRegistry) GetTool(_ context.Context, toolName string) (*ToolDefinition, error) {
	return r.tools[toolName], nil
}
