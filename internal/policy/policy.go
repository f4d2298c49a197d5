package policy

import "time"

// Wildcard is the sentinel allow-list entry meaning "every tool".
// Matching is exact-string only; there are no prefix or glob semantics.
const Wildcard = "*"

// Built-in fallback values used when the policy source is missing a field
// or cannot be read at all.
const (
	DefaultRole            = "researcher"
	DefaultDuplicateWindow = 300 * time.Second
)

// Policy maps roles to their permitted tools. Immutable once loaded; the
// Store hands out the same instance to every caller for the process
// lifetime.
type Policy struct {
	Roles                  map[string]RoleConfig
	DefaultRole            string
	DuplicateWindowSeconds int
}

// RoleConfig holds the allow-list for a single role. An empty list means
// the role may call nothing.
type RoleConfig struct {
	AllowedTools []string
}

// Default returns the built-in fallback policy: no roles configured,
// default role "researcher", five minute duplicate window.
func Default() Policy {
	return Policy{
		Roles:                  map[string]RoleConfig{},
		DefaultRole:            DefaultRole,
		DuplicateWindowSeconds: int(DefaultDuplicateWindow / time.Second),
	}
}

// DuplicateWindow returns the duplicate-suppression window as a Duration.
func (p Policy) DuplicateWindow() time.Duration {
	return time.Duration(p.DuplicateWindowSeconds) * time.Second
}

// ToolAllowed reports whether the role may invoke the named tool.
// Unknown roles and roles with an empty allow-list may invoke nothing.
// The wildcard entry permits any tool name; otherwise the name must be a
// literal member of the allow-list.
func (p Policy) ToolAllowed(role, toolName string) bool {
	cfg, ok := p.Roles[role]
	if !ok || len(cfg.AllowedTools) == 0 {
		return false
	}
	for _, t := range cfg.AllowedTools {
		if t == Wildcard || t == toolName {
			return true
		}
	}
	return false
}
