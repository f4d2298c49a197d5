package validator

// ResolveRole extracts the acting role from a request-scoped config map.
// Lookup order: configurable.role, then metadata.role, then the policy's
// default role. Any missing or malformed level silently falls through to
// the next source, so the result is never empty.
func (v *Validator) ResolveRole(conf map[string]any) string {
	if role := nestedString(conf, "configurable", "role"); role != "" {
		return role
	}
	if role := nestedString(conf, "metadata", "role"); role != "" {
		return role
	}
	return v.policies.Load().DefaultRole
}

// FilterToolsByRole returns only the descriptors the resolved role may
// invoke. Descriptors with an empty name are dropped; unknown objects are
// kept out conservatively.
func (v *Validator) FilterToolsByRole(conf map[string]any, tools []ToolDescriptor) []ToolDescriptor {
	role := v.ResolveRole(conf)
	pol := v.policies.Load()

	filtered := make([]ToolDescriptor, 0, len(tools))
	for _, t := range tools {
		name := t.ToolName()
		if name == "" {
			continue
		}
		if pol.ToolAllowed(role, name) {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

// nestedString reads conf[outer][inner] as a string, tolerating absence
// or the wrong type at any level.
func nestedString(conf map[string]any, outer, inner string) string {
	sub, ok := conf[outer].(map[string]any)
	if !ok {
		return ""
	}
	s, _ := sub[inner].(string)
	return s
}
