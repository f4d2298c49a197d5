package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Pre-compiled injection patterns for argument scanning.
var argInjectionPatterns = []struct {
	re     *regexp.Regexp
	detail string
}{
	{regexp.MustCompile(`(?i)\b(SELECT|INSERT|UPDATE|DELETE|DROP|ALTER|UNION)\b.*\b(FROM|INTO|TABLE|SET|WHERE|ALL)\b`), "SQL injection"},
	{regexp.MustCompile(`(?i);\s*(rm|cat|curl|wget|chmod|chown|sudo|bash|sh|exec)\b`), "command injection"},
	{regexp.MustCompile(`(?i)(\||&&)\s*(rm|cat|curl|wget|chmod|chown|sudo|bash|sh)\b`), "command injection (pipe/chain)"},
	{regexp.MustCompile(`(?i)\$\(.*\)`), "command substitution"},
	{regexp.MustCompile("(?i)`[^`]*`"), "backtick command execution"},
}

// ArgScreener validates call arguments for registered tools: JSON Schema
// conformance when the definition carries a schema, and injection-pattern
// scanning when the definition opts in. Unregistered tools pass through
// untouched. Implements the validator.Screener interface.
type ArgScreener struct {
	registry ToolRegistry
}

// NewArgScreener creates a screener over the given registry.
func NewArgScreener(registry ToolRegistry) *ArgScreener {
	return &ArgScreener{registry: registry}
}

func (s *ArgScreener) Screen(ctx context.Context, toolName string, args map[string]any) (bool, string, error) {
	def, err := s.registry.GetTool(ctx, toolName)
	if err != nil {
		return false, "", fmt.Errorf("Screen: %w", err)
	}
	if def == nil {
		return true, "", nil
	}

	var issues []string

	if def.ArgumentSchema != nil {
		if issue := validateSchema(args, def.ArgumentSchema); issue != "" {
			issues = append(issues, issue)
		}
	}

	if def.ScanForInjection {
		raw, err := json.Marshal(args)
		if err != nil {
			return false, "", fmt.Errorf("Screen: %w", err)
		}
		for _, p := range argInjectionPatterns {
			if p.re.Match(raw) {
				issues = append(issues, "injection pattern in arguments: "+p.detail)
			}
		}
	}

	if len(issues) > 0 {
		return false, strings.Join(issues, "; "), nil
	}
	return true, "", nil
}

// validateSchema checks args against a JSON Schema document. Returns an
// issue string on violation, empty on success. Schema compilation errors
// count as issues as well.
func validateSchema(args map[string]any, schema map[string]any) string {
	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return fmt.Sprintf("invalid argument_schema: %v", err)
	}

	var schemaObj any
	if err := json.Unmarshal(schemaBytes, &schemaObj); err != nil {
		return fmt.Sprintf("schema unmarshal error: %v", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaObj); err != nil {
		return fmt.Sprintf("schema compile error: %v", err)
	}
	sch, err := c.Compile("schema.json")
	if err != nil {
		return fmt.Sprintf("schema compile error: %v", err)
	}

	// Round-trip through JSON so numeric types match what the schema
	// validator expects for decoded documents.
	argBytes, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("arguments are not serializable: %v", err)
	}
	var decoded any
	if err := json.Unmarshal(argBytes, &decoded); err != nil {
		return fmt.Sprintf("arguments are not valid JSON: %v", err)
	}

	if err := sch.Validate(decoded); err != nil {
		return fmt.Sprintf("schema validation failed: %v", err)
	}

	return ""
}
