package policy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"
)

func TestToolAllowed(t *testing.T) {
	p := Policy{
		Roles: map[string]RoleConfig{
			"researcher": {AllowedTools: []string{"ConductResearch", "ResearchComplete"}},
			"admin":      {AllowedTools: []string{"*"}},
			"locked":     {AllowedTools: []string{}},
		},
		DefaultRole: "researcher",
	}

	tests := []struct {
		name string
		role string
		tool string
		want bool
	}{
		{"literal member", "researcher", "ConductResearch", true},
		{"not a member", "researcher", "DeleteEverything", false},
		{"no prefix matching", "researcher", "ConductResearchX", false},
		{"wildcard allows anything", "admin", "NeverSeenBefore", true},
		{"empty allow list", "locked", "ConductResearch", false},
		{"unknown role", "ghost", "ConductResearch", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.ToolAllowed(tt.role, tt.tool); got != tt.want {
				t.Errorf("ToolAllowed(%q, %q) = %v, want %v", tt.role, tt.tool, got, tt.want)
			}
		})
	}
}

func TestStore_FallbackOnMissingFile(t *testing.T) {
	s := NewStore(FileSource{Path: "/nonexistent/tool_policy.json"}, zap.NewNop())

	p := s.Load()
	if p.DefaultRole != DefaultRole {
		t.Errorf("default role = %q, want %q", p.DefaultRole, DefaultRole)
	}
	if p.DuplicateWindowSeconds != 300 {
		t.Errorf("duplicate window = %d, want 300", p.DuplicateWindowSeconds)
	}
	if len(p.Roles) != 0 {
		t.Errorf("expected no roles, got %d", len(p.Roles))
	}
}

func TestStore_FallbackOnMalformedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tool_policy.json")
	if err := os.WriteFile(path, []byte(`{"roles": [not json`), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(FileSource{Path: path}, zap.NewNop())
	p := s.Load()

	// Full fallback, never a partial merge.
	if p.DefaultRole != DefaultRole || len(p.Roles) != 0 {
		t.Errorf("expected full default policy, got %+v", p)
	}
}

func TestStore_PartialDocumentFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tool_policy.json")
	doc := `{"roles": {"researcher": {"allowed_tools": ["ConductResearch"]}}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(FileSource{Path: path}, zap.NewNop())
	p := s.Load()

	if !p.ToolAllowed("researcher", "ConductResearch") {
		t.Error("configured role lost during load")
	}
	if p.DefaultRole != DefaultRole {
		t.Errorf("absent default_role should fall back, got %q", p.DefaultRole)
	}
	if p.DuplicateWindowSeconds != 300 {
		t.Errorf("absent duplicate_window_seconds should fall back, got %d", p.DuplicateWindowSeconds)
	}
}

func TestStore_ExplicitZeroWindowHonored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tool_policy.json")
	doc := `{"duplicate_window_seconds": 0}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(FileSource{Path: path}, zap.NewNop())
	if got := s.Load().DuplicateWindowSeconds; got != 0 {
		t.Errorf("explicit zero window = %d, want 0", got)
	}
}

// countingSource counts Load calls to verify single-initialization.
type countingSource struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (c *countingSource) Load(_ context.Context) (Policy, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.fail {
		return Policy{}, errors.New("source down")
	}
	return Default(), nil
}

func TestStore_LoadsExactlyOnce(t *testing.T) {
	src := &countingSource{}
	s := NewStore(src, zap.NewNop())

	for i := 0; i < 10; i++ {
		s.Load()
	}
	if src.calls != 1 {
		t.Errorf("source loaded %d times, want 1", src.calls)
	}
}

func TestStore_ConcurrentFirstLoadConverges(t *testing.T) {
	src := &countingSource{}
	s := NewStore(src, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Load()
		}()
	}
	wg.Wait()

	if src.calls != 1 {
		t.Errorf("concurrent first loads hit the source %d times, want 1", src.calls)
	}
}

func TestStore_ResetRearms(t *testing.T) {
	src := &countingSource{}
	s := NewStore(src, zap.NewNop())

	s.Load()
	s.Reset()
	s.Load()

	if src.calls != 2 {
		t.Errorf("source loaded %d times after reset, want 2", src.calls)
	}
}

func TestStore_SourceErrorAbsorbed(t *testing.T) {
	src := &countingSource{fail: true}
	s := NewStore(src, zap.NewNop())

	p := s.Load()
	if p.DefaultRole != DefaultRole {
		t.Errorf("failed load should fall back to defaults, got %+v", p)
	}
	// The failure result is cached too.
	s.Load()
	if src.calls != 1 {
		t.Errorf("source retried %d times, want 1", src.calls)
	}
}
