package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Source loads the raw policy document. Implementations return an error
// when the document is unreadable or unparseable; the Store maps every
// error to the built-in default policy.
type Source interface {
	Load(ctx context.Context) (Policy, error)
}

// Store caches the policy loaded from its Source. The first Load performs
// the read; every later Load returns the cached instance. Concurrent first
// loads are serialized so all callers converge on one Policy value.
type Store struct {
	source Source
	logger *zap.Logger

	mu  sync.Mutex
	cur atomic.Pointer[Policy]
}

// NewStore creates a Store over the given source.
func NewStore(source Source, logger *zap.Logger) *Store {
	return &Store{source: source, logger: logger}
}

// Load returns the cached policy, reading from the source on first use.
// It never fails: a source error falls back to Default() and is logged,
// not surfaced. Double-checked: the atomic pointer is the fast path, the
// mutex guards the one-time load.
func (s *Store) Load() Policy {
	if p := s.cur.Load(); p != nil {
		return *p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.cur.Load(); p != nil {
		return *p
	}

	p, err := s.source.Load(context.Background())
	if err != nil {
		s.logger.Warn("policy load failed, using built-in defaults", zap.Error(err))
		p = Default()
	}

	s.cur.Store(&p)
	return p
}

// Reset clears the cached policy so the next Load re-reads the source.
// Test hook; production code never resets.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.Store(nil)
}

// doc is the wire shape of the policy document. Pointer fields distinguish
// "absent" from explicit zero values so absent fields can take the
// built-in defaults.
type doc struct {
	Roles                  map[string]roleDoc `json:"roles"`
	DefaultRole            string             `json:"default_role"`
	DuplicateWindowSeconds *int               `json:"duplicate_window_seconds"`
}

type roleDoc struct {
	AllowedTools []string `json:"allowed_tools"`
}

// parseDocument decodes a policy document and fills absent fields with the
// built-in defaults. A document that fails to decode is an error: the
// caller falls back to the full default policy, never a partial merge.
func parseDocument(raw []byte) (Policy, error) {
	var d doc
	if err := json.Unmarshal(raw, &d); err != nil {
		return Policy{}, fmt.Errorf("parseDocument: %w", err)
	}

	p := Default()
	for name, rc := range d.Roles {
		p.Roles[name] = RoleConfig{AllowedTools: rc.AllowedTools}
	}
	if d.DefaultRole != "" {
		p.DefaultRole = d.DefaultRole
	}
	if d.DuplicateWindowSeconds != nil && *d.DuplicateWindowSeconds >= 0 {
		p.DuplicateWindowSeconds = *d.DuplicateWindowSeconds
	}
	return p, nil
}

// FileSource reads the policy document from a JSON file on disk.
type FileSource struct {
	Path string
}

func (f FileSource) Load(_ context.Context) (Policy, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return Policy{}, fmt.Errorf("FileSource.Load: %w", err)
	}
	return parseDocument(raw)
}

// StaticSource serves a fixed policy. Used for embedding and tests.
type StaticSource struct {
	Policy Policy
}

func (s StaticSource) Load(_ context.Context) (Policy, error) {
	return s.Policy, nil
}
