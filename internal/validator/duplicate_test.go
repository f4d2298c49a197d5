package validator

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestFingerprint_ArgumentOrderIndependent(t *testing.T) {
	a := ToolCall{Name: "A", Args: map[string]any{"x": 1, "y": 2}}
	b := ToolCall{Name: "A", Args: map[string]any{"y": 2, "x": 1}}

	fpA, err := Fingerprint(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fpB, err := Fingerprint(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fpA != fpB {
		t.Errorf("fingerprints differ for semantically identical args: %s vs %s", fpA, fpB)
	}
}

func TestFingerprint_NestedOrderIndependent(t *testing.T) {
	a := ToolCall{Name: "A", Args: map[string]any{
		"outer": map[string]any{"p": 1, "q": 2},
	}}
	b := ToolCall{Name: "A", Args: map[string]any{
		"outer": map[string]any{"q": 2, "p": 1},
	}}

	fpA, _ := Fingerprint(a)
	fpB, _ := Fingerprint(b)
	if fpA != fpB {
		t.Error("nested map key order changed the fingerprint")
	}
}

func TestFingerprint_Distinguishes(t *testing.T) {
	tests := []struct {
		name string
		a, b ToolCall
	}{
		{"different names", ToolCall{Name: "A"}, ToolCall{Name: "B"}},
		{"different values", ToolCall{Name: "A", Args: map[string]any{"x": 1}}, ToolCall{Name: "A", Args: map[string]any{"x": 2}}},
		{"different keys", ToolCall{Name: "A", Args: map[string]any{"x": 1}}, ToolCall{Name: "A", Args: map[string]any{"y": 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fpA, _ := Fingerprint(tt.a)
			fpB, _ := Fingerprint(tt.b)
			if fpA == fpB {
				t.Error("distinct calls produced the same fingerprint")
			}
		})
	}
}

func TestFingerprint_UnserializableArgs(t *testing.T) {
	call := ToolCall{Name: "A", Args: map[string]any{"ch": make(chan int)}}
	if _, err := Fingerprint(call); err == nil {
		t.Error("expected error for unserializable args")
	}
}

func TestSuppressor_WindowSemantics(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	s := NewSuppressor(300*time.Second, 0)
	s.now = func() time.Time { return now }

	call := ToolCall{Name: "Search", Args: map[string]any{"query": "weather"}}

	if dup, _ := s.IsDuplicate(call); dup {
		t.Fatal("first sighting reported as duplicate")
	}

	// 299s later: still inside the window.
	now = now.Add(299 * time.Second)
	if dup, _ := s.IsDuplicate(call); !dup {
		t.Fatal("in-window repeat not suppressed")
	}

	// The duplicate must NOT have refreshed the anchor: 301s after the
	// ORIGINAL sighting the window is open again, even though only 2s
	// passed since the suppressed repeat.
	now = now.Add(2 * time.Second)
	if dup, _ := s.IsDuplicate(call); dup {
		t.Fatal("window anchor was refreshed by a suppressed duplicate")
	}
}

func TestSuppressor_DistinctCallsPass(t *testing.T) {
	s := NewSuppressor(300*time.Second, 0)

	a := ToolCall{Name: "Search", Args: map[string]any{"query": "one"}}
	b := ToolCall{Name: "Search", Args: map[string]any{"query": "two"}}

	if dup, _ := s.IsDuplicate(a); dup {
		t.Error("first call flagged")
	}
	if dup, _ := s.IsDuplicate(b); dup {
		t.Error("distinct call flagged as duplicate")
	}
}

func TestSuppressor_Prune(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	s := NewSuppressor(300*time.Second, 10)
	s.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		call := ToolCall{Name: "Search", Args: map[string]any{"i": i}}
		if dup, _ := s.IsDuplicate(call); dup {
			t.Fatalf("call %d flagged as duplicate", i)
		}
	}

	// Fresh in-window entry arrives after the old ones expire; the prune
	// pass triggered by crossing the cap must drop only expired entries.
	now = now.Add(301 * time.Second)
	fresh := ToolCall{Name: "Search", Args: map[string]any{"i": "fresh"}}
	if dup, _ := s.IsDuplicate(fresh); dup {
		t.Fatal("fresh call flagged")
	}

	if got := s.Len(); got != 1 {
		t.Errorf("table size after prune = %d, want 1", got)
	}

	// The fresh entry must have survived pruning.
	if dup, _ := s.IsDuplicate(fresh); !dup {
		t.Error("prune removed an in-window entry")
	}
}

func TestSuppressor_ConcurrentSameFingerprint(t *testing.T) {
	s := NewSuppressor(300*time.Second, 0)
	call := ToolCall{Name: "Search", Args: map[string]any{"query": "race"}}

	const n = 16
	results := make([]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dup, err := s.IsDuplicate(call)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			results[i] = dup
		}(i)
	}
	wg.Wait()

	passes := 0
	for _, dup := range results {
		if !dup {
			passes++
		}
	}
	if passes != 1 {
		t.Errorf("%d concurrent identical calls passed, want exactly 1", passes)
	}
}

func TestSuppressor_ConcurrentDistinct(t *testing.T) {
	s := NewSuppressor(300*time.Second, 0)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			call := ToolCall{Name: "Search", Args: map[string]any{"q": fmt.Sprintf("q%d", i)}}
			if dup, err := s.IsDuplicate(call); err != nil || dup {
				t.Errorf("distinct call %d: dup=%v err=%v", i, dup, err)
			}
		}(i)
	}
	wg.Wait()
}
