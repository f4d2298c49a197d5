package validator

import (
	"sync"
	"time"
)

// DefaultMaxTrackedCalls is the table size past which pruning kicks in.
const DefaultMaxTrackedCalls = 1000

// Suppressor tracks recently seen call fingerprints and suppresses
// repeats within the duplicate window. The table is the only shared
// mutable state in the engine; one mutex makes each check-then-set
// atomic per call, so two concurrent identical calls inside the window
// can never both pass.
type Suppressor struct {
	window     time.Duration
	maxEntries int
	now        func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewSuppressor creates a suppressor with the given window. maxEntries <= 0
// uses DefaultMaxTrackedCalls.
func NewSuppressor(window time.Duration, maxEntries int) *Suppressor {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxTrackedCalls
	}
	return &Suppressor{
		window:     window,
		maxEntries: maxEntries,
		now:        time.Now,
		seen:       make(map[string]time.Time),
	}
}

// IsDuplicate reports whether an identical call was already seen inside
// the window. A duplicate does NOT refresh the stored timestamp; the
// original sighting anchors the window. A miss (or an expired entry)
// records now as a fresh first sighting. Errors mean the check could not
// run at all; the caller must not treat that as "not a duplicate".
func (s *Suppressor) IsDuplicate(call ToolCall) (bool, error) {
	fp, err := Fingerprint(call)
	if err != nil {
		return false, err
	}

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.seen[fp]; ok && now.Sub(last) < s.window {
		return true, nil
	}

	s.seen[fp] = now
	if len(s.seen) > s.maxEntries {
		s.pruneLocked(now)
	}
	return false, nil
}

// pruneLocked drops entries older than the window. Best-effort: runs
// inline under the lock it was called with, bounded by table size, and
// never touches an entry still inside its window.
func (s *Suppressor) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	for fp, last := range s.seen {
		if last.Before(cutoff) {
			delete(s.seen, fp)
		}
	}
}

// Len reports the current table size.
func (s *Suppressor) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
