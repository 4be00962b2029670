package work

import (
	"sync"
	"time"
)

// Completion records the outcome of the last run of a work type/subject.
type Completion struct {
	At       time.Time     `json:"at"`
	Duration time.Duration `json:"duration"`
	Err      string        `json:"error,omitempty"`
}

// CompletionTracker tracks when work items were last completed.
type CompletionTracker struct {
	completions map[string]Completion // key: "typeID:subject"
	mu          sync.RWMutex
}

// NewCompletionTracker creates a new completion tracker.
func NewCompletionTracker() *CompletionTracker {
	return &CompletionTracker{
		completions: make(map[string]Completion),
	}
}

func makeKey(typeID, subject string) string {
	if subject == "" {
		return typeID
	}
	return typeID + ":" + subject
}

// Record stores the outcome of a finished item.
func (t *CompletionTracker) Record(item *WorkItem, r Result) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := Completion{At: time.Now(), Duration: r.Duration}
	if r.Err != nil {
		c.Err = r.Err.Error()
	}
	t.completions[makeKey(item.TypeID, item.Subject)] = c
}

// GetCompletion returns the last completion of a work type/subject combination.
func (t *CompletionTracker) GetCompletion(typeID, subject string) (Completion, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c, exists := t.completions[makeKey(typeID, subject)]
	return c, exists
}

// IsStale returns true if the work has never completed or last completed more
// than interval ago. A zero interval is always stale.
func (t *CompletionTracker) IsStale(typeID, subject string, interval time.Duration) bool {
	if interval == 0 {
		return true
	}

	c, exists := t.GetCompletion(typeID, subject)
	if !exists {
		return true
	}
	return time.Since(c.At) > interval
}

// Snapshot returns a copy of every recorded completion.
func (t *CompletionTracker) Snapshot() map[string]Completion {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]Completion, len(t.completions))
	for k, v := range t.completions {
		out[k] = v
	}
	return out
}
