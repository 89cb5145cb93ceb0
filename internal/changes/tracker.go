package changes

import (
	"sync"
	"time"

	"github.com/dshills/texcontext-mcp/pkg/types"
)

const (
	// DefaultHistorySize bounds the recent-edit history
	DefaultHistorySize = 50
	// maxEditsPerChange keeps one large paste from flooding the history
	maxEditsPerChange = 5
)

// Tracker remembers the last observed content of each file and a bounded
// history of recent edits across the project. It is safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	previous map[string]string
	history  []types.RecentEdit
	size     int
	now      func() time.Time
}

// NewTracker creates a tracker keeping at most size recent edits
func NewTracker(size int) *Tracker {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &Tracker{
		previous: make(map[string]string),
		size:     size,
		now:      time.Now,
	}
}

// Observe records content as the latest version of path and returns how it
// differs from the previous observation. Changed lines enter the history.
func (t *Tracker) Observe(path, content string) Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	old, known := t.previous[path]
	t.previous[path] = content
	if !known {
		return Summary{Path: path, Initial: true}
	}

	s := Detect(old, content)
	s.Path = path
	t.recordLocked(s)
	return s
}

// Record adds an externally computed summary to the history
func (t *Tracker) Record(s Summary) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recordLocked(s)
}

func (t *Tracker) recordLocked(s Summary) {
	at := t.now()
	for i, c := range s.Changes {
		if i == maxEditsPerChange {
			break
		}
		t.history = append(t.history, types.RecentEdit{
			Path: s.Path,
			Line: c.NewLine,
			Op:   string(c.Op),
			Text: c.Text,
			At:   at,
		})
	}
	if over := len(t.history) - t.size; over > 0 {
		t.history = append(t.history[:0:0], t.history[over:]...)
	}
}

// Recent returns up to n edits, newest first
func (t *Tracker) Recent(n int) []types.RecentEdit {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n <= 0 || n > len(t.history) {
		n = len(t.history)
	}
	out := make([]types.RecentEdit, 0, n)
	for i := len(t.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, t.history[i])
	}
	return out
}

// Forget drops the remembered content of path
func (t *Tracker) Forget(path string) {
	t.mu.Lock()
	delete(t.previous, path)
	t.mu.Unlock()
}

// Reset clears all remembered content and history
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.previous = make(map[string]string)
	t.history = nil
	t.mu.Unlock()
}
