package core

import (
	"sync"

	"github.com/gammazero/deque"
)

// DefaultHistorySize is the number of chat lines kept per channel.
const DefaultHistorySize = 10

// HistoryEntry is one remembered chat line.
type HistoryEntry struct {
	Author string
	Text   string
}

// History is a bounded FIFO of recent chat lines. Safe for concurrent use.
type History struct {
	mu      sync.Mutex
	limit   int
	entries deque.Deque[HistoryEntry]
}

// NewHistory creates a history log holding at most limit entries.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	return &History{limit: limit}
}

// Append adds an entry, evicting the oldest one when the log is full.
func (h *History) Append(e HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for h.entries.Len() >= h.limit {
		h.entries.PopFront()
	}
	h.entries.PushBack(e)
}

// Snapshot returns the entries oldest first.
func (h *History) Snapshot() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]HistoryEntry, h.entries.Len())
	for i := range out {
		out[i] = h.entries.At(i)
	}
	return out
}

// Len returns the current number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries.Len()
}
