package core

import (
	"fmt"
	"sync"
	"testing"
)

func TestHistoryEvictsOldest(t *testing.T) {
	h := NewHistory(DefaultHistorySize)
	for i := 1; i <= 12; i++ {
		h.Append(HistoryEntry{Author: "alice", Text: fmt.Sprintf("m%d", i)})
	}

	got := h.Snapshot()
	if len(got) != DefaultHistorySize {
		t.Fatalf("expected %d entries, got %d", DefaultHistorySize, len(got))
	}
	if got[0].Text != "m3" || got[len(got)-1].Text != "m12" {
		t.Fatalf("unexpected window: first=%q last=%q", got[0].Text, got[len(got)-1].Text)
	}
}

func TestHistorySnapshotIsCopy(t *testing.T) {
	h := NewHistory(2)
	h.Append(HistoryEntry{Author: "a", Text: "one"})

	snap := h.Snapshot()
	snap[0].Text = "changed"

	if h.Snapshot()[0].Text != "one" {
		t.Fatalf("snapshot aliases internal storage")
	}
}

func TestHistoryConcurrentAppend(t *testing.T) {
	h := NewHistory(5)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.Append(HistoryEntry{Author: "bot", Text: fmt.Sprint(i)})
		}(i)
	}
	wg.Wait()

	if h.Len() != 5 {
		t.Fatalf("expected bounded history of 5, got %d", h.Len())
	}
}

func TestNewHistoryDefaultsLimit(t *testing.T) {
	h := NewHistory(0)
	for i := 0; i < 20; i++ {
		h.Append(HistoryEntry{Text: "x"})
	}
	if h.Len() != DefaultHistorySize {
		t.Fatalf("expected default limit %d, got %d", DefaultHistorySize, h.Len())
	}
}
