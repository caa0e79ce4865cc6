package telemetry

import (
	"testing"
	"time"
)

// TestHistoryAppendOrder verifies oldest-first ordering before wrap.
func TestHistoryAppendOrder(t *testing.T) {
	h := NewHistory()

	for i := 0; i < 10; i++ {
		h.Append(Entry{CurrentHz: float64(i)})
	}

	if h.Len() != 10 {
		t.Fatalf("Expected 10 entries, got %d", h.Len())
	}

	entries := h.Entries()
	for i, e := range entries {
		if e.CurrentHz != float64(i) {
			t.Errorf("Entry %d: expected %.0f, got %.0f", i, float64(i), e.CurrentHz)
		}
	}
}

// TestHistoryWrap verifies the buffer holds exactly HistoryDepth entries
// and evicts the oldest.
func TestHistoryWrap(t *testing.T) {
	h := NewHistory()

	for i := 0; i < HistoryDepth+25; i++ {
		h.Append(Entry{CurrentHz: float64(i)})
	}

	if h.Len() != HistoryDepth {
		t.Fatalf("Expected %d entries after wrap, got %d", HistoryDepth, h.Len())
	}

	entries := h.Entries()
	if entries[0].CurrentHz != 25 {
		t.Errorf("Expected oldest entry 25, got %.0f", entries[0].CurrentHz)
	}
	last := entries[len(entries)-1]
	if last.CurrentHz != float64(HistoryDepth+24) {
		t.Errorf("Expected newest entry %d, got %.0f", HistoryDepth+24, last.CurrentHz)
	}
}

// TestHistoryEntriesOwned verifies callers get an owned slice.
func TestHistoryEntriesOwned(t *testing.T) {
	h := NewHistory()
	h.Append(Entry{CurrentHz: 50.0, At: time.Now()})

	entries := h.Entries()
	entries[0].CurrentHz = 0

	if h.Entries()[0].CurrentHz != 50.0 {
		t.Error("Mutating the returned slice leaked into the buffer")
	}
}

// TestHistoryConcurrent exercises concurrent append/read.
func TestHistoryConcurrent(t *testing.T) {
	h := NewHistory()
	done := make(chan bool)

	go func() {
		for i := 0; i < 500; i++ {
			h.Append(Entry{CurrentHz: float64(i)})
		}
		done <- true
	}()

	for i := 0; i < 100; i++ {
		_ = h.Entries()
		_ = h.Len()
	}
	<-done

	if h.Len() != HistoryDepth {
		t.Errorf("Expected full buffer, got %d", h.Len())
	}
}
