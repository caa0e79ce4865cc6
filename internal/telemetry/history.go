// Package telemetry publishes relay snapshots to an MQTT broker and
// keeps a fixed-length rolling history. It is purely a consumer of core
// state and never mutates it; when the broker is unreachable the relay
// degrades to history-only operation without halting the control loop.
package telemetry

import (
	"sync"
	"time"
)

// HistoryDepth is the fixed length of the rolling history buffer.
const HistoryDepth = 100

// Entry is one periodic telemetry snapshot.
type Entry struct {
	InstanceID string    `json:"instance_id"`
	CurrentHz  float64   `json:"current_hz"`
	RoC        float64   `json:"roc_hz_per_s"`
	State      string    `json:"state"`
	Loads      uint16    `json:"load_status"`
	Fault      bool      `json:"fault"`
	At         time.Time `json:"timestamp"`
}

// History is a fixed-length rolling buffer of telemetry entries. Safe
// for concurrent use.
type History struct {
	mu    sync.RWMutex
	buf   [HistoryDepth]Entry
	next  int
	count int
}

// NewHistory creates an empty history.
func NewHistory() *History { return &History{} }

// Append adds an entry, evicting the oldest once the buffer is full.
func (h *History) Append(e Entry) {
	h.mu.Lock()
	h.buf[h.next] = e
	h.next = (h.next + 1) % HistoryDepth
	if h.count < HistoryDepth {
		h.count++
	}
	h.mu.Unlock()
}

// Len returns the number of stored entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Entries returns the stored entries oldest-first, as an owned slice.
func (h *History) Entries() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Entry, 0, h.count)
	start := h.next - h.count
	if start < 0 {
		start += HistoryDepth
	}
	for i := 0; i < h.count; i++ {
		out = append(out, h.buf[(start+i)%HistoryDepth])
	}
	return out
}
