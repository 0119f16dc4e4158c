// Package record keeps a bounded in-memory history of OCR readings.
package record

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultCapacity bounds the history when no capacity is configured.
	DefaultCapacity = 1000

	// EventBuffer sizes the listener channel.
	EventBuffer = 64
)

// Entry is one recorded reading.
type Entry struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	WindowTitle string    `json:"window_title"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// Line renders the entry as a timestamped history line.
func (e Entry) Line() string {
	return fmt.Sprintf("[%d] %s", e.RecordedAt.UnixMilli(), e.Text)
}

// Recorder stores entries in arrival order, evicting the oldest once
// capacity is reached.
type Recorder struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
	eventsCh chan Entry
}

// NewRecorder creates a recorder with the given capacity; zero or
// negative falls back to DefaultCapacity.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{
		entries:  make([]Entry, 0, capacity),
		capacity: capacity,
		eventsCh: make(chan Entry, EventBuffer),
	}
}

// Record appends a reading and emits it to listeners.
func (r *Recorder) Record(text, windowTitle string) Entry {
	entry := Entry{
		ID:          uuid.NewString(),
		Text:        text,
		WindowTitle: windowTitle,
		RecordedAt:  time.Now(),
	}

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	if len(r.entries) > r.capacity {
		r.entries = r.entries[len(r.entries)-r.capacity:]
	}
	r.mu.Unlock()

	r.Emit(entry)
	return entry
}

// History returns up to limit entries, oldest first. A non-positive
// limit returns everything.
func (r *Recorder) History(limit int) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	start := 0
	if limit > 0 && limit < len(r.entries) {
		start = len(r.entries) - limit
	}
	result := make([]Entry, len(r.entries)-start)
	copy(result, r.entries[start:])
	return result
}

// Clear drops all entries.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = r.entries[:0]
}

// Len returns the current entry count.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Capacity returns the configured bound.
func (r *Recorder) Capacity() int {
	return r.capacity
}

// Events returns the channel carrying newly recorded entries.
func (r *Recorder) Events() <-chan Entry {
	return r.eventsCh
}

// Emit sends an entry to listeners without blocking.
func (r *Recorder) Emit(entry Entry) {
	select {
	case r.eventsCh <- entry:
	default:
	}
}
