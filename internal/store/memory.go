package store

import (
	"sync"

	"raffle/internal/models"
)

// MemorySink keeps the notification log in memory. Used when the sqlite
// log is disabled; holds at most cap events, dropping the oldest.
type MemorySink struct {
	mu     sync.Mutex
	cap    int
	nextID int64
	events []models.Event
}

// NewMemorySink creates a sink retaining at most cap events.
func NewMemorySink(cap int) *MemorySink {
	return &MemorySink{cap: cap, nextID: 1}
}

// Append records one event.
func (m *MemorySink) Append(ev models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev.ID = m.nextID
	m.nextID++
	m.events = append(m.events, ev)
	if m.cap > 0 && len(m.events) > m.cap {
		m.events = m.events[len(m.events)-m.cap:]
	}
	return nil
}

// List returns retained events in append order. A positive limit caps the
// result.
func (m *MemorySink) List(limit int) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.events)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.Event, n)
	copy(out, m.events[:n])
	return out, nil
}
