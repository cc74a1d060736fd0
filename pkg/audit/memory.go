package audit

import (
	"context"
	"sync"
	"time"
)

const defaultMemoryCapacity = 10000

// MemoryLogger keeps the most recent events in memory. It backs audit
// logging when no database is configured.
type MemoryLogger struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
	maxAge   time.Duration
	now      func() time.Time
}

// NewMemoryLogger creates a logger holding at most capacity events no
// older than retentionDays. Zero values pick the defaults.
func NewMemoryLogger(capacity, retentionDays int) *MemoryLogger {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	var maxAge time.Duration
	if retentionDays > 0 {
		maxAge = time.Duration(retentionDays) * 24 * time.Hour
	}
	return &MemoryLogger{capacity: capacity, maxAge: maxAge, now: time.Now}
}

// Log implements Logger.
func (m *MemoryLogger) Log(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	if over := len(m.events) - m.capacity; over > 0 {
		m.events = append([]Event(nil), m.events[over:]...)
	}
	return nil
}

// Query implements Logger.
func (m *MemoryLogger) Query(_ context.Context, filter QueryFilter) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var cutoff time.Time
	if m.maxAge > 0 {
		cutoff = m.now().Add(-m.maxAge)
	}
	out := make([]Event, 0)
	skipped := 0
	for i := len(m.events) - 1; i >= 0; i-- {
		e := m.events[i]
		if !cutoff.IsZero() && e.Timestamp.Before(cutoff) {
			continue
		}
		if !filter.Matches(e) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// Close implements Logger.
func (*MemoryLogger) Close() error { return nil }

var _ Logger = (*MemoryLogger)(nil)
