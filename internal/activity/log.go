// Package activity keeps the bounded recent-activity log shown on the
// dashboard.
package activity

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sproutwatch/sproutwatch/internal/observe"
	"github.com/sproutwatch/sproutwatch/pkg/models"
)

// DefaultCapacity is the number of entries the dashboard keeps.
const DefaultCapacity = 10

// Log is a thread-safe ring of the most recent entries. When full, the
// oldest entry is dropped silently.
type Log struct {
	mu       sync.RWMutex
	entries  []models.ActivityEntry // oldest first
	capacity int
	added    *observe.Subject[models.ActivityEntry]
	now      func() time.Time
}

// NewLog creates a log that retains up to capacity entries.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		entries:  make([]models.ActivityEntry, 0, capacity),
		capacity: capacity,
		added:    observe.NewSubject[models.ActivityEntry](),
		now:      time.Now,
	}
}

// Add records a message. highlight, when non-empty, is the part of message
// views should emphasise.
func (l *Log) Add(message, highlight string) models.ActivityEntry {
	entry := models.ActivityEntry{
		ID:        uuid.NewString(),
		Timestamp: l.now().UTC(),
		Message:   message,
		Highlight: highlight,
	}

	l.mu.Lock()
	if len(l.entries) >= l.capacity {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:len(l.entries)-1]
	}
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	l.added.Publish(entry)
	return entry
}

// Entries returns up to n entries, newest first. n <= 0 returns all.
func (l *Log) Entries(n int) []models.ActivityEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := len(l.entries)
	if n <= 0 || n > total {
		n = total
	}
	out := make([]models.ActivityEntry, n)
	for i := 0; i < n; i++ {
		out[i] = l.entries[total-1-i]
	}
	return out
}

// Len reports how many entries are held.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Subscribe registers fn for every new entry and returns its unsubscribe func.
func (l *Log) Subscribe(fn func(models.ActivityEntry)) func() {
	return l.added.Subscribe(fn)
}
