package events

import (
	"strings"
	"sync"

	"assetescrow/core/types"
)

// DefaultLogCapacity bounds the number of events retained by a Log.
const DefaultLogCapacity = 1024

// Log is a bounded, sequenced history of committed events. When full the
// oldest entry is overwritten.
type Log struct {
	mu   sync.RWMutex
	buf  []types.Event
	head int
	size int
	next uint64
}

// NewLog creates a log retaining up to capacity events.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &Log{buf: make([]types.Event, capacity), next: 1}
}

// Append stamps the event with the next sequence number and timestamp.
func (l *Log) Append(evt Event, timestamp uint64) {
	if l == nil || evt == nil {
		return
	}
	payload := evt.Event()
	if payload == nil {
		return
	}
	entry := types.Event{
		Type:       payload.Type,
		Timestamp:  timestamp,
		Attributes: make(map[string]string, len(payload.Attributes)),
	}
	for k, v := range payload.Attributes {
		entry.Attributes[k] = v
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.Sequence = l.next
	l.next++
	if l.size == len(l.buf) {
		l.buf[l.head] = entry
		l.head = (l.head + 1) % len(l.buf)
		return
	}
	l.buf[(l.head+l.size)%len(l.buf)] = entry
	l.size++
}

// List returns up to limit of the most recent events whose type starts with
// prefix, oldest first. A non-positive limit returns everything retained.
func (l *Log) List(prefix string, limit int) []types.Event {
	if l == nil {
		return nil
	}
	prefix = strings.TrimSpace(prefix)
	l.mu.RLock()
	defer l.mu.RUnlock()
	matched := make([]types.Event, 0, l.size)
	for i := 0; i < l.size; i++ {
		entry := l.buf[(l.head+i)%len(l.buf)]
		if prefix != "" && !strings.HasPrefix(entry.Type, prefix) {
			continue
		}
		matched = append(matched, entry)
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched
}
