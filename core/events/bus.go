package events

import (
	"sync"

	"piggyvault/core/types"
)

const defaultBusCapacity = 1024

// BusEntry pairs an emitted event with its monotonically increasing sequence
// number so pollers can resume from a cursor.
type BusEntry struct {
	Sequence uint64       `json:"sequence"`
	Event    *types.Event `json:"event"`
}

// Bus is a bounded in-memory event log. Old entries are evicted once the
// capacity is exceeded; callers that fall behind simply miss the evicted
// range and continue from the oldest retained sequence.
type Bus struct {
	mu       sync.RWMutex
	entries  []BusEntry
	capacity int
	nextSeq  uint64
}

// NewBus constructs a bus retaining at most capacity entries. A non-positive
// capacity falls back to the default.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = defaultBusCapacity
	}
	return &Bus{capacity: capacity, nextSeq: 1}
}

type busEvent interface {
	Event() *types.Event
}

// Emit implements the Emitter interface. Events that do not carry a typed
// payload are ignored.
func (b *Bus) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	carrier, ok := evt.(busEvent)
	if !ok {
		return
	}
	payload := carrier.Event()
	if payload == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, BusEntry{Sequence: b.nextSeq, Event: payload})
	b.nextSeq++
	if len(b.entries) > b.capacity {
		b.entries = b.entries[len(b.entries)-b.capacity:]
	}
}

// After returns up to limit entries with a sequence strictly greater than
// cursor, oldest first. A non-positive limit returns everything retained.
func (b *Bus) After(cursor uint64, limit int) []BusEntry {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	start := 0
	for start < len(b.entries) && b.entries[start].Sequence <= cursor {
		start++
	}
	out := b.entries[start:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	result := make([]BusEntry, len(out))
	copy(result, out)
	return result
}

// Latest reports the sequence number of the most recent entry, or zero when
// the bus is empty.
func (b *Bus) Latest() uint64 {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.entries) == 0 {
		return 0
	}
	return b.entries[len(b.entries)-1].Sequence
}
