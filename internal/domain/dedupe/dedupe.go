// Package dedupe tracks already-imported score IDs for at-most-once
// persistence. Score IDs are content hashes, so a repeat submission of the
// same play dedupes here before it ever reaches the store.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records seen score IDs.
type Deduper interface {
	// SeenAndRecord atomically checks whether id was seen and records it if
	// not. Returns true if id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an ID, allowing a retry. Used when a score was marked
	// seen but failed to persist.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper is a bounded set with FIFO eviction: when full, the oldest
// recorded ID is forgotten first. Imports replay old history far more often
// than they resubmit the newest scores, so recency is what's worth keeping.
// maxSize <= 0 disables eviction.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string // insertion order; may hold stale (unrecorded) IDs
	head    int
	maxSize int
}

// NewInMemoryDeduper creates an in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 50000,
	}

	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[string]struct{})

	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}

	if d.maxSize > 0 {
		for len(d.seen) >= d.maxSize {
			d.evictOldest()
		}
		d.order = append(d.order, id)
	}
	d.seen[id] = struct{}{}

	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// The order entry stays behind as a tombstone; eviction skips it.
	delete(d.seen, id)
}

// evictOldest drops the oldest still-recorded ID. Tombstones left by
// Unrecord are discarded along the way. Caller holds d.mu.
func (d *inMemoryDeduper) evictOldest() {
	for d.head < len(d.order) {
		id := d.order[d.head]
		d.order[d.head] = ""
		d.head++

		if _, ok := d.seen[id]; ok {
			delete(d.seen, id)
			break
		}
	}

	// Reclaim the consumed prefix once it dominates the slice.
	if d.head > 0 && d.head*2 >= len(d.order) {
		d.order = append(d.order[:0], d.order[d.head:]...)
		d.head = 0
	}
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return int64(len(d.seen))
}
