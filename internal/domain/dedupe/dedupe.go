// Package dedupe tracks recently seen sensor packet identities so that
// link-level redelivery never feeds the same sample into the buffers twice.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records seen packet identities for at-most-once ingestion.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Size returns the current number of tracked identities.
	Size() int
}

// ringDeduper keeps the last maxSize identities in a fixed ring: sensor
// sequence numbers arrive (mostly) monotonically, so FIFO eviction of the
// oldest identity is the right policy.
type ringDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
	ring []string
	next int
	full bool
}

const defaultMaxSize = 4096

// Option applies a configuration option to the deduper.
type Option func(*ringDeduper)

// WithMaxSize sets how many identities are retained before the oldest is
// evicted. Non-positive values keep the default.
func WithMaxSize(n int) Option {
	return func(d *ringDeduper) {
		if n > 0 {
			d.ring = make([]string, n)
		}
	}
}

// NewRingDeduper creates a bounded deduper.
func NewRingDeduper(opts ...Option) Deduper {
	d := &ringDeduper{
		seen: make(map[string]struct{}),
		ring: make([]string, defaultMaxSize),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *ringDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}

	if d.full {
		delete(d.seen, d.ring[d.next])
	}
	d.ring[d.next] = id
	d.seen[id] = struct{}{}
	d.next++
	if d.next == len(d.ring) {
		d.next = 0
		d.full = true
	}
	return false
}

func (d *ringDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
