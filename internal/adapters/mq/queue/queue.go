// Package queue buffers motion samples between the hot sensor delivery
// path and the calibration worker. Enqueue never blocks the producer; the
// consumer drains over a channel so arrival order is preserved.
package queue

import (
	"context"
	"sync"

	"github.com/strokelab/courtsync/internal/domain/model"
	"github.com/strokelab/courtsync/pkg/metrics"
)

const defaultCapacity = 8192

// Queue provides non-blocking enqueue and channel-based dequeue semantics
// for motion samples.
type Queue interface {
	// Enqueue adds a sample. Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, s model.MotionSample) bool

	// Dequeue returns a channel delivering samples in arrival order. The
	// channel is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan model.MotionSample

	// Len returns the current number of queued samples.
	Len() int

	// Close stops the queue; no further samples can be enqueued.
	Close() error
}

// InMemoryQueue implements Queue on a buffered channel.
type InMemoryQueue struct {
	samples chan model.MotionSample
	mu      sync.RWMutex
	closed  bool
}

// Option applies a configuration option to the InMemoryQueue.
type Option func(*int)

// WithCapacity sets the maximum number of buffered samples.
func WithCapacity(n int) Option {
	return func(capacity *int) {
		if n > 0 {
			*capacity = n
		}
	}
}

// NewInMemoryQueue creates a bounded in-memory sample queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	capacity := defaultCapacity
	for _, opt := range opts {
		opt(&capacity)
	}
	metrics.UpdateQueueCapacity(capacity)
	metrics.UpdateQueueSize(0)
	return &InMemoryQueue{samples: make(chan model.MotionSample, capacity)}
}

// Enqueue adds a sample without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, s model.MotionSample) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordSampleDropped("queue_closed")
		return false
	}

	select {
	case q.samples <- s:
		metrics.UpdateQueueSize(len(q.samples))
		return true
	case <-ctx.Done():
		metrics.RecordSampleDropped("context_cancelled")
		return false
	default:
		metrics.RecordSampleDropped("queue_full")
		return false
	}
}

// Dequeue returns a channel delivering samples until the queue closes or
// ctx is cancelled. Samples still buffered at cancellation are discarded
// and counted as dropped.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan model.MotionSample {
	out := make(chan model.MotionSample)
	go func() {
		defer close(out)
		for s := range q.samples {
			select {
			case out <- s:
				metrics.UpdateQueueSize(len(q.samples))
			case <-ctx.Done():
				q.discard()
				return
			}
		}
	}()
	return out
}

// discard counts the sample in hand plus whatever is still buffered, so
// cancellation never loses samples from the drop accounting. Draining is
// non-blocking; a producer racing in simply records its own drop once the
// queue closes.
func (q *InMemoryQueue) discard() {
	metrics.RecordSampleDropped("context_cancelled")
	for {
		select {
		case _, ok := <-q.samples:
			if !ok {
				return
			}
			metrics.RecordSampleDropped("context_cancelled")
		default:
			metrics.UpdateQueueSize(len(q.samples))
			return
		}
	}
}

// Len returns the current number of queued samples.
func (q *InMemoryQueue) Len() int {
	return len(q.samples)
}

// Close stops the queue. Idempotent.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.samples)
	q.closed = true
	return nil
}
