// Package queue provides the fixed-capacity, lossy FIFO used between the
// capture producers, the processing workers and the actuator scheduler.
//
// A full queue never blocks its producer. Instead the oldest entries are
// evicted in a batch to make room, and every evicted or rejected item is
// counted so the loss is visible through Stats.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/banshee-data/wayfinder/internal/monitoring"
)

// Eviction batches used by the pipeline.
const (
	SensorEvictBatch    = 3
	ProcessedEvictBatch = 1
	CommandEvictBatch   = 2
)

// dropWarnInterval throttles the overflow warning to one line per interval.
const dropWarnInterval = time.Second

// Bounded is a FIFO with a fixed capacity and a drop-oldest overflow policy.
// It is safe for concurrent use by any number of producers and consumers.
type Bounded[T any] struct {
	name       string
	evictBatch int

	mu    sync.Mutex
	items []T
	head  int // index of the oldest item
	size  int

	total     uint64
	delivered uint64
	dropped   uint64
	lastWarn  time.Time

	// ready holds a token while the queue may be non-empty.
	ready chan struct{}
}

// New creates a queue holding at most capacity items. When the queue is full
// the evictBatch oldest items are discarded before inserting.
func New[T any](name string, capacity, evictBatch int) *Bounded[T] {
	if capacity < 1 {
		capacity = 1
	}
	if evictBatch < 0 {
		evictBatch = 0
	}
	return &Bounded[T]{
		name:       name,
		evictBatch: evictBatch,
		items:      make([]T, capacity),
		ready:      make(chan struct{}, 1),
	}
}

// Name returns the queue name used in logs and stats.
func (q *Bounded[T]) Name() string { return q.name }

// Cap returns the configured capacity.
func (q *Bounded[T]) Cap() int { return len(q.items) }

// Len returns the number of queued items.
func (q *Bounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Put enqueues item without blocking. It returns false if the item itself was
// dropped, which only happens when eviction could not free a slot.
func (q *Bounded[T]) Put(item T) bool {
	q.mu.Lock()
	q.total++

	evicted := 0
	if q.size == len(q.items) {
		for evicted < q.evictBatch && q.size > 0 {
			q.popLocked()
			evicted++
		}
		q.dropped += uint64(evicted)
	}

	accepted := q.size < len(q.items)
	if accepted {
		q.items[(q.head+q.size)%len(q.items)] = item
		q.size++
	} else {
		q.dropped++
	}

	warn := (evicted > 0 || !accepted) && time.Since(q.lastWarn) >= dropWarnInterval
	if warn {
		q.lastWarn = time.Now()
	}
	dropped := q.dropped
	q.mu.Unlock()

	if warn {
		monitoring.Logf("queue %s full: evicted %d oldest, incoming dropped=%v (total dropped %d)",
			q.name, evicted, !accepted, dropped)
	}
	if accepted {
		q.signal()
	}
	return accepted
}

// TryGet removes and returns the oldest item without waiting.
func (q *Bounded[T]) TryGet() (T, bool) {
	q.mu.Lock()
	if q.size == 0 {
		q.mu.Unlock()
		var zero T
		return zero, false
	}
	item := q.popLocked()
	q.delivered++
	more := q.size > 0
	q.mu.Unlock()

	if more {
		// keep the token for the next consumer
		q.signal()
	}
	return item, true
}

// Get removes and returns the oldest item, waiting up to timeout for one to
// arrive. The boolean is false when the wait expired or ctx was cancelled;
// an empty queue is not an error.
func (q *Bounded[T]) Get(ctx context.Context, timeout time.Duration) (T, bool) {
	if item, ok := q.TryGet(); ok {
		return item, true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			var zero T
			return zero, false
		case <-timer.C:
			return q.TryGet()
		case <-q.ready:
			if item, ok := q.TryGet(); ok {
				return item, true
			}
		}
	}
}

// Ready returns a channel that receives a value when items may be available.
// It lets a consumer wait on several queues with a single select; the
// consumer must still use TryGet, which may report empty after a wake-up.
func (q *Bounded[T]) Ready() <-chan struct{} {
	return q.ready
}

// Stats returns a snapshot of the queue counters.
func (q *Bounded[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Name:      q.name,
		Size:      q.size,
		Capacity:  len(q.items),
		Total:     q.total,
		Delivered: q.delivered,
		Dropped:   q.dropped,
		DropRate:  dropRate(q.total, q.dropped),
	}
}

func (q *Bounded[T]) popLocked() T {
	var zero T
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.size--
	return item
}

func (q *Bounded[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
