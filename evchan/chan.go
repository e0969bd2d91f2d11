// Package evchan implements the one-writer/one-reader typed event channel
// the gateway uses to publish events from I/O callbacks into the loop
// thread without blocking on a slow consumer.
package evchan

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Policy selects how a channel behaves when the consumer hasn't drained
// the previous value yet.
type Policy uint8

const (
	// Overwrite keeps only the freshest value — used for Connectivity and
	// Levels, where staleness matters more than history.
	Overwrite Policy = iota
	// FIFO queues every value — used for Order and Trade, where every
	// event must eventually be delivered.
	FIFO
)

// Producer synthesises a value on demand for venues that don't push
// natively; registered once via WaitFor and invoked by the loop off the
// I/O hot path when AskFor is armed.
type Producer[T any] func() []T

// EventChan is a single-slot (Overwrite) or bounded-queue (FIFO) typed
// channel plus an optional synchronous producer for poll-driven venues.
type EventChan[T any] struct {
	policy Policy
	depth  int

	mu       sync.Mutex
	consumer func(T)
	buf      []T
	asked    bool
	producer Producer[T]
}

// New creates a channel with the given delivery policy. depth only bounds
// FIFO channels (Overwrite channels are always depth 1); depth <= 0 picks
// a default of 64 for FIFO.
func New[T any](policy Policy, depth int) *EventChan[T] {
	if policy == FIFO && depth <= 0 {
		depth = 64
	}
	return &EventChan[T]{policy: policy, depth: depth, buf: make([]T, 0, depth)}
}

// Write installs the consumer callback. Done once at wire-up, before the
// loop starts ticking.
func (e *EventChan[T]) Write(cb func(T)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.consumer = cb
}

// TryWrite publishes a value without blocking. Under Overwrite policy the
// previous unconsumed value (if any) is replaced; under FIFO it is
// appended and delivered in order on the loop's next Drain, but once the
// buffer holds depth unconsumed values the oldest is dropped (and logged)
// to make room rather than growing without bound.
func (e *EventChan[T]) TryWrite(v T) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.policy {
	case Overwrite:
		if len(e.buf) == 0 {
			e.buf = append(e.buf, v)
		} else {
			e.buf[0] = v
		}
	default:
		if len(e.buf) >= e.depth {
			dropped := e.buf[0]
			e.buf = append(e.buf[:0], e.buf[1:]...)
			log.Warn().Str("component", "evchan").Int("depth", e.depth).
				Interface("dropped", dropped).Msg("FIFO channel at capacity, dropping oldest")
		}
		e.buf = append(e.buf, v)
	}
}

// AskFor schedules a one-shot poll request for the next tick. The loop
// notices this via Pending and invokes the registered producer.
func (e *EventChan[T]) AskFor() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.asked = true
}

// WaitFor registers the synchronous producer the loop may invoke to
// synthesise events for venues without native push.
func (e *EventChan[T]) WaitFor(producer Producer[T]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.producer = producer
}

// Pending reports whether AskFor was called and hasn't been serviced yet,
// clearing the flag. The loop calls this off the I/O hot path and, if
// true, invokes the registered producer and feeds its results back in.
func (e *EventChan[T]) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.asked {
		e.asked = false
		return true
	}
	return false
}

// Producer returns the registered synchronous producer, or nil.
func (e *EventChan[T]) Producer() Producer[T] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.producer
}

// Drain delivers every buffered value to the consumer, in arrival order,
// and empties the buffer. Safe to call with no consumer installed (values
// are simply discarded) — in-flight TryWrite before teardown is either
// delivered by a last Drain or discarded, never corrupting state.
func (e *EventChan[T]) Drain() {
	e.mu.Lock()
	cb := e.consumer
	values := e.buf
	e.buf = nil
	e.mu.Unlock()

	if cb == nil {
		return
	}
	for _, v := range values {
		cb(v)
	}
}
