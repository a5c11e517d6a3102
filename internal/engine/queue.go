package engine

import "sync"

// legQueue is a thread-safe FIFO of legs ready to execute.
//
// The queue is unbounded so an invocation can stage any number of legs
// without blocking the loop that executes it.
//
// Submit enqueues from caller goroutines while the loop dequeues. The signal
// channel lets Run wait for work without polling and still honour context
// cancellation.
type legQueue struct {
	mu     sync.Mutex
	legs   []*Leg
	closed bool
	signal chan struct{} // buffered, size 1
}

func newLegQueue() *legQueue {
	return &legQueue{
		legs:   make([]*Leg, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends leg. Returns false if the queue is closed.
func (q *legQueue) Enqueue(leg *Leg) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.legs = append(q.legs, leg)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front leg without blocking.
func (q *legQueue) TryDequeue() (*Leg, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.legs) == 0 {
		return nil, false
	}
	leg := q.legs[0]
	q.legs[0] = nil // release for GC
	if len(q.legs) == 1 {
		q.legs = q.legs[:0]
	} else {
		q.legs = q.legs[1:]
	}
	return leg, true
}

// Wait returns a channel that fires when legs may be available. It is
// closed when the queue closes.
func (q *legQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued legs.
func (q *legQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.legs)
}

// Closed reports whether Close has been called.
func (q *legQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops further enqueues and wakes waiters.
func (q *legQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
