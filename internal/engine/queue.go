package engine

import (
	"sync"

	"github.com/roach88/lumo/internal/graph"
)

// request is one unit of work for the Run loop: a journaled command or a
// read-only function over the graph. Exactly one of cmd and fn is set.
type request struct {
	cmd   Command
	fn    func(*graph.Graph) error
	reply chan response // buffered, size 1
}

type response struct {
	result *Result
	err    error
}

// requestQueue is a thread-safe FIFO queue of requests.
//
// The queue is unbounded so submitters never block on enqueue; they block
// on the reply instead.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop (prevents goroutine hangs on context cancellation).
type requestQueue struct {
	mu       sync.Mutex
	requests []request
	closed   bool
	signal   chan struct{} // Signals request availability (buffered, size 1)
}

func newRequestQueue() *requestQueue {
	return &requestQueue{
		requests: make([]request, 0, 64),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds a request to the back of the queue.
// Returns false if the queue is closed.
func (q *requestQueue) Enqueue(r request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.requests = append(q.requests, r)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes and returns the front request without blocking.
func (q *requestQueue) TryDequeue() (request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.requests) == 0 {
		return request{}, false
	}

	r := q.requests[0]

	// Nil out the slot so the backing array does not pin the command.
	q.requests[0] = request{}

	if len(q.requests) == 1 {
		q.requests = q.requests[:0]
	} else {
		q.requests = q.requests[1:]
	}

	return r, true
}

// Wait returns a channel that signals when requests may be available.
// The channel is closed by Close.
func (q *requestQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *requestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}

// Closed reports whether Close has been called.
func (q *requestQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops further enqueues and wakes any waiter. Requests already in
// the queue stay there until dequeued.
func (q *requestQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
