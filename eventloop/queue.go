// Package eventloop provides the turn-based callback queue that connects
// background work to the single UI goroutine.
//
// Producers call [Queue.Post] from any goroutine. The UI goroutine calls
// [Queue.Drain] once per frame; callbacks run there, one after another, so
// state they touch needs no further synchronization.
package eventloop

import "sync"

// Poster accepts callbacks to be run on a later loop turn.
type Poster interface {
	Post(fn func())
}

// Queue is a FIFO of callbacks. The zero value is ready to use.
type Queue struct {
	mu      sync.Mutex
	pending []func()
}

// Post appends fn to the queue. Safe to call from any goroutine. A nil fn
// is ignored.
func (q *Queue) Post(fn func()) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
}

// Drain runs every callback that was queued before the call and returns how
// many ran. Callbacks posted while draining run on the next turn.
func (q *Queue) Drain() int {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

// Len returns the number of callbacks waiting for the next turn.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
