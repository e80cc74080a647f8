package frontend

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dshills/cellstorm/internal/input"
)

// DefaultInputCapacity is the number of input events buffered before the
// oldest is dropped.
const DefaultInputCapacity = 100

// InputQueue buffers input events for a single consumer. When full, Post
// drops the oldest event so the latest input is never lost.
type InputQueue struct {
	mu     sync.Mutex
	events []input.Event
	cap    int
	closed bool
	ready  chan struct{}

	posted  atomic.Uint64
	dropped atomic.Uint64
}

// NewInputQueue returns a queue holding up to capacity events.
func NewInputQueue(capacity int) *InputQueue {
	if capacity <= 0 {
		capacity = DefaultInputCapacity
	}
	return &InputQueue{cap: capacity, ready: make(chan struct{}, 1)}
}

// Post adds ev. It reports false once the queue is closed.
func (q *InputQueue) Post(ev input.Event) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	if len(q.events) == q.cap {
		q.events = q.events[1:]
		q.dropped.Add(1)
	}
	q.events = append(q.events, ev)
	q.posted.Add(1)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// Next blocks until an event is available. ok is false when ctx is done or
// the queue is closed and drained.
func (q *InputQueue) Next(ctx context.Context) (ev input.Event, ok bool) {
	for {
		q.mu.Lock()
		if len(q.events) > 0 {
			ev = q.events[0]
			q.events[0] = nil
			q.events = q.events[1:]
			q.mu.Unlock()
			return ev, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, false
		}
		select {
		case <-ctx.Done():
			return nil, false
		case <-q.ready:
		}
	}
}

// Len returns the number of buffered events.
func (q *InputQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close stops accepting events. Buffered events can still be read.
func (q *InputQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Stats returns the number of posted and dropped events.
func (q *InputQueue) Stats() (posted, dropped uint64) {
	return q.posted.Load(), q.dropped.Load()
}

// task is a unit of work for the update worker.
type task struct {
	run  func()
	done chan struct{}
}

// taskQueue is an unbounded FIFO drained by a single worker, so updates
// and local recomputations run in submission order.
type taskQueue struct {
	mu     sync.Mutex
	tasks  []task
	closed bool
	ready  chan struct{}
}

func newTaskQueue() *taskQueue {
	return &taskQueue{ready: make(chan struct{}, 1)}
}

// push appends fn. The returned channel is closed once fn ran, or right
// away if the queue is closed.
func (q *taskQueue) push(fn func()) <-chan struct{} {
	done := make(chan struct{})
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		close(done)
		return done
	}
	q.tasks = append(q.tasks, task{run: fn, done: done})
	q.mu.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return done
}

// run executes tasks until ctx is done. Pending tasks are released without
// running when it returns.
func (q *taskQueue) run(ctx context.Context) {
	defer q.close()
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-q.ready:
				continue
			}
		}
		t := q.tasks[0]
		q.tasks[0] = task{}
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		t.run()
		close(t.done)
	}
}

func (q *taskQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	for _, t := range q.tasks {
		close(t.done)
	}
	q.tasks = nil
}
