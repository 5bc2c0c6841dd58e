package action

import "sync"

// taskQueue is an unbounded FIFO of tasks. Enqueue is safe from any
// goroutine; the Run loop is the only consumer.
//
// signal has a buffer of one and coalesces wakeups; Close closes it so a
// waiting Run loop returns.
type taskQueue struct {
	mu     sync.Mutex
	tasks  []*Task
	closed bool
	signal chan struct{}
}

func newTaskQueue() *taskQueue {
	return &taskQueue{
		tasks:  make([]*Task, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends t. It returns false once the queue is closed.
func (q *taskQueue) Enqueue(t *Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.tasks = append(q.tasks, t)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue pops the front task without blocking.
func (q *taskQueue) TryDequeue() (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil, false
	}
	t := q.tasks[0]
	q.tasks[0] = nil
	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}
	return t, true
}

// Wait returns the wakeup channel for use in a select.
func (q *taskQueue) Wait() <-chan struct{} {
	return q.signal
}

func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Closed reports whether Close has been called.
func (q *taskQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops accepting tasks and returns the ones still queued.
func (q *taskQueue) Close() []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.signal)

	pending := q.tasks
	q.tasks = nil
	return pending
}
