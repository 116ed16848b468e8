package pool

// grant is what a releaser hands to a blocked acquirer.
type grant[R comparable] struct {
	// res is set when a released resource was passed directly to the
	// waiter. It is already tracked as active on the waiter's behalf.
	res     R
	handoff bool
	// slot is set when capacity was freed without a resource, so the
	// waiter may try to create one.
	slot bool
	// err is set when the waiter must give up, e.g. the pool closed.
	err error
}

// waiter is a blocked acquirer. ch is buffered so a grant never blocks the
// granting goroutine, which holds the pool lock.
type waiter[R comparable] struct {
	ch chan grant[R]
}

// waitQueue is a FIFO of blocked acquirers. It is guarded by the pool lock.
type waitQueue[R comparable] struct {
	waiters []*waiter[R]
}

func (q *waitQueue[R]) len() int {
	return len(q.waiters)
}

// enqueue appends a new waiter.
func (q *waitQueue[R]) enqueue() *waiter[R] {
	w := &waiter[R]{ch: make(chan grant[R], 1)}
	q.waiters = append(q.waiters, w)
	return w
}

// dequeue removes and returns the longest waiting acquirer.
func (q *waitQueue[R]) dequeue() (*waiter[R], bool) {
	if len(q.waiters) == 0 {
		return nil, false
	}
	w := q.waiters[0]
	q.waiters[0] = nil
	q.waiters = q.waiters[1:]
	return w, true
}

// remove drops w from the queue. It reports false when w was already
// dequeued, meaning a grant is waiting in w.ch.
func (q *waitQueue[R]) remove(w *waiter[R]) bool {
	for i, qw := range q.waiters {
		if qw == w {
			copy(q.waiters[i:], q.waiters[i+1:])
			q.waiters[len(q.waiters)-1] = nil
			q.waiters = q.waiters[:len(q.waiters)-1]
			return true
		}
	}
	return false
}

// drain removes every waiter and returns them in FIFO order.
func (q *waitQueue[R]) drain() []*waiter[R] {
	ws := q.waiters
	q.waiters = nil
	return ws
}
