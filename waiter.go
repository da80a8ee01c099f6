package sharedmutex

/* Wait queue entries. A waiter is woken by closing its ready channel. */

type empty struct{}

type waiter struct {
	ticket uint64 // arrival order across both queues
	ready  chan empty
}

func newWaiter(ticket uint64) *waiter {
	return &waiter{ticket: ticket, ready: make(chan empty)}
}

// grant hands ownership to the waiter. Called with Mutex.l held.
func (w *waiter) grant() {
	close(w.ready)
}

func (w *waiter) granted() bool {
	select {
	case <-w.ready:
		return true
	default:
		return false
	}
}

// waitQueue is a FIFO of blocked callers, ordered by ticket.
type waitQueue []*waiter

func (q *waitQueue) push(w *waiter) {
	*q = append(*q, w)
}

func (q waitQueue) front() *waiter {
	if len(q) == 0 {
		return nil
	}
	return q[0]
}

func (q *waitQueue) popFront() *waiter {
	w := (*q)[0]
	(*q)[0] = nil
	*q = (*q)[1:]
	return w
}

// remove drops w from the queue, keeping the order of the others.
func (q *waitQueue) remove(w *waiter) bool {
	for i, x := range *q {
		if x == w {
			copy((*q)[i:], (*q)[i+1:])
			(*q)[len(*q)-1] = nil
			*q = (*q)[:len(*q)-1]
			return true
		}
	}
	return false
}
