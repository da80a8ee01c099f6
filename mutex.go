package sharedmutex

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrTimeout is returned by timed acquisitions that expired before the lock
// was granted. The caller holds nothing and may retry.
var ErrTimeout = errors.New("sharedmutex: acquisition timed out")

// A Mutex is a reader/writer mutual exclusion lock that prefers writers.
// The lock can be held by an arbitrary number of readers or a single writer.
// The zero value for a Mutex is an unlocked mutex.
//
// Once a writer is waiting, readers that arrive afterwards queue behind it,
// so a stream of readers that release and immediately reacquire cannot
// starve the writer. Readers already holding the lock run to completion and
// the last of them hands the lock directly to the writer. When a writer
// releases, every reader that queued before the next waiting writer is
// admitted together as one batch. Writers are granted in arrival order.
//
// A Mutex is not reentrant: a goroutine that calls RLock or Lock while it
// already holds the lock in any mode deadlocks, exactly like sync.RWMutex.
// Use the Context or Timeout variants where that must be bounded.
type Mutex struct {
	l       sync.Mutex // guards everything below
	readers int        // number of active readers
	writer  bool       // held exclusively
	readerQ waitQueue
	writerQ waitQueue
	ticket  uint64
	clock   clockwork.Clock
	stats   counters
}

type counters struct {
	shared    uint64
	exclusive uint64
	contended uint64
	cancelled uint64
}

// Option configures a Mutex created by New.
type Option func(*Mutex)

// WithClock sets the clock driving RLockTimeout and LockTimeout.
func WithClock(c clockwork.Clock) Option {
	return func(rw *Mutex) {
		rw.clock = c
	}
}

// New returns an unlocked Mutex.
func New(opts ...Option) *Mutex {
	rw := &Mutex{}
	for _, opt := range opts {
		opt(rw)
	}
	return rw
}

// RLock locks rw for reading.
//
// It blocks while a writer holds the lock or is waiting for it.
func (rw *Mutex) RLock() {
	if w := rw.rlockOrEnqueue(); w != nil {
		<-w.ready
	}
}

// TryRLock tries to lock rw for reading and reports whether it succeeded.
// It never blocks and leaves rw untouched on failure.
func (rw *Mutex) TryRLock() bool {
	rw.l.Lock()
	defer rw.l.Unlock()
	if !rw.readableLocked() {
		return false
	}
	rw.readers++
	rw.stats.shared++
	return true
}

// RLockContext is RLock that gives up when ctx is done. On failure the caller
// is removed from the wait queue, holds nothing, and ctx.Err() is returned.
// If the lock is free it is taken even when ctx is already done.
func (rw *Mutex) RLockContext(ctx context.Context) error {
	w := rw.rlockOrEnqueue()
	if w == nil {
		return nil
	}
	return rw.wait(ctx, w, false, nil)
}

// RLockTimeout is RLock bounded by d on the mutex clock. It returns
// ErrTimeout on expiry. A non-positive d makes it a TryRLock.
func (rw *Mutex) RLockTimeout(d time.Duration) error {
	if d <= 0 {
		if rw.TryRLock() {
			return nil
		}
		return ErrTimeout
	}
	w := rw.rlockOrEnqueue()
	if w == nil {
		return nil
	}
	t := rw.getClock().NewTimer(d)
	defer t.Stop()
	return rw.wait(context.Background(), w, false, t.Chan())
}

// RUnlock undoes a single RLock call;
// it does not affect other simultaneous readers.
// It is a run-time error if rw is not locked for reading
// on entry to RUnlock.
func (rw *Mutex) RUnlock() {
	rw.l.Lock()
	defer rw.l.Unlock()
	if rw.readers == 0 {
		panic("sharedmutex: RUnlock of unlocked Mutex")
	}
	rw.readers--
	rw.dispatchLocked()
}

// Lock locks rw for writing.
// If the lock is already locked for reading or writing,
// Lock blocks until the lock is available.
func (rw *Mutex) Lock() {
	if w := rw.lockOrEnqueue(); w != nil {
		<-w.ready
	}
}

// TryLock tries to lock rw for writing and reports whether it succeeded.
// It never blocks and leaves rw untouched on failure.
func (rw *Mutex) TryLock() bool {
	rw.l.Lock()
	defer rw.l.Unlock()
	if !rw.writableLocked() {
		return false
	}
	rw.writer = true
	rw.stats.exclusive++
	return true
}

// LockContext is Lock that gives up when ctx is done, with the same
// guarantees as RLockContext.
func (rw *Mutex) LockContext(ctx context.Context) error {
	w := rw.lockOrEnqueue()
	if w == nil {
		return nil
	}
	return rw.wait(ctx, w, true, nil)
}

// LockTimeout is Lock bounded by d on the mutex clock. It returns
// ErrTimeout on expiry. A non-positive d makes it a TryLock.
func (rw *Mutex) LockTimeout(d time.Duration) error {
	if d <= 0 {
		if rw.TryLock() {
			return nil
		}
		return ErrTimeout
	}
	w := rw.lockOrEnqueue()
	if w == nil {
		return nil
	}
	t := rw.getClock().NewTimer(d)
	defer t.Stop()
	return rw.wait(context.Background(), w, true, t.Chan())
}

// Unlock unlocks rw for writing. It is a run-time error if rw is
// not locked for writing on entry to Unlock.
//
// As with sync.RWMutex, a locked Mutex is not associated with a particular
// goroutine.
func (rw *Mutex) Unlock() {
	rw.l.Lock()
	defer rw.l.Unlock()
	if !rw.writer {
		panic("sharedmutex: Unlock of unlocked Mutex")
	}
	rw.writer = false
	rw.dispatchLocked()
}

// RLocker returns a Locker interface that implements
// the Lock and Unlock methods by calling rw.RLock and rw.RUnlock.
func (rw *Mutex) RLocker() sync.Locker {
	return (*rlocker)(rw)
}

type rlocker Mutex

func (r *rlocker) Lock()   { (*Mutex)(r).RLock() }
func (r *rlocker) Unlock() { (*Mutex)(r).RUnlock() }

// readableLocked reports whether a new reader may enter without queueing.
func (rw *Mutex) readableLocked() bool {
	return !rw.writer && len(rw.writerQ) == 0 && len(rw.readerQ) == 0
}

func (rw *Mutex) writableLocked() bool {
	return !rw.writer && rw.readers == 0 && len(rw.writerQ) == 0 && len(rw.readerQ) == 0
}

func (rw *Mutex) rlockOrEnqueue() *waiter {
	rw.l.Lock()
	defer rw.l.Unlock()
	if rw.readableLocked() {
		rw.readers++
		rw.stats.shared++
		return nil
	}
	return rw.enqueueLocked(&rw.readerQ)
}

func (rw *Mutex) lockOrEnqueue() *waiter {
	rw.l.Lock()
	defer rw.l.Unlock()
	if rw.writableLocked() {
		rw.writer = true
		rw.stats.exclusive++
		return nil
	}
	return rw.enqueueLocked(&rw.writerQ)
}

func (rw *Mutex) enqueueLocked(q *waitQueue) *waiter {
	rw.ticket++
	rw.stats.contended++
	w := newWaiter(rw.ticket)
	q.push(w)
	return w
}

// wait blocks until w is granted, ctx is done or expired fires. On failure
// w leaves its queue; a grant that raced the failure is given back.
func (rw *Mutex) wait(ctx context.Context, w *waiter, exclusive bool, expired <-chan time.Time) error {
	var err error
	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		err = ctx.Err()
	case <-expired:
		err = ErrTimeout
	}

	rw.l.Lock()
	defer rw.l.Unlock()
	switch {
	case !w.granted():
		if exclusive {
			rw.writerQ.remove(w)
		} else {
			rw.readerQ.remove(w)
		}
	case exclusive:
		rw.writer = false
	default:
		rw.readers--
	}
	rw.stats.cancelled++
	rw.dispatchLocked()
	return err
}

// dispatchLocked grants the lock to whoever the fairness policy selects.
// Readers that queued before the front writer enter together; the front
// writer enters once no reader is active.
func (rw *Mutex) dispatchLocked() {
	if rw.writer {
		return
	}

	next := rw.writerQ.front()
	n := 0
	for n < len(rw.readerQ) && (next == nil || rw.readerQ[n].ticket < next.ticket) {
		n++
	}
	for i := 0; i < n; i++ {
		rw.readerQ.popFront().grant()
	}
	rw.readers += n
	rw.stats.shared += uint64(n)

	if rw.readers == 0 && next != nil {
		rw.writerQ.popFront().grant()
		rw.writer = true
		rw.stats.exclusive++
	}
}

func (rw *Mutex) getClock() clockwork.Clock {
	if rw.clock == nil {
		return clockwork.NewRealClock()
	}
	return rw.clock
}
