package sharedmutex

import (
	"context"
	"sync/atomic"
)

// SharedGuard represents shared ownership of a Mutex. Release must be called
// exactly once; the usual pattern is
//
//	g := rw.AcquireShared()
//	defer g.Release()
type SharedGuard struct {
	rw       *Mutex
	released atomic.Bool
}

// Release gives up shared ownership. Releasing twice panics.
func (g *SharedGuard) Release() {
	if g.released.Swap(true) {
		panic("sharedmutex: SharedGuard released twice")
	}
	g.rw.RUnlock()
}

// ExclusiveGuard represents exclusive ownership of a Mutex.
type ExclusiveGuard struct {
	rw       *Mutex
	released atomic.Bool
}

// Release gives up exclusive ownership. Releasing twice panics.
func (g *ExclusiveGuard) Release() {
	if g.released.Swap(true) {
		panic("sharedmutex: ExclusiveGuard released twice")
	}
	g.rw.Unlock()
}

// AcquireShared blocks until rw is held for reading.
func (rw *Mutex) AcquireShared() *SharedGuard {
	rw.RLock()
	return &SharedGuard{rw: rw}
}

// TryAcquireShared is the non-blocking form of AcquireShared.
func (rw *Mutex) TryAcquireShared() (*SharedGuard, bool) {
	if !rw.TryRLock() {
		return nil, false
	}
	return &SharedGuard{rw: rw}, true
}

func (rw *Mutex) AcquireSharedContext(ctx context.Context) (*SharedGuard, error) {
	if err := rw.RLockContext(ctx); err != nil {
		return nil, err
	}
	return &SharedGuard{rw: rw}, nil
}

// AcquireExclusive blocks until rw is held for writing.
func (rw *Mutex) AcquireExclusive() *ExclusiveGuard {
	rw.Lock()
	return &ExclusiveGuard{rw: rw}
}

// TryAcquireExclusive is the non-blocking form of AcquireExclusive.
func (rw *Mutex) TryAcquireExclusive() (*ExclusiveGuard, bool) {
	if !rw.TryLock() {
		return nil, false
	}
	return &ExclusiveGuard{rw: rw}, true
}

func (rw *Mutex) AcquireExclusiveContext(ctx context.Context) (*ExclusiveGuard, error) {
	if err := rw.LockContext(ctx); err != nil {
		return nil, err
	}
	return &ExclusiveGuard{rw: rw}, nil
}

// WithShared runs fn holding rw for reading. The lock is released on every
// exit path, including a panic in fn.
func (rw *Mutex) WithShared(fn func() error) error {
	g := rw.AcquireShared()
	defer g.Release()
	return fn()
}

// WithExclusive runs fn holding rw for writing. The lock is released on
// every exit path, including a panic in fn.
func (rw *Mutex) WithExclusive(fn func() error) error {
	g := rw.AcquireExclusive()
	defer g.Release()
	return fn()
}
