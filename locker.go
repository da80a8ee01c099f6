package sharedmutex

import (
	"context"
	"sync"
)

// RWLocker is the classic reader/writer lock surface. Both *Mutex and
// *sync.RWMutex implement it.
type RWLocker interface {
	RLock()
	RUnlock()

	Lock()
	Unlock()
}

// ContextLocker is an RWLocker whose acquisitions can be abandoned.
type ContextLocker interface {
	RWLocker

	RLockContext(ctx context.Context) error
	LockContext(ctx context.Context) error
}

var (
	_ ContextLocker = (*Mutex)(nil)
	_ RWLocker      = (*sync.RWMutex)(nil)
)
