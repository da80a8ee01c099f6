package sharedmutex

// Stats is a point-in-time snapshot of a Mutex.
type Stats struct {
	ActiveReaders  int
	WriterActive   bool
	WaitingReaders int
	WaitingWriters int

	// Cumulative counters since the Mutex was created.
	SharedAcquired    uint64
	ExclusiveAcquired uint64
	Contended         uint64 // acquisitions that had to queue
	Cancelled         uint64 // queued acquisitions abandoned by ctx or timeout
}

// Stats returns a consistent snapshot of rw's state.
func (rw *Mutex) Stats() Stats {
	rw.l.Lock()
	defer rw.l.Unlock()
	return Stats{
		ActiveReaders:     rw.readers,
		WriterActive:      rw.writer,
		WaitingReaders:    len(rw.readerQ),
		WaitingWriters:    len(rw.writerQ),
		SharedAcquired:    rw.stats.shared,
		ExclusiveAcquired: rw.stats.exclusive,
		Contended:         rw.stats.contended,
		Cancelled:         rw.stats.cancelled,
	}
}
