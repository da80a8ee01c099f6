// Package scenario runs the reader/writer starvation workload: a group of
// readers that keep releasing and immediately reacquiring shared access, and
// one writer that asks for exclusive access after a delay.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/thetarby/sharedmutex"
)

type Config struct {
	Readers     int           // number of reader goroutines
	Hold        time.Duration // how long a reader keeps the lock per cycle
	WriterDelay time.Duration // delay before the writer asks for the lock
	Run         time.Duration // readers stop cycling after this much time

	Clock  clockwork.Clock
	Logger *zap.Logger
}

// DefaultConfig mirrors the classic shared_mutex starvation test.
func DefaultConfig() Config {
	return Config{
		Readers:     runtime.GOMAXPROCS(0),
		Hold:        100 * time.Millisecond,
		WriterDelay: time.Second,
		Run:         2 * time.Second,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Readers < 1:
		return fmt.Errorf("readers must be positive, got %d", c.Readers)
	case c.Hold <= 0:
		return fmt.Errorf("hold must be positive, got %v", c.Hold)
	case c.WriterDelay < 0:
		return fmt.Errorf("writer delay must not be negative, got %v", c.WriterDelay)
	case c.Run <= c.WriterDelay:
		return errors.New("run must be longer than the writer delay")
	}
	return nil
}

type Result struct {
	// WriterWait is the time from the start of the run to the moment the
	// writer held the lock.
	WriterWait   time.Duration
	ReaderCycles []int64
	Run          time.Duration
}

// Starved reports whether the writer only got in after the readers stopped.
func (r Result) Starved() bool {
	return r.WriterWait >= r.Run
}

func (r Result) TotalCycles() int64 {
	var n int64
	for _, c := range r.ReaderCycles {
		n += c
	}
	return n
}

// Run executes the workload against l. The first worker failure cancels the
// others and is returned once every worker has stopped.
func Run(ctx context.Context, l sharedmutex.RWLocker, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid scenario: %w", err)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &runner{
		l:      l,
		cfg:    cfg,
		clock:  clock,
		logger: logger,
		cycles: make([]atomic.Int64, cfg.Readers),
	}
	r.start = clock.Now()
	logger.Info("scenario started",
		zap.Int("readers", cfg.Readers),
		zap.Duration("hold", cfg.Hold),
		zap.Duration("writer_delay", cfg.WriterDelay),
		zap.Duration("run", cfg.Run))

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Readers; i++ {
		g.Go(func() error {
			if err := r.reader(gctx, i); err != nil {
				return fmt.Errorf("reader %d: %w", i, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		if err := r.writer(gctx); err != nil {
			return fmt.Errorf("writer: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Warn("scenario aborted", zap.Error(err))
		return Result{}, err
	}

	res := Result{
		WriterWait:   time.Duration(r.writerWait.Load()),
		ReaderCycles: make([]int64, cfg.Readers),
		Run:          cfg.Run,
	}
	for i := range r.cycles {
		res.ReaderCycles[i] = r.cycles[i].Load()
	}
	logger.Info("scenario finished",
		zap.Duration("writer_wait", res.WriterWait),
		zap.Int64("reader_cycles", res.TotalCycles()),
		zap.Bool("starved", res.Starved()))
	return res, nil
}

type runner struct {
	l      sharedmutex.RWLocker
	cfg    Config
	clock  clockwork.Clock
	logger *zap.Logger
	start  time.Time

	cycles     []atomic.Int64
	writerWait atomic.Int64
}

func (r *runner) rlock(ctx context.Context) error {
	if cl, ok := r.l.(sharedmutex.ContextLocker); ok {
		return cl.RLockContext(ctx)
	}
	r.l.RLock()
	return nil
}

func (r *runner) lock(ctx context.Context) error {
	if cl, ok := r.l.(sharedmutex.ContextLocker); ok {
		return cl.LockContext(ctx)
	}
	r.l.Lock()
	return nil
}

// reader repeatedly does a shared unlock + lock until the run is over.
func (r *runner) reader(ctx context.Context, id int) error {
	if err := r.rlock(ctx); err != nil {
		return err
	}
	for r.clock.Since(r.start) <= r.cfg.Run {
		if err := r.sleep(ctx, r.cfg.Hold); err != nil {
			r.l.RUnlock()
			return err
		}
		r.l.RUnlock()
		r.cycles[id].Add(1)
		if err := r.rlock(ctx); err != nil {
			return err
		}
	}
	r.l.RUnlock()
	r.logger.Debug("reader done", zap.Int("reader", id), zap.Int64("cycles", r.cycles[id].Load()))
	return nil
}

func (r *runner) writer(ctx context.Context) error {
	if err := r.sleep(ctx, r.cfg.WriterDelay); err != nil {
		return err
	}
	r.logger.Debug("writer waiting")
	if err := r.lock(ctx); err != nil {
		return err
	}
	wait := r.clock.Since(r.start)
	r.l.Unlock()
	r.writerWait.Store(int64(wait))
	r.logger.Debug("writer got the lock", zap.Duration("after", wait))
	return nil
}

func (r *runner) sleep(ctx context.Context, d time.Duration) error {
	t := r.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.Chan():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
