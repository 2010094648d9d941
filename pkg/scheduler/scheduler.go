// Package scheduler dispatches pending tasks in randomly sized, randomly
// selected batches separated by randomized pauses, with at most
// MaxConcurrent tasks in flight.
package scheduler

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/glorpus-work/fetchmirror/pkg/errors"
	"github.com/glorpus-work/fetchmirror/pkg/model"
	"golang.org/x/sync/semaphore"
)

// Scheduler runs batches. It is not safe for concurrent use by multiple
// Run calls because it owns its random source.
type Scheduler struct {
	cfg   Config
	rng   *rand.Rand
	sleep Sleeper
	gate  *semaphore.Weighted
	hooks Hooks
	now   func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRand sets the random source used for batch sizes, selection and delays.
func WithRand(r *rand.Rand) Option {
	return func(s *Scheduler) { s.rng = r }
}

// WithSeed seeds a PCG random source. Zero keeps the default time-seeded source.
func WithSeed(seed uint64) Option {
	return func(s *Scheduler) {
		if seed != 0 {
			s.rng = NewRand(seed)
		}
	}
}

// WithSleeper replaces the inter-batch sleep.
func WithSleeper(fn Sleeper) Option {
	return func(s *Scheduler) { s.sleep = fn }
}

// WithHooks sets progress callbacks.
func WithHooks(h Hooks) Option {
	return func(s *Scheduler) { s.hooks = h }
}

// NewRand returns a PCG source seeded from seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// New validates cfg and creates a Scheduler.
func New(cfg Config, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Scheduler{
		cfg:   cfg,
		sleep: sleepContext,
		gate:  semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		seed := uint64(time.Now().UnixNano())
		s.rng = NewRand(seed)
	}
	return s, nil
}

// Validate checks the bounds.
func (c Config) Validate() error {
	if c.MinBatch < 1 || c.MaxBatch < c.MinBatch {
		return errors.Wrapf(errors.ErrBatchBoundsInvalid, "min=%d max=%d", c.MinBatch, c.MaxBatch)
	}
	if c.MinDelay < 0 || c.MaxDelay < c.MinDelay {
		return errors.Wrapf(errors.ErrDelayBoundsInvalid, "min=%s max=%s", c.MinDelay, c.MaxDelay)
	}
	if c.MaxConcurrent < 1 {
		return errors.Wrapf(errors.ErrMaxConcurrentInvalid, "got %d", c.MaxConcurrent)
	}
	return nil
}

// Run dispatches every pending task to worker. Batches run strictly one
// after another; within a batch each task runs in its own goroutine behind
// the concurrency gate.
//
// When ctx is cancelled no further batch is started. A batch already
// dispatched runs to completion, and the tasks never dispatched are
// returned in Result.Undispatched together with the context error.
func (s *Scheduler) Run(ctx context.Context, pending []model.PendingTask, worker Worker) (Result, error) {
	pool := append([]model.PendingTask(nil), pending...)
	var res Result

	for len(pool) > 0 {
		if err := ctx.Err(); err != nil {
			res.Undispatched = pool
			return res, err
		}

		size := s.batchSize(len(pool))
		batch := s.selectBatch(pool, size)
		pool = pool[size:]
		res.Batches++

		info := BatchInfo{Number: res.Batches, Size: size, Remaining: len(pool)}
		s.emit(withPhase(info, PhaseStart))

		start := s.now()
		s.dispatch(ctx, batch, worker)
		res.Dispatched += size

		done := withPhase(info, PhaseDone)
		done.Elapsed = s.now().Sub(start)
		s.emit(done)

		if len(pool) == 0 {
			break
		}

		delay := s.delay()
		wait := withPhase(info, PhaseDelay)
		wait.Delay = delay
		s.emit(wait)
		if err := s.sleep(ctx, delay); err != nil {
			res.Undispatched = pool
			return res, err
		}
	}

	return res, nil
}

func (s *Scheduler) dispatch(ctx context.Context, batch []model.PendingTask, worker Worker) {
	// Acquisition ignores cancellation so a started batch always completes.
	gateCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for _, task := range batch {
		wg.Add(1)
		go func(task model.PendingTask) {
			defer wg.Done()
			if err := s.gate.Acquire(gateCtx, 1); err != nil {
				return
			}
			defer s.gate.Release(1)
			worker.Process(ctx, task)
		}(task)
	}
	wg.Wait()
}

// batchSize draws uniformly from [min(MinBatch, remaining), min(MaxBatch, remaining)].
func (s *Scheduler) batchSize(remaining int) int {
	lo := min(s.cfg.MinBatch, remaining)
	hi := min(s.cfg.MaxBatch, remaining)
	return lo + s.rng.IntN(hi-lo+1)
}

// selectBatch moves k uniformly chosen tasks to the front of pool with a
// partial Fisher-Yates shuffle and returns them.
func (s *Scheduler) selectBatch(pool []model.PendingTask, k int) []model.PendingTask {
	for i := 0; i < k; i++ {
		j := i + s.rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k:k]
}

func (s *Scheduler) delay() time.Duration {
	span := s.cfg.MaxDelay - s.cfg.MinDelay
	if span <= 0 {
		return s.cfg.MinDelay
	}
	return s.cfg.MinDelay + time.Duration(s.rng.Int64N(int64(span)+1))
}

func (s *Scheduler) emit(info BatchInfo) {
	if s.hooks.OnBatch != nil {
		s.hooks.OnBatch(info)
	}
}

func withPhase(info BatchInfo, phase Phase) BatchInfo {
	info.Phase = phase
	return info
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
