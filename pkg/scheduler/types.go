//go:generate mockgen -destination=./mocks/scheduler.go . Worker

package scheduler

import (
	"context"
	"time"

	"github.com/glorpus-work/fetchmirror/pkg/model"
)

// Worker processes one dispatched task. Outcomes are the worker's concern;
// the scheduler only guarantees that every dispatched task is handed to
// Process exactly once.
type Worker interface {
	Process(ctx context.Context, task model.PendingTask)
}

// WorkerFunc adapts a function to Worker.
type WorkerFunc func(ctx context.Context, task model.PendingTask)

// Process implements Worker.
func (f WorkerFunc) Process(ctx context.Context, task model.PendingTask) { f(ctx, task) }

// Config bounds batch sizes, inter-batch delays and concurrency.
type Config struct {
	MinBatch      int
	MaxBatch      int
	MinDelay      time.Duration
	MaxDelay      time.Duration
	MaxConcurrent int
}

// Phase identifies a BatchInfo notification.
type Phase string

const (
	PhaseStart Phase = "start"
	PhaseDone  Phase = "done"
	PhaseDelay Phase = "delay"
)

// BatchInfo describes one batch. Elapsed is set for PhaseDone, Delay for
// PhaseDelay.
type BatchInfo struct {
	Phase     Phase
	Number    int
	Size      int
	Remaining int
	Elapsed   time.Duration
	Delay     time.Duration
}

// Hooks carries callbacks for batch progress.
type Hooks struct {
	OnBatch func(BatchInfo)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Result summarizes a scheduler run.
type Result struct {
	Batches      int
	Dispatched   int
	Undispatched []model.PendingTask
}
