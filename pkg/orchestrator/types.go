//go:generate mockgen -destination=./mocks/orchestrator.go . HookRunner

package orchestrator

import (
	"context"
	"time"

	"github.com/glorpus-work/fetchmirror/pkg/download"
	"github.com/glorpus-work/fetchmirror/pkg/hook"
	"github.com/glorpus-work/fetchmirror/pkg/metrics"
	"github.com/glorpus-work/fetchmirror/pkg/refresh"
	"github.com/glorpus-work/fetchmirror/pkg/report"
	"github.com/glorpus-work/fetchmirror/pkg/scheduler"
)

// HookRunner is the subset of the hook manager used by the orchestrator.
type HookRunner interface {
	Execute(ctx context.Context, hookType hook.HookType, hctx hook.HookContext) error
	HasHook(hookType hook.HookType) bool
}

// Orchestrator ties the refresh filter, the batch scheduler and the fetch
// worker together for one run over a manifest.
type Orchestrator struct {
	Inspector refresh.Inspector
	DL        download.Fetcher
	Scripts   HookRunner         // optional
	Metrics   *metrics.Collector // optional
	Hooks     Hooks              // Hooks for progress and event notifications
}

// Event represents a simple progress notification.
type Event struct {
	Phase string // planning|batch|fetched|failed|waiting|done
	ID    string // destination, or batch number
	Msg   string
}

// Hooks carries callbacks for progress events.
type Hooks struct {
	OnEvent func(Event)
}

// Options control orchestrator execution.
type Options struct {
	Scheduler scheduler.Config
	Seed      uint64            // 0 means time-seeded
	Sleeper   scheduler.Sleeper // nil means a real, cancellable sleep
	DryRun    bool
	SweepTemp bool
	RunID     string
}

// Result is the outcome of a run.
type Result struct {
	Plan        *refresh.Plan
	Summary     report.Summary
	Batches     int
	Duration    time.Duration
	Interrupted bool
}
