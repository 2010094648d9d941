package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/glorpus-work/fetchmirror/internal/logger"
	"github.com/glorpus-work/fetchmirror/pkg/errors"
	"github.com/glorpus-work/fetchmirror/pkg/hook"
	"github.com/glorpus-work/fetchmirror/pkg/index"
	"github.com/glorpus-work/fetchmirror/pkg/model"
	"github.com/glorpus-work/fetchmirror/pkg/refresh"
	"github.com/glorpus-work/fetchmirror/pkg/report"
	"github.com/glorpus-work/fetchmirror/pkg/scheduler"
)

func emit(h Hooks, e Event) {
	if h.OnEvent != nil {
		h.OnEvent(e)
	}
}

// Plan classifies tasks without touching the network.
func (o *Orchestrator) Plan(ctx context.Context, tasks []model.ResourceTask, idx refresh.Index, opts Options) (*refresh.Plan, *report.Statistics, error) {
	if o.Inspector == nil {
		return nil, nil, fmt.Errorf("cache inspector is not configured")
	}

	stats := report.NewStatistics()
	filterOpts := []refresh.Option{refresh.WithSkipRecorder(stats)}
	if opts.SweepTemp && !opts.DryRun {
		filterOpts = append(filterOpts, refresh.WithTempSweep())
	}

	emit(o.Hooks, Event{Phase: "planning", Msg: strconv.Itoa(len(tasks)) + " tasks"})
	plan := refresh.NewFilter(o.Inspector, idx, filterOpts...).Classify(ctx, tasks)

	logger.Info("Classified manifest", logger.Fields{
		"tasks":         len(tasks),
		"fetch":         plan.Count(model.ClassFetch),
		"force_refresh": plan.Count(model.ClassForceRefresh),
		"skip":          plan.Count(model.ClassSkip),
	})
	return plan, stats, nil
}

// Run reconciles the mirror with tasks. Per-task failures are recorded in
// the summary and never returned; an error means the run could not start.
// Cancelling ctx stops new batches; undispatched tasks are reported as
// failed.
func (o *Orchestrator) Run(ctx context.Context, tasks []model.ResourceTask, idx refresh.Index, opts Options) (*Result, error) {
	if o.DL == nil && !opts.DryRun {
		return nil, fmt.Errorf("fetch worker is not configured")
	}

	sched, err := scheduler.New(opts.Scheduler, o.schedulerOptions(opts)...)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	plan, stats, err := o.Plan(ctx, tasks, idx, opts)
	if err != nil {
		return nil, err
	}

	result := &Result{Plan: plan}
	if opts.DryRun {
		result.Summary = stats.Summary()
		result.Duration = time.Since(start)
		return result, nil
	}

	worker := scheduler.WorkerFunc(func(ctx context.Context, pt model.PendingTask) {
		o.process(ctx, pt, stats)
	})

	res, runErr := sched.Run(ctx, plan.Pending(), worker)
	result.Batches = res.Batches
	if runErr != nil {
		result.Interrupted = true
		logger.Warn("Run interrupted, remaining tasks not dispatched", logger.Fields{
			"undispatched": len(res.Undispatched),
			"error":        runErr.Error(),
		})
		for _, pt := range res.Undispatched {
			stats.RecordFailure(pt, errors.Wrap(errors.ErrNotDispatched, runErr.Error()))
		}
	}

	result.Summary = stats.Summary()
	result.Duration = time.Since(start)
	o.finish(ctx, result, opts)
	return result, nil
}

func (o *Orchestrator) schedulerOptions(opts Options) []scheduler.Option {
	schedOpts := []scheduler.Option{
		scheduler.WithSeed(opts.Seed),
		scheduler.WithHooks(scheduler.Hooks{OnBatch: o.onBatch}),
	}
	if opts.Sleeper != nil {
		schedOpts = append(schedOpts, scheduler.WithSleeper(opts.Sleeper))
	}
	return schedOpts
}

func (o *Orchestrator) onBatch(b scheduler.BatchInfo) {
	id := strconv.Itoa(b.Number)
	switch b.Phase {
	case scheduler.PhaseStart:
		logger.Infof("Batch %d: processing %d files (%d remaining)", b.Number, b.Size, b.Remaining)
		if o.Metrics != nil {
			o.Metrics.ObserveBatch(b.Size)
		}
		emit(o.Hooks, Event{Phase: "batch", ID: id, Msg: strconv.Itoa(b.Size) + " tasks"})
	case scheduler.PhaseDone:
		logger.Infof("Batch %d completed in %.2fs", b.Number, b.Elapsed.Seconds())
	case scheduler.PhaseDelay:
		logger.Infof("Waiting %.2fs before next batch", b.Delay.Seconds())
		emit(o.Hooks, Event{Phase: "waiting", ID: id, Msg: b.Delay.String()})
	}
}

func (o *Orchestrator) process(ctx context.Context, pt model.PendingTask, stats *report.Statistics) {
	started := time.Now()
	err := o.DL.Fetch(ctx, pt.Task)
	if o.Metrics != nil {
		o.Metrics.ObserveFetch(time.Since(started))
	}

	if err != nil {
		stats.RecordFailure(pt, err)
		logger.Warn("Fetch failed", logger.Fields{
			"url":         pt.Task.URL(),
			"destination": pt.Task.Destination,
			"class":       pt.Class.String(),
			"error":       err.Error(),
		})
		emit(o.Hooks, Event{Phase: "failed", ID: pt.Task.Destination, Msg: err.Error()})
		return
	}

	outcome := stats.RecordSuccess(pt)
	logger.Debug("Fetched", logger.Fields{"destination": pt.Task.Destination, "outcome": outcome})
	emit(o.Hooks, Event{Phase: "fetched", ID: pt.Task.Destination, Msg: outcome})

	if o.Scripts != nil && o.Scripts.HasHook(hook.PostFetch) {
		hctx := hook.FetchContext(pt.Task.URL(), pt.Task.Destination, pt.Task.Kind.String(),
			index.ResourceID(pt.Task.Destination), pt.Class == model.ClassForceRefresh)
		if err := o.Scripts.Execute(ctx, hook.PostFetch, hctx); err != nil {
			logger.Warn("post-fetch hook failed", logger.Fields{"destination": pt.Task.Destination, "error": err.Error()})
		}
	}
}

func (o *Orchestrator) finish(ctx context.Context, result *Result, opts Options) {
	sum := result.Summary
	if o.Metrics != nil {
		for outcome, n := range sum.Counts() {
			o.Metrics.AddOutcome(outcome, n)
		}
		o.Metrics.MarkRunComplete(time.Now())
	}

	if o.Scripts != nil && o.Scripts.HasHook(hook.PostRun) {
		hctx := hook.RunContext(opts.RunID, sum.Fetched, sum.Skipped, sum.ForceRefreshed, sum.Failed)
		// The post-run hook still runs after an interrupt.
		if err := o.Scripts.Execute(context.WithoutCancel(ctx), hook.PostRun, hctx); err != nil {
			logger.Warn("post-run hook failed", logger.Fields{"error": err.Error()})
		}
	}

	emit(o.Hooks, Event{Phase: "done", Msg: fmt.Sprintf("%d/%d tasks failed", sum.Failed, sum.Total)})
}
