// Package refresh classifies manifest tasks into fetch, skip and
// force-refresh before any network access takes place.
package refresh

import (
	"context"
	"time"

	"github.com/glorpus-work/fetchmirror/internal/logger"
	"github.com/glorpus-work/fetchmirror/pkg/cache"
	"github.com/glorpus-work/fetchmirror/pkg/index"
	"github.com/glorpus-work/fetchmirror/pkg/model"
)

// Inspector is the subset of cache.Validator the filter relies on.
type Inspector interface {
	IsValid(path string, kind model.ContentKind) bool
	EmbeddedTimestamp(path string, kind model.ContentKind) (time.Time, error)
}

// Index is the subset of index.Index the filter relies on.
type Index interface {
	Lookup(id string) (time.Time, bool)
}

// SkipRecorder receives skip decisions as they are made.
type SkipRecorder interface {
	RecordSkip(task model.ResourceTask)
}

// Decision is the class assigned to one task.
type Decision struct {
	Task   model.ResourceTask
	Class  model.Class
	Reason string
}

// Plan holds the decisions for a manifest, in manifest order.
type Plan struct {
	Decisions []Decision
}

// Pending returns the fetch and force-refresh tasks in manifest order.
func (p *Plan) Pending() []model.PendingTask {
	pending := make([]model.PendingTask, 0, len(p.Decisions))
	for _, d := range p.Decisions {
		if d.Class.NeedsFetch() {
			pending = append(pending, model.PendingTask{Task: d.Task, Class: d.Class})
		}
	}
	return pending
}

// Count returns the number of decisions with the given class.
func (p *Plan) Count(class model.Class) int {
	n := 0
	for _, d := range p.Decisions {
		if d.Class == class {
			n++
		}
	}
	return n
}

// Filter applies the refresh rules.
type Filter struct {
	inspector Inspector
	index     Index
	recorder  SkipRecorder
	sweepTemp bool
}

// Option configures a Filter.
type Option func(*Filter)

// WithSkipRecorder records every skip decision on r.
func WithSkipRecorder(r SkipRecorder) Option {
	return func(f *Filter) { f.recorder = r }
}

// WithTempSweep removes leftover temp files next to each destination while
// classifying.
func WithTempSweep() Option {
	return func(f *Filter) { f.sweepTemp = true }
}

// NewFilter creates a filter. A nil idx behaves as an empty index.
func NewFilter(inspector Inspector, idx Index, opts ...Option) *Filter {
	if idx == nil {
		idx = index.Empty()
	}
	f := &Filter{inspector: inspector, index: idx}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Classify decides every task. It stops early only when ctx is cancelled,
// in which case the undecided tasks are classified fetch so they are
// reported rather than silently dropped.
func (f *Filter) Classify(ctx context.Context, tasks []model.ResourceTask) *Plan {
	plan := &Plan{Decisions: make([]Decision, 0, len(tasks))}
	for _, task := range tasks {
		var d Decision
		if ctx.Err() != nil {
			d = Decision{Task: task, Class: model.ClassFetch, Reason: "not classified: " + ctx.Err().Error()}
		} else {
			d = f.decide(task)
		}

		if d.Class == model.ClassSkip && f.recorder != nil {
			f.recorder.RecordSkip(task)
		}
		logger.Debug("Classified task", logger.Fields{
			"destination": task.Destination,
			"class":       d.Class.String(),
			"reason":      d.Reason,
		})
		plan.Decisions = append(plan.Decisions, d)
	}
	return plan
}

func (f *Filter) decide(task model.ResourceTask) Decision {
	if f.sweepTemp {
		cache.SweepTemp(task.Destination)
	}

	if !f.inspector.IsValid(task.Destination, task.Kind) {
		return Decision{Task: task, Class: model.ClassFetch, Reason: "missing or invalid cached copy"}
	}

	id := index.ResourceID(task.Destination)
	indexed, ok := f.index.Lookup(id)
	if !ok {
		return Decision{Task: task, Class: model.ClassSkip, Reason: "valid cached copy, not in index"}
	}

	embedded, err := f.inspector.EmbeddedTimestamp(task.Destination, task.Kind)
	if err != nil {
		return Decision{Task: task, Class: model.ClassForceRefresh, Reason: "cached timestamp unreadable: " + err.Error()}
	}
	if indexed.After(embedded) {
		return Decision{Task: task, Class: model.ClassForceRefresh, Reason: "index reports a newer version"}
	}
	return Decision{Task: task, Class: model.ClassSkip, Reason: "cached copy is current"}
}
