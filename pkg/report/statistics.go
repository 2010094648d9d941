// Package report accumulates per-run counters and renders the run summary.
package report

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/glorpus-work/fetchmirror/pkg/model"
)

// Outcome labels used by the report and the metrics collector.
const (
	OutcomeFetched        = "fetched"
	OutcomeSkipped        = "skipped"
	OutcomeForceRefreshed = "force_refreshed"
	OutcomeFailed         = "failed"
)

// Failure records one task that did not reach its destination.
type Failure struct {
	Locator     string `json:"locator"`
	Destination string `json:"destination"`
	Class       string `json:"class"`
	Reason      string `json:"reason"`
}

// Statistics is the run accumulator. Counters only ever increase and are
// safe to update from concurrent workers.
type Statistics struct {
	fetched        atomic.Int64
	skipped        atomic.Int64
	forceRefreshed atomic.Int64
	failed         atomic.Int64

	mu       sync.Mutex
	failures []Failure
}

// NewStatistics creates an empty accumulator.
func NewStatistics() *Statistics {
	return &Statistics{}
}

// RecordSkip counts a task whose cached copy was kept.
func (s *Statistics) RecordSkip(model.ResourceTask) {
	s.skipped.Add(1)
}

// RecordSuccess counts a committed fetch under its refresh class and
// returns the outcome label.
func (s *Statistics) RecordSuccess(task model.PendingTask) string {
	if task.Class == model.ClassForceRefresh {
		s.forceRefreshed.Add(1)
		return OutcomeForceRefreshed
	}
	s.fetched.Add(1)
	return OutcomeFetched
}

// RecordFailure counts a failed task and keeps the reason.
func (s *Statistics) RecordFailure(task model.PendingTask, err error) {
	s.failed.Add(1)

	reason := "unknown error"
	if err != nil {
		reason = err.Error()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, Failure{
		Locator:     task.Task.URL(),
		Destination: task.Task.Destination,
		Class:       task.Class.String(),
		Reason:      reason,
	})
}

// Summary is a point-in-time snapshot of Statistics.
type Summary struct {
	Fetched        int64     `json:"fetched"`
	Skipped        int64     `json:"skipped"`
	ForceRefreshed int64     `json:"force_refreshed"`
	Failed         int64     `json:"failed"`
	Total          int64     `json:"total"`
	Failures       []Failure `json:"failures"`
}

// Summary returns a snapshot. Failures are sorted by destination so the
// output does not depend on completion order.
func (s *Statistics) Summary() Summary {
	sum := Summary{
		Fetched:        s.fetched.Load(),
		Skipped:        s.skipped.Load(),
		ForceRefreshed: s.forceRefreshed.Load(),
		Failed:         s.failed.Load(),
	}
	sum.Total = sum.Fetched + sum.Skipped + sum.ForceRefreshed + sum.Failed

	s.mu.Lock()
	sum.Failures = append([]Failure{}, s.failures...)
	s.mu.Unlock()
	sort.SliceStable(sum.Failures, func(i, j int) bool {
		return sum.Failures[i].Destination < sum.Failures[j].Destination
	})
	return sum
}

// Counts returns the counters keyed by outcome label.
func (s Summary) Counts() map[string]int64 {
	return map[string]int64{
		OutcomeFetched:        s.Fetched,
		OutcomeSkipped:        s.Skipped,
		OutcomeForceRefreshed: s.ForceRefreshed,
		OutcomeFailed:         s.Failed,
	}
}
