package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector()

	c.AddOutcome("fetched", 3)
	c.AddOutcome("failed", 1)
	c.AddOutcome("skipped", 0)
	c.ObserveBatch(5)
	c.ObserveBatch(7)
	c.ObserveFetch(150 * time.Millisecond)

	assert.Equal(t, float64(3), testutil.ToFloat64(c.tasksTotal.WithLabelValues("fetched")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.tasksTotal.WithLabelValues("failed")))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.batchesTotal))
	assert.Equal(t, 2, testutil.CollectAndCount(c.tasksTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(c.fetchDuration))
}

func TestCollector_WriteTextfile(t *testing.T) {
	c := NewCollector()
	c.AddOutcome("fetched", 2)
	c.MarkRunComplete(time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "textfile", "fetchmirror.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `fetchmirror_tasks_total{outcome="fetched"} 2`)
	assert.Contains(t, out, "fetchmirror_last_run_timestamp_seconds 1.7e+09")
	assert.Contains(t, out, "# TYPE fetchmirror_fetch_duration_seconds histogram")
}

func TestCollectors_AreIndependent(t *testing.T) {
	a, b := NewCollector(), NewCollector()
	a.AddOutcome("fetched", 1)
	assert.Equal(t, float64(0), testutil.ToFloat64(b.tasksTotal.WithLabelValues("fetched")))
}
