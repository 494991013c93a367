package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wtb-relay-go/internal/config"
	"wtb-relay-go/internal/metrics"
)

type countingReconciler struct{ calls atomic.Int32 }

func (c *countingReconciler) ReconcileAll(context.Context) (int, error) {
	c.calls.Add(1)
	return 3, nil
}

type failingReloader struct{ calls atomic.Int32 }

func (f *failingReloader) ReloadRouting(context.Context) error {
	f.calls.Add(1)
	return errors.New("bad topics file")
}

func newTestScheduler(rec Reconciler, rel Reloader) *Scheduler {
	cfg := &config.SchedulerConfig{
		Enabled:           true,
		ReconcileSchedule: "0 0 * * * *",
		ReloadSchedule:    "0 */5 * * * *",
	}
	return NewScheduler(cfg, rec, rel, metrics.NewMetricsWith(prometheus.NewRegistry()))
}

func TestSchedulerRestart(t *testing.T) {
	sched := newTestScheduler(&countingReconciler{}, &failingReloader{})

	require.NoError(t, sched.Start())
	assert.True(t, sched.IsRunning(), "scheduler should be running after Start")
	assert.Error(t, sched.Start(), "double start is rejected")

	require.NoError(t, sched.Stop())
	assert.False(t, sched.IsRunning(), "scheduler should not be running after Stop")
	assert.True(t, sched.GetNextRun().IsZero())

	require.NoError(t, sched.Start())
	assert.True(t, sched.IsRunning(), "scheduler should be running after second Start")
	require.NotNil(t, sched.ctx)
	assert.NoError(t, sched.ctx.Err(), "scheduler context should be active after restart")
	assert.False(t, sched.GetNextRun().IsZero())

	require.NoError(t, sched.Stop())
}

func TestSchedulerInvalidSchedule(t *testing.T) {
	sched := NewScheduler(&config.SchedulerConfig{ReconcileSchedule: "every now and then"}, &countingReconciler{}, nil, nil)
	assert.Error(t, sched.Start())
	assert.False(t, sched.IsRunning())
}

func TestRunOnceRunsEveryJob(t *testing.T) {
	rec := &countingReconciler{}
	rel := &failingReloader{}
	sched := newTestScheduler(rec, rel)

	err := sched.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), JobReloadRouting)
	assert.Equal(t, int32(1), rec.calls.Load())
	assert.Equal(t, int32(1), rel.calls.Load())
	assert.False(t, sched.GetLastRun().IsZero())

	status := sched.Status()
	require.Len(t, status, 2)
	assert.Equal(t, JobReconcileReputation, status[0].Name)
	assert.Empty(t, status[0].LastErr)
	assert.Equal(t, JobReloadRouting, status[1].Name)
	assert.Equal(t, "bad topics file", status[1].LastErr)
	assert.True(t, status[1].NextRun.IsZero(), "not started")
}
