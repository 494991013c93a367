package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"wtb-relay-go/internal/config"
	"wtb-relay-go/internal/metrics"
)

// Job names
const (
	JobReconcileReputation = "reconcile_reputation"
	JobReloadRouting       = "reload_routing"
)

// Reconciler rebuilds derived reputation from stored reactions
type Reconciler interface {
	ReconcileAll(ctx context.Context) (int, error)
}

// Reloader refreshes the routing dictionaries
type Reloader interface {
	ReloadRouting(ctx context.Context) error
}

// JobStatus is the last known state of one job
type JobStatus struct {
	Name     string        `json:"name"`
	Schedule string        `json:"schedule"`
	NextRun  time.Time     `json:"next_run"`
	LastRun  time.Time     `json:"last_run"`
	Duration time.Duration `json:"duration"`
	LastErr  string        `json:"last_error,omitempty"`
}

type job struct {
	name     string
	schedule string
	run      func(ctx context.Context) error
	entryID  cron.EntryID

	lastRun  time.Time
	duration time.Duration
	lastErr  error
}

// Scheduler runs the periodic maintenance jobs
type Scheduler struct {
	cron      *cron.Cron
	jobs      []*job
	metrics   *metrics.Metrics
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.RWMutex
	runMu     sync.Mutex
	statMu    sync.Mutex
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg *config.SchedulerConfig, reconciler Reconciler, reloader Reloader, m *metrics.Metrics) *Scheduler {
	s := &Scheduler{metrics: m}

	if reconciler != nil {
		s.jobs = append(s.jobs, &job{
			name:     JobReconcileReputation,
			schedule: cfg.ReconcileSchedule,
			run: func(ctx context.Context) error {
				n, err := reconciler.ReconcileAll(ctx)
				if err != nil {
					return err
				}
				logrus.Infof("Reconciled reputation for %d senders", n)
				return nil
			},
		})
	}
	if reloader != nil {
		s.jobs = append(s.jobs, &job{
			name:     JobReloadRouting,
			schedule: cfg.ReloadSchedule,
			run:      reloader.ReloadRouting,
		})
	}
	return s
}

// Start starts the scheduler. A stopped scheduler can be started again.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	c := cron.New(cron.WithSeconds())
	for _, j := range s.jobs {
		j := j
		entryID, err := c.AddFunc(j.schedule, func() { s.runJob(j) })
		if err != nil {
			return fmt.Errorf("failed to add cron job %s: %w", j.name, err)
		}
		j.entryID = entryID
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron = c
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Scheduler started with %d jobs", len(s.jobs))
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	// Cancel context to stop any running operations
	s.cancel()

	ctx := s.cron.Stop()

	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}

	s.isRunning = false
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// runJob executes one job. Runs never overlap.
func (s *Scheduler) runJob(j *job) {
	s.wg.Add(1)
	defer s.wg.Done()

	s.mu.RLock()
	if !s.isRunning {
		s.mu.RUnlock()
		logrus.Infof("Scheduler not running, skipping %s", j.name)
		return
	}
	ctx := s.ctx
	s.mu.RUnlock()

	s.execute(ctx, j)
}

func (s *Scheduler) execute(ctx context.Context, j *job) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := time.Now()
	err := j.run(ctx)

	s.statMu.Lock()
	j.lastRun = start
	j.duration = time.Since(start)
	j.lastErr = err
	s.statMu.Unlock()

	status := "success"
	if err != nil {
		status = "failure"
		logrus.WithError(err).Errorf("Job %s failed", j.name)
	} else {
		logrus.Debugf("Job %s completed in %v", j.name, time.Since(start))
	}
	if s.metrics != nil {
		s.metrics.JobRuns.WithLabelValues(j.name, status).Inc()
	}
	return err
}

// RunOnce runs every job now (for manual triggering) and returns the
// first error encountered
func (s *Scheduler) RunOnce(ctx context.Context) error {
	logrus.Info("Running scheduled jobs once")
	var firstErr error
	for _, j := range s.jobs {
		if err := s.execute(ctx, j); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", j.name, err)
		}
	}
	return firstErr
}

// GetNextRun returns the earliest next run across jobs
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return time.Time{}
	}

	var next time.Time
	for _, j := range s.jobs {
		n := s.cron.Entry(j.entryID).Next
		if next.IsZero() || (!n.IsZero() && n.Before(next)) {
			next = n
		}
	}
	return next
}

// GetLastRun returns the most recent run across jobs
func (s *Scheduler) GetLastRun() time.Time {
	s.statMu.Lock()
	defer s.statMu.Unlock()

	var last time.Time
	for _, j := range s.jobs {
		if j.lastRun.After(last) {
			last = j.lastRun
		}
	}
	return last
}

// Status reports every job
func (s *Scheduler) Status() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.statMu.Lock()
	defer s.statMu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		st := JobStatus{
			Name:     j.name,
			Schedule: j.schedule,
			LastRun:  j.lastRun,
			Duration: j.duration,
		}
		if s.isRunning {
			st.NextRun = s.cron.Entry(j.entryID).Next
		}
		if j.lastErr != nil {
			st.LastErr = j.lastErr.Error()
		}
		out = append(out, st)
	}
	return out
}

// Wait waits for running jobs to finish
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
