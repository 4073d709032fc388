// Package tasks runs the housekeeping jobs of the server on cron schedules.
package tasks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Kellerman81/go_business_admin/logger"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Job is the status of a scheduled job.
type Job struct {
	ID       string
	Name     string
	Schedule string
	Added    time.Time
	LastRun  time.Time
	NextRun  time.Time
	Runs     int
	// LastResult is the summary returned by the last run.
	LastResult string
}

type wrappedLogger struct{}

func (*wrappedLogger) Info(_ string, _ ...any) {}

func (*wrappedLogger) Error(err error, msg string, keysAndValues ...any) {
	logger.Logtype(logger.StatusError, 0).
		Any("values", keysAndValues).
		Str("msg", msg).
		Err(err).
		Msg("cron error")
}

// Scheduler runs named jobs on cron definitions with seconds.
type Scheduler struct {
	name string
	cron *cron.Cron

	mu      sync.Mutex
	jobs    map[string]*Job
	entries map[string]cron.EntryID
	active  bool
}

// NewScheduler creates a stopped scheduler. A panicking job is recovered
// and logged.
func NewScheduler(name string) *Scheduler {
	wl := &wrappedLogger{}
	return &Scheduler{
		name: name,
		cron: cron.New(
			cron.WithLocation(logger.GetTimeZone()),
			cron.WithLogger(wl),
			cron.WithChain(cron.Recover(wl), cron.SkipIfStillRunning(wl)),
			cron.WithSeconds(),
		),
		jobs:    make(map[string]*Job),
		entries: make(map[string]cron.EntryID),
	}
}

// Start begins executing jobs.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.active = true
	s.mu.Unlock()
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	s.active = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddCron schedules run under name. The returned string of run is kept as
// the result of the last run. A second job with the same name replaces the first.
func (s *Scheduler) AddCron(name, spec string, run func() string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.entries[name]; ok {
		s.cron.Remove(old)
	}

	job := &Job{ID: uuid.New().String(), Name: name, Schedule: spec, Added: time.Now()}
	id, err := s.cron.AddFunc(spec, func() { s.execute(name, run) })
	if err != nil {
		return err
	}
	s.jobs[name] = job
	s.entries[name] = id
	return nil
}

// RunNow executes the job name outside its schedule.
func (s *Scheduler) RunNow(name string, run func() string) {
	s.execute(name, run)
}

func (s *Scheduler) execute(name string, run func() string) {
	started := time.Now()
	result := run()

	s.mu.Lock()
	if job, ok := s.jobs[name]; ok {
		job.LastRun = started
		job.Runs++
		job.LastResult = result
	}
	s.mu.Unlock()

	logger.Logtype(logger.StatusDebug, 0).
		Str("scheduler", s.name).
		Str("job", name).
		Str("result", result).
		Dur("elapsed", time.Since(started)).
		Msg("Job finished")
}

// Jobs returns a snapshot of all jobs sorted by name.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for name, job := range s.jobs {
		j := *job
		if id, ok := s.entries[name]; ok {
			j.NextRun = s.cron.Entry(id).Next
		}
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}
