package rotator

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/geeooff/iis-log-rotator/internal/logging"
)

// JobInfo describes a scheduled job for display.
type JobInfo struct {
	Name     string
	Schedule string
	LastRun  time.Time // zero if never run
	NextRun  time.Time // zero if not scheduled
}

// Scheduler runs named jobs on cron expressions (five fields, minute
// resolution). A job never overlaps itself: a tick that fires while the
// previous run is still going is dropped.
type Scheduler struct {
	mu        sync.Mutex
	scheduler gocron.Scheduler
	jobs      map[string]gocron.Job
	schedules map[string]string
	logger    *slog.Logger
}

// NewScheduler creates a stopped scheduler evaluating cron expressions in
// loc. A nil loc means time.Local.
func NewScheduler(loc *time.Location, logger *slog.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	s, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, fmt.Errorf("create cron scheduler: %w", err)
	}
	return &Scheduler{
		scheduler: s,
		jobs:      make(map[string]gocron.Job),
		schedules: make(map[string]string),
		logger:    logging.Default(logger).With("component", "scheduler"),
	}, nil
}

// AddJob registers task under name. Names are unique.
func (s *Scheduler) AddJob(name, cronExpr string, task func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("scheduled job already exists: %s", name)
	}
	j, err := s.scheduler.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("create scheduled job %s: %w", name, err)
	}
	s.jobs[name] = j
	s.schedules[name] = cronExpr
	s.logger.Info("scheduled job added", "name", name, "cron", cronExpr)
	return nil
}

// RemoveJob removes a job. No-op if it does not exist.
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[name]
	if !ok {
		return
	}
	if err := s.scheduler.RemoveJob(j.ID()); err != nil {
		s.logger.Warn("failed to remove scheduled job", "name", name, "error", err)
	}
	delete(s.jobs, name)
	delete(s.schedules, name)
	s.logger.Info("scheduled job removed", "name", name)
}

// UpdateJob replaces the schedule of a job, creating it if needed. The job
// is kept unchanged when the expression is invalid.
func (s *Scheduler) UpdateJob(name, cronExpr string, task func()) error {
	if err := gocron.NewDefaultCron(false).IsValid(cronExpr, time.Local, time.Now()); err != nil {
		return fmt.Errorf("schedule %q: %w", cronExpr, err)
	}
	s.mu.Lock()
	current, ok := s.schedules[name]
	s.mu.Unlock()
	if ok && current == cronExpr {
		return nil
	}
	s.RemoveJob(name)
	return s.AddJob(name, cronExpr, task)
}

// Jobs lists the registered jobs.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, j := range s.jobs {
		info := JobInfo{Name: name, Schedule: s.schedules[name]}
		if lr, err := j.LastRun(); err == nil {
			info.LastRun = lr
		}
		if nr, err := j.NextRun(); err == nil {
			info.NextRun = nr
		}
		infos = append(infos, info)
	}
	return infos
}

// Start begins executing jobs.
func (s *Scheduler) Start() {
	s.scheduler.Start()
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop shuts the scheduler down and waits for running jobs.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}
