package rotator

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/geeooff/iis-log-rotator/internal/callgroup"
	"github.com/geeooff/iis-log-rotator/internal/logging"
	"github.com/geeooff/iis-log-rotator/internal/report"
	"github.com/geeooff/iis-log-rotator/internal/stream"
)

const rotateJobName = "rotate"

// ErrNoJob is returned by Trigger before the first SetJob.
var ErrNoJob = errors.New("no rotation job configured")

// Job is what one scheduled run processes.
type Job struct {
	Rotator *Rotator
	Specs   []stream.Spec
}

// Service drives periodic rotation for serve mode. The job is hot-swapped
// on configuration reload without interrupting a run in progress.
type Service struct {
	mu    sync.Mutex
	job   *Job
	ctx   context.Context
	sched *Scheduler
	calls callgroup.Group[string, report.Run]

	logger *slog.Logger
}

// NewService creates a service scheduling runs on sched.
func NewService(sched *Scheduler, logger *slog.Logger) *Service {
	return &Service{
		sched:  sched,
		ctx:    context.Background(),
		logger: logging.Default(logger).With("component", "service"),
	}
}

// SetJob replaces the job used by the next run.
func (s *Service) SetJob(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job = &job
	s.logger.Info("rotation job updated", "streams", len(job.Specs))
}

// Schedule sets the cron expression of the periodic run.
func (s *Service) Schedule(cronExpr string) error {
	return s.sched.UpdateJob(rotateJobName, cronExpr, s.tick)
}

// Start starts the scheduler. Scheduled runs use ctx and stop when it is
// canceled.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.sched.Start()
}

// Stop stops the scheduler and waits for a scheduled run in progress.
func (s *Service) Stop() error {
	return s.sched.Stop()
}

// Trigger runs the current job now. A call made while a run is in progress
// joins that run instead of starting another; shared reports that case.
func (s *Service) Trigger(ctx context.Context) (run report.Run, shared bool, err error) {
	s.mu.Lock()
	job := s.job
	s.mu.Unlock()
	if job == nil {
		return report.Run{}, false, ErrNoJob
	}

	ch := s.calls.DoChan(rotateJobName, func() (report.Run, error) {
		return job.Rotator.Run(ctx, job.Specs), nil
	})
	select {
	case r := <-ch:
		return r.Val, r.Shared, r.Err
	case <-ctx.Done():
		return report.Run{}, false, ctx.Err()
	}
}

// Running reports whether a run is in progress.
func (s *Service) Running() bool {
	return s.calls.InFlight(rotateJobName)
}

func (s *Service) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if _, shared, err := s.Trigger(ctx); err != nil {
		s.logger.Warn("scheduled run not started", "error", err)
	} else if shared {
		s.logger.Info("scheduled run merged with a run in progress")
	}
}
