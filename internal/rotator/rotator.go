// Package rotator runs the rotation pipeline over a set of streams:
//
//	list → classify → order → protect latest → delete pass → compress pass → report
//
// A stream that cannot be processed is skipped with a reason and the run
// moves on to the next stream. A file action that fails is recorded and the
// batch continues.
package rotator

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/geeooff/iis-log-rotator/internal/archive"
	"github.com/geeooff/iis-log-rotator/internal/classify"
	"github.com/geeooff/iis-log-rotator/internal/dirlock"
	"github.com/geeooff/iis-log-rotator/internal/logging"
	"github.com/geeooff/iis-log-rotator/internal/report"
	"github.com/geeooff/iis-log-rotator/internal/retention"
	"github.com/geeooff/iis-log-rotator/internal/stream"

	"golang.org/x/sync/errgroup"
)

// PolicyResolver returns the retention policy governing a stream.
// *config.Config implements it.
type PolicyResolver interface {
	PolicyFor(spec stream.Spec) retention.Policy
}

// Locker takes the cross-process lock of a log directory.
// dirlock.Locker implements it.
type Locker interface {
	Acquire(dir string) (*dirlock.Lock, error)
}

// Config configures a Rotator.
type Config struct {
	Executor   *archive.Executor
	Classifier *classify.Classifier
	Policies   PolicyResolver
	// Sink receives run events. Nil discards them.
	Sink report.Sink
	// Locker guards each directory while it is mutated. Nil disables
	// locking. Dry runs never lock.
	Locker Locker
	// Now is the clock. Nil means time.Now.
	Now func() time.Time
	// Location is the local time zone of local-time rollover streams.
	// Nil means time.Local.
	Location *time.Location
	// Parallelism bounds how many directories are processed at once.
	// Values below 1 mean one.
	Parallelism int
	Logger      *slog.Logger
}

// Rotator applies retention policies to stream directories.
type Rotator struct {
	exec        *archive.Executor
	classifier  *classify.Classifier
	policies    PolicyResolver
	sink        report.Sink
	locker      Locker
	now         func() time.Time
	location    *time.Location
	parallelism int
	logger      *slog.Logger
}

// New creates a rotator.
func New(cfg Config) *Rotator {
	r := &Rotator{
		exec:        cfg.Executor,
		classifier:  cfg.Classifier,
		policies:    cfg.Policies,
		sink:        cfg.Sink,
		locker:      cfg.Locker,
		now:         cfg.Now,
		location:    cfg.Location,
		parallelism: max(cfg.Parallelism, 1),
		logger:      logging.Default(cfg.Logger).With("component", "rotator"),
	}
	if r.exec == nil {
		r.exec = archive.NewExecutor(archive.Config{Logger: cfg.Logger})
	}
	if r.classifier == nil {
		r.classifier = &classify.Classifier{Location: cfg.Location}
	}
	if r.sink == nil {
		r.sink = report.Nop{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.location == nil {
		r.location = time.Local
	}
	return r
}

// DryRun reports whether the rotator only simulates file actions.
func (r *Rotator) DryRun() bool { return r.exec.DryRun() }

// Run processes specs and returns the run report. Streams are reported in
// the order of specs. Streams sharing a directory are processed one after
// the other by the same worker; distinct directories run in parallel up to
// the configured limit.
//
// Run never fails: every problem is attached to the stream it concerns.
// Canceling ctx stops the run between file actions and marks the remaining
// streams as canceled.
func (r *Rotator) Run(ctx context.Context, specs []stream.Spec) report.Run {
	run := report.NewRun(r.now(), r.DryRun())
	r.logger.Info("streams to process", "run", run.ID.String(), "count", len(specs), "dry_run", run.DryRun)

	results := make([]report.Stream, len(specs))
	var g errgroup.Group
	g.SetLimit(r.parallelism)
	for _, group := range groupByDirectory(specs) {
		g.Go(func() error {
			for _, i := range group {
				results[i] = r.processStream(ctx, specs[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	run.Streams = results
	run.End = r.now()
	r.sink.RunDone(run)
	return run
}

// processStream runs the pipeline for one stream and reports it.
func (r *Rotator) processStream(ctx context.Context, spec stream.Spec) report.Stream {
	s := report.Stream{
		ID:        spec.ID,
		Period:    spec.Period.String(),
		Template:  spec.Template,
		Directory: spec.Directory,
	}
	policy := retention.DefaultPolicy()
	if r.policies != nil {
		policy = r.policies.PolicyFor(spec)
	}
	s.Policy = policy.String()
	r.sink.StreamStarted(s)

	r.rotate(ctx, spec, policy, &s)
	r.sink.StreamDone(s)
	return s
}

func (r *Rotator) rotate(ctx context.Context, spec stream.Spec, policy retention.Policy, s *report.Stream) {
	if err := spec.Rotatable(); err != nil {
		switch {
		case errors.Is(err, stream.ErrCustomFormat):
			skip(s, report.SkipCustomFormat, nil)
		default:
			skip(s, report.SkipDisabled, nil)
		}
		return
	}
	if !policy.Enabled() {
		skip(s, report.SkipNoPolicy, nil)
		return
	}
	if err := policy.Validate(); err != nil {
		skip(s, report.SkipInvalid, err)
		return
	}
	if err := ctx.Err(); err != nil {
		skip(s, report.SkipCanceled, err)
		return
	}

	info, err := os.Stat(spec.Directory)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		skip(s, report.SkipMissingDir, nil)
		return
	case err != nil:
		skip(s, report.SkipListFailed, err)
		return
	case !info.IsDir():
		skip(s, report.SkipListFailed, &fs.PathError{Op: "list", Path: spec.Directory, Err: errors.New("not a directory")})
		return
	}

	if !r.DryRun() && r.locker != nil {
		lock, err := r.locker.Acquire(spec.Directory)
		if err != nil {
			skip(s, report.SkipLocked, err)
			return
		}
		defer func() {
			if err := lock.Release(); err != nil {
				r.logger.Warn("failed to release directory lock", "stream", spec.ID, "error", err)
			}
		}()
	}

	listing, err := r.classifier.Scan(ctx, spec)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		skip(s, report.SkipMissingDir, nil)
		return
	case ctx.Err() != nil:
		skip(s, report.SkipCanceled, ctx.Err())
		return
	case err != nil:
		skip(s, report.SkipListFailed, err)
		return
	}

	plan := retention.Evaluate(retention.State{
		Plain:    listing.Plain,
		Archived: listing.Archived,
		Policy:   policy,
		Now:      retention.Now(spec, r.now(), r.location),
	})
	if plan.Protected != nil {
		s.Protected = plan.Protected.Path
	}
	s.PlannedDeletes = len(plan.Delete)
	s.PlannedCompress = len(plan.Compress)

	for _, f := range plan.Delete {
		if err := ctx.Err(); err != nil {
			skip(s, report.SkipCanceled, err)
			return
		}
		r.record(s, report.FileOutcome{Path: f.Path, Action: report.ActionDelete, Reason: report.ReasonObsolete},
			r.exec.Delete(ctx, f, report.ReasonObsolete))
	}

	for _, f := range plan.Compress {
		if err := ctx.Err(); err != nil {
			skip(s, report.SkipCanceled, err)
			return
		}
		err := r.exec.Compress(ctx, f)
		r.record(s, report.FileOutcome{Path: f.Path, Action: report.ActionCompress}, err)
		if err != nil {
			continue
		}
		r.record(s, report.FileOutcome{Path: f.Path, Action: report.ActionDelete, Reason: report.ReasonPreviouslyCompressed},
			r.exec.Delete(ctx, f, report.ReasonPreviouslyCompressed))
	}
}

// record attaches err to o, stores it on the stream and emits it.
func (r *Rotator) record(s *report.Stream, o report.FileOutcome, err error) {
	o.Err = err
	o.Simulated = r.DryRun()
	s.Record(o)
	r.sink.FileDone(s.ID, s.Outcomes[len(s.Outcomes)-1])
}

func skip(s *report.Stream, reason report.SkipReason, err error) {
	s.Skip = reason
	if err != nil {
		s.SkipError = err.Error()
	}
}
