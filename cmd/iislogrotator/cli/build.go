package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/geeooff/iis-log-rotator/internal/archive"
	"github.com/geeooff/iis-log-rotator/internal/classify"
	"github.com/geeooff/iis-log-rotator/internal/config"
	"github.com/geeooff/iis-log-rotator/internal/dirlock"
	"github.com/geeooff/iis-log-rotator/internal/discovery"
	"github.com/geeooff/iis-log-rotator/internal/home"
	"github.com/geeooff/iis-log-rotator/internal/report"
	"github.com/geeooff/iis-log-rotator/internal/rotator"
	"github.com/geeooff/iis-log-rotator/internal/stream"

	"golang.org/x/time/rate"
)

// jobOptions are the command line knobs of a rotation job.
type jobOptions struct {
	dryRun  bool
	streams []string // restrict to these stream ids; empty means all
	sink    report.Sink
}

// classifierFor builds the classifier described by the settings.
func classifierFor(cfg *config.Config) (*classify.Classifier, error) {
	loc, err := cfg.Settings.Location()
	if err != nil {
		return nil, fmt.Errorf("time zone %q: %w", cfg.Settings.TimeZone, err)
	}
	c := &classify.Classifier{Location: loc}
	if cfg.Settings.CenturyPivot != 0 {
		c.Century = classify.Pivot{Max: cfg.Settings.CenturyPivot}
	}
	return c, nil
}

// expand resolves the configured streams. Entries that cannot be expanded
// are logged and left out.
func (a *app) expand(ctx context.Context, cfg *config.Config, only []string) ([]stream.Spec, error) {
	specs, errs := discovery.Expand(ctx, cfg)
	for _, err := range errs {
		a.logger.Warn("stream entry skipped", "error", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(only) == 0 {
		return specs, nil
	}

	var picked []stream.Spec
	for _, spec := range specs {
		if slices.Contains(only, spec.ID) {
			picked = append(picked, spec)
		}
	}
	for _, id := range only {
		if !slices.ContainsFunc(picked, func(s stream.Spec) bool { return s.ID == id }) {
			return nil, fmt.Errorf("unknown stream %q", id)
		}
	}
	return picked, nil
}

// buildJob wires a rotator for cfg.
func (a *app) buildJob(ctx context.Context, cfg *config.Config, hd home.Dir, opts jobOptions) (rotator.Job, error) {
	classifier, err := classifierFor(cfg)
	if err != nil {
		return rotator.Job{}, err
	}
	specs, err := a.expand(ctx, cfg, opts.streams)
	if err != nil {
		return rotator.Job{}, err
	}
	if len(specs) == 0 {
		return rotator.Job{}, errors.New("no stream to rotate")
	}

	var limiter *rate.Limiter
	if cfg.Settings.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Settings.RateLimit), 1)
	}
	exec := archive.NewExecutor(archive.Config{
		DryRun:  opts.dryRun,
		Limiter: limiter,
		Logger:  a.logger,
	})

	sink := report.Sink(report.NewLogSink(a.logger))
	if opts.sink != nil {
		sink = report.Multi{sink, opts.sink}
	}

	r := rotator.New(rotator.Config{
		Executor:    exec,
		Classifier:  classifier,
		Policies:    cfg,
		Sink:        sink,
		Locker:      dirlock.Locker{Dir: hd.LocksDir()},
		Location:    classifier.Location,
		Parallelism: cfg.Settings.Parallelism,
		Logger:      a.logger,
	})
	return rotator.Job{Rotator: r, Specs: specs}, nil
}
