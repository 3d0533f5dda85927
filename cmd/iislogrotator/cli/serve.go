package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/geeooff/iis-log-rotator/internal/config"
	configfile "github.com/geeooff/iis-log-rotator/internal/config/file"
	"github.com/geeooff/iis-log-rotator/internal/metrics"
	"github.com/geeooff/iis-log-rotator/internal/rotator"
)

func (a *app) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Rotate on a schedule until interrupted",
		Long:  "Run rotations on a cron schedule, reload the configuration when its file changes and expose Prometheus metrics. POST /run triggers a rotation immediately.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()
			return a.serve(ctx, cmd)
		},
	}
	cmd.Flags().String("schedule", "", "cron expression, five fields (default: settings schedule, else \""+config.DefaultSchedule+"\")")
	cmd.Flags().String("metrics-addr", "localhost:9464", "listen address of /metrics and /run; empty disables")
	cmd.Flags().BoolP("simulate", "s", false, "report what would be done without touching any file")
	cmd.Flags().Bool("run-now", false, "rotate once at startup")
	cmd.Flags().Bool("watch", true, "reload the configuration when its file changes")
	return cmd
}

func (a *app) serve(ctx context.Context, cmd *cobra.Command) error {
	scheduleFlag, _ := cmd.Flags().GetString("schedule")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	simulate, _ := cmd.Flags().GetBool("simulate")
	runNow, _ := cmd.Flags().GetBool("run-now")
	watch, _ := cmd.Flags().GetBool("watch")

	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	cfg, err := a.loadConfig(ctx, s)
	if err != nil {
		return err
	}
	loc, err := cfg.Settings.Location()
	if err != nil {
		return err
	}

	collector := metrics.New()
	sched, err := rotator.NewScheduler(loc, a.logger)
	if err != nil {
		return err
	}
	svc := rotator.NewService(sched, a.logger)

	apply := func(cfg *config.Config) error {
		job, err := a.buildJob(ctx, cfg, s.home, jobOptions{dryRun: simulate, sink: collector})
		if err != nil {
			return err
		}
		schedule := scheduleFlag
		if schedule == "" {
			schedule = cfg.Settings.Schedule
		}
		if schedule == "" {
			schedule = config.DefaultSchedule
		}
		if err := svc.Schedule(schedule); err != nil {
			return err
		}
		svc.SetJob(job)
		return nil
	}
	if err := apply(cfg); err != nil {
		return err
	}

	svc.Start(ctx)
	a.logger.Info("serving", "simulate", simulate, "home", s.home.Root(), "config", s.kind)

	var wg sync.WaitGroup
	if watch && (s.kind == StoreJSON || s.kind == StoreYAML) {
		wg.Go(func() {
			err := configfile.Watch(ctx, s.Path(), configfile.DefaultDebounce, a.logger, func() {
				cfg, err := a.loadConfig(ctx, s)
				if err == nil {
					err = apply(cfg)
				}
				if err != nil {
					a.logger.Error("config reload failed, keeping previous configuration", "error", err)
					return
				}
				a.logger.Info("config reloaded", "path", s.Path())
			})
			if err != nil && ctx.Err() == nil {
				a.logger.Error("config watch stopped", "error", err)
			}
		})
	}

	var srv *http.Server
	if metricsAddr != "" {
		srv = &http.Server{
			Addr:              metricsAddr,
			Handler:           a.serveMux(ctx, svc, collector),
			ReadHeaderTimeout: 10 * time.Second,
		}
		wg.Go(func() {
			a.logger.Info("metrics server listening", "addr", metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server error", "error", err)
			}
		})
	}

	if runNow {
		wg.Go(func() {
			if _, _, err := svc.Trigger(ctx); err != nil && ctx.Err() == nil {
				a.logger.Error("startup run failed", "error", err)
			}
		})
	}

	<-ctx.Done()

	if srv != nil {
		a.logger.Info("stopping metrics server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("metrics server stop error", "error", err)
		}
		cancel()
	}
	a.logger.Info("stopping scheduler")
	if err := svc.Stop(); err != nil {
		a.logger.Error("scheduler stop error", "error", err)
	}
	wg.Wait()
	a.logger.Info("shutdown complete")
	return nil
}

// serveMux routes /metrics, /run and /healthz.
func (a *app) serveMux(ctx context.Context, svc *rotator.Service, collector *metrics.Collector) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", collector.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /run", func(w http.ResponseWriter, r *http.Request) {
		run, shared, err := svc.Trigger(ctx)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if shared {
			w.Header().Set("X-Run-Shared", "true")
		}
		p := &printer{format: "json", w: w}
		if err := p.json(run); err != nil {
			a.logger.Warn("write run response", "error", err)
		}
	})
	return mux
}
