package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/geeooff/iis-log-rotator/internal/metrics"
	"github.com/geeooff/iis-log-rotator/internal/report"
)

func (a *app) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Rotate every configured stream once",
		Long:  "Compress and delete log files as the retention policies say, then print a summary. With --simulate nothing on disk changes but every action is still reported.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			simulate, _ := cmd.Flags().GetBool("simulate")
			only, _ := cmd.Flags().GetStringSlice("stream")
			metricsFile, _ := cmd.Flags().GetString("metrics-file")

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()
			return a.runOnce(ctx, cmd, simulate, only, metricsFile)
		},
	}
	cmd.Flags().BoolP("simulate", "s", false, "report what would be done without touching any file")
	cmd.Flags().StringSlice("stream", nil, "only rotate this stream id (repeatable)")
	cmd.Flags().String("metrics-file", "", "write Prometheus metrics of the run to this textfile")
	return cmd
}

func (a *app) runOnce(ctx context.Context, cmd *cobra.Command, simulate bool, only []string, metricsFile string) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	cfg, err := a.loadConfig(ctx, s)
	if err != nil {
		return err
	}

	var collector *metrics.Collector
	var sink report.Sink
	if metricsFile != "" {
		collector = metrics.New()
		sink = collector
	}

	job, err := a.buildJob(ctx, cfg, s.home, jobOptions{dryRun: simulate, streams: only, sink: sink})
	if err != nil {
		return err
	}
	run := job.Rotator.Run(ctx, job.Specs)

	if collector != nil {
		if err := collector.WriteTextfile(metricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return newPrinter(cmd).run(run)
}
