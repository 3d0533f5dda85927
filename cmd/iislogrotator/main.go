// Command iislogrotator compresses and deletes old IIS log files.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
//   - Components scope loggers with their own attributes
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/geeooff/iis-log-rotator/cmd/iislogrotator/cli"
	"github.com/geeooff/iis-log-rotator/internal/logging"
)

var version = "dev"

func main() {
	// Allow all levels; filtering is done by ComponentFilterHandler.
	baseHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	filterHandler := logging.NewComponentFilterHandler(baseHandler, slog.LevelInfo)
	logger := slog.New(filterHandler)

	cli.Version = version
	rootCmd := cli.NewRootCommand(logger, filterHandler)
	rootCmd.SetArgs(cli.NormalizeArgs(os.Args[1:]))

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
