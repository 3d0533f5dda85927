// Package cli implements the iislogrotator command tree.
//
// Every command reads its configuration from the store selected by the
// persistent --home and --config-type flags. Log lines go to the logger
// handed to NewRootCommand (stderr in main); command output goes to the
// command's stdout.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/geeooff/iis-log-rotator/internal/config"
	configfile "github.com/geeooff/iis-log-rotator/internal/config/file"
	configmem "github.com/geeooff/iis-log-rotator/internal/config/memory"
	configsqlite "github.com/geeooff/iis-log-rotator/internal/config/sqlite"
	"github.com/geeooff/iis-log-rotator/internal/home"
	"github.com/geeooff/iis-log-rotator/internal/logging"

	"github.com/spf13/cobra"
)

// Version is reported by the version command.
var Version = "dev"

// Config store types accepted by --config-type.
const (
	StoreJSON   = "json"
	StoreYAML   = "yaml"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// app carries what every command needs.
type app struct {
	logger *slog.Logger
	filter *logging.ComponentFilterHandler
}

// NewRootCommand returns the root command with every subcommand wired in.
// filter may be nil; --log-level and --debug-component then have no effect.
func NewRootCommand(logger *slog.Logger, filter *logging.ComponentFilterHandler) *cobra.Command {
	a := &app{logger: logging.Default(logger), filter: filter}

	root := &cobra.Command{
		Use:           "iislogrotator",
		Short:         "Compress and delete old IIS log files",
		Long:          "Apply retention policies to IIS, FTP, SMTP and HTTP.sys log directories: compress log files older than a number of days into zip archives and delete the oldest files and archives.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.configureLogging(cmd)
		},
	}

	root.PersistentFlags().String("home", "", "home directory (default: platform config dir)")
	root.PersistentFlags().String("config-type", StoreJSON, "config store type: json, yaml, sqlite, or memory")
	root.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().StringSlice("debug-component", nil, "enable debug logging for a component (repeatable)")
	root.PersistentFlags().StringP("output", "o", "table", "output format: table or json")

	root.AddCommand(
		a.newRunCmd(),
		a.newServeCmd(),
		a.newStreamsCmd(),
		a.newClassifyCmd(),
		a.newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}

func (a *app) configureLogging(cmd *cobra.Command) error {
	if a.filter == nil {
		return nil
	}
	levelName, _ := cmd.Flags().GetString("log-level")
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return err
	}
	a.filter.SetDefaultLevel(level)
	components, _ := cmd.Flags().GetStringSlice("debug-component")
	for _, c := range components {
		a.filter.SetLevel(strings.TrimSpace(c), slog.LevelDebug)
	}
	return nil
}

// resolveHome returns a Dir from the flag value, or the platform default.
func resolveHome(cmd *cobra.Command) (home.Dir, error) {
	if v, _ := cmd.Flags().GetString("home"); v != "" {
		return home.New(v), nil
	}
	return home.Default()
}

// store is an opened config store and the home directory it lives in.
type store struct {
	config.Store
	home home.Dir
	kind string
}

// Close releases the store.
func (s *store) Close() error {
	if c, ok := s.Store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Path is the file backing the store, "" for memory.
func (s *store) Path() string { return s.home.ConfigPath(s.kind) }

// openStore opens the config store selected by the persistent flags.
func openStore(cmd *cobra.Command) (*store, error) {
	hd, err := resolveHome(cmd)
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	kind, _ := cmd.Flags().GetString("config-type")

	if kind != StoreMemory {
		if err := hd.EnsureExists(); err != nil {
			return nil, err
		}
	}

	var cs config.Store
	switch kind {
	case StoreMemory:
		cs = configmem.NewStore()
	case StoreJSON, StoreYAML:
		cs = configfile.NewStore(hd.ConfigPath(kind))
	case StoreSQLite:
		cs, err = configsqlite.NewStore(hd.ConfigPath(kind))
		if err != nil {
			return nil, fmt.Errorf("open config store: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config store type: %q", kind)
	}
	return &store{Store: cs, home: hd, kind: kind}, nil
}

// loadConfig reads and validates the configuration. An empty store yields
// the default configuration, which is not persisted.
func (a *app) loadConfig(ctx context.Context, s *store) (*config.Config, error) {
	cfg, err := s.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg == nil {
		a.logger.Info("no config found, using defaults (run \"config init\" to persist them)", "type", s.kind)
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// outputFormat returns "json" or "table" from the --output flag.
func outputFormat(cmd *cobra.Command) string {
	f, _ := cmd.Flags().GetString("output")
	return f
}
