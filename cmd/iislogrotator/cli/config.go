package cli

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/geeooff/iis-log-rotator/internal/config"
	"github.com/geeooff/iis-log-rotator/internal/retention"
)

func (a *app) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the rotation configuration",
		Long:  "Create and edit the settings, retention policies and streams kept in the config store.",
	}
	cmd.AddCommand(
		a.newConfigInitCmd(),
		a.newConfigShowCmd(),
		a.newPolicyCmd(),
		a.newStreamCmd(),
		a.newSettingsCmd(),
	)
	return cmd
}

// withStore opens the store for the duration of fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, s *store) error) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return fn(cmd.Context(), s)
}

// current loads the stored configuration, or the defaults when the store is
// empty. It does not validate.
func current(ctx context.Context, s *store) (*config.Config, error) {
	cfg, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return cfg, nil
}

// ensureSettings writes the default settings into a store that has none, so
// that entries added to an empty store get a log root.
func ensureSettings(ctx context.Context, s *store) error {
	st, err := s.GetSettings(ctx)
	if err != nil || st != nil {
		return err
	}
	return s.PutSettings(ctx, config.DefaultConfig().Settings)
}

func (a *app) newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			return withStore(cmd, func(ctx context.Context, s *store) error {
				existing, err := s.Load(ctx)
				if err != nil {
					return err
				}
				if existing != nil && !force {
					return errors.New("configuration already exists (use --force to reset settings, default policy and default streams)")
				}
				if err := config.Bootstrap(ctx, s); err != nil {
					return fmt.Errorf("bootstrap config: %w", err)
				}
				where := s.Path()
				if where == "" {
					where = s.kind
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Initialized configuration in %s\n", where)
				return err
			})
		},
	}
	cmd.Flags().Bool("force", false, "overwrite an existing configuration")
	return cmd
}

func (a *app) newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s *store) error {
				cfg, err := current(ctx, s)
				if err != nil {
					return err
				}
				p := newPrinter(cmd)
				if p.isJSON() {
					return p.json(cfg)
				}
				p.kv(settingsPairs(cfg.Settings))
				_, _ = fmt.Fprintln(p.w)
				p.table(policyHeader, policyRows(cfg.PolicyMap()))
				_, _ = fmt.Fprintln(p.w)
				p.table(streamHeader, streamRows(cfg.Streams))
				if err := cfg.Validate(); err != nil {
					_, _ = fmt.Fprintf(p.w, "\n%v\n", err)
				}
				return nil
			})
		},
	}
}

// ---------- policies ----------

var policyHeader = []string{"ID", "COMPRESS", "AFTER (days)", "DELETE", "AFTER (days)"}

func policyRows(policies map[string]retention.Policy) [][]string {
	var rows [][]string
	for _, id := range slices.Sorted(maps.Keys(policies)) {
		rows = append(rows, append([]string{id}, formatPolicy(policies[id])...))
	}
	return rows
}

func (a *app) newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "policy",
		Aliases: []string{"policies"},
		Short:   "Manage retention policies",
		Long:    "Policies are keyed by stream id. The ids \"" + config.PolicyDefault + "\" and \"" + config.PolicyHTTPError + "\" hold the default policy and the policy of HTTP.sys error logs.",
	}
	cmd.AddCommand(a.newPolicyListCmd(), a.newPolicySetCmd(), a.newPolicyDeleteCmd())
	return cmd
}

func (a *app) newPolicyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List retention policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s *store) error {
				policies, err := s.ListPolicies(ctx)
				if err != nil {
					return err
				}
				p := newPrinter(cmd)
				if p.isJSON() {
					return p.json(policies)
				}
				p.table(policyHeader, policyRows(policies))
				return nil
			})
		},
	}
}

func (a *app) newPolicySetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <id>",
		Short: "Create or update a retention policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withStore(cmd, func(ctx context.Context, s *store) error {
				existing, err := s.GetPolicy(ctx, id)
				if err != nil {
					return err
				}
				p := retention.DefaultPolicy()
				if existing != nil {
					p = *existing
				}
				flags := cmd.Flags()
				if flags.Changed("compress") {
					p.Compress, _ = flags.GetBool("compress")
				}
				if flags.Changed("compress-after") {
					p.CompressAfterDays, _ = flags.GetInt("compress-after")
				}
				if flags.Changed("delete") {
					p.Delete, _ = flags.GetBool("delete")
				}
				if flags.Changed("delete-after") {
					p.DeleteAfterDays, _ = flags.GetInt("delete-after")
				}
				if err := p.Validate(); err != nil {
					return err
				}
				if err := ensureSettings(ctx, s); err != nil {
					return err
				}
				if err := s.PutPolicy(ctx, id, p); err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Set policy %s: %s\n", id, p)
				return err
			})
		},
	}
	cmd.Flags().Bool("compress", false, "compress old log files")
	cmd.Flags().Int("compress-after", 1, "compress files older than this many days")
	cmd.Flags().Bool("delete", false, "delete old log files and archives")
	cmd.Flags().Int("delete-after", 1, "delete files older than this many days")
	return cmd
}

func (a *app) newPolicyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a retention policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s *store) error {
				if err := s.DeletePolicy(ctx, args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted policy %s\n", args[0])
				return err
			})
		},
	}
}

// ---------- streams ----------

var streamHeader = []string{"NAME", "SERVICE", "SITE", "CENTRAL", "FORMAT", "PERIOD", "DIRECTORY", "ENABLED"}

func streamRows(streams []config.StreamConfig) [][]string {
	var rows [][]string
	for _, sc := range streams {
		dir := sc.Directory
		if dir == "" {
			dir = sc.Root
		}
		rows = append(rows, []string{
			sc.Name, sc.Service, sc.Site, sc.Central, sc.Format, sc.Period, dir,
			yesNo(!sc.Disabled),
		})
	}
	return rows
}

func (a *app) newStreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "stream",
		Aliases: []string{"streams"},
		Short:   "Manage configured logging streams",
	}
	cmd.AddCommand(a.newStreamListCmd(), a.newStreamAddCmd(), a.newStreamDeleteCmd())
	return cmd
}

func (a *app) newStreamListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured stream entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s *store) error {
				streams, err := s.ListStreams(ctx)
				if err != nil {
					return err
				}
				p := newPrinter(cmd)
				if p.isJSON() {
					return p.json(streams)
				}
				p.table(streamHeader, streamRows(streams))
				return nil
			})
		},
	}
}

func (a *app) newStreamAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add or replace a stream entry",
		Long:  "Describe a logging stream as the host configures it. --site takes a site id or a glob over site ids (\"*\", \"1?\", \"{1,2}\").",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			sc := config.StreamConfig{Name: args[0]}
			sc.ID, _ = flags.GetString("id")
			sc.Service, _ = flags.GetString("service")
			sc.Site, _ = flags.GetString("site")
			sc.Central, _ = flags.GetString("central")
			sc.Format, _ = flags.GetString("format")
			sc.Period, _ = flags.GetString("period")
			sc.Root, _ = flags.GetString("root")
			sc.Directory, _ = flags.GetString("directory")
			sc.UTF8, _ = flags.GetBool("utf8")
			sc.CustomFields, _ = flags.GetBool("custom-fields")
			sc.Disabled, _ = flags.GetBool("disabled")
			sc.LocalTimeRollover, _ = flags.GetBool("local-time-rollover")
			sc.TruncateSize, _ = flags.GetInt64("truncate-size")

			return withStore(cmd, func(ctx context.Context, s *store) error {
				cfg, err := current(ctx, s)
				if err != nil {
					return err
				}
				check := cfg.Clone()
				check.Streams = slices.DeleteFunc(check.Streams, func(c config.StreamConfig) bool { return c.Name == sc.Name })
				check.Streams = append(check.Streams, sc)
				if err := check.Validate(); err != nil {
					return err
				}
				if err := ensureSettings(ctx, s); err != nil {
					return err
				}
				if err := s.PutStream(ctx, sc); err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Saved stream %s\n", sc.Name)
				return err
			})
		},
	}
	cmd.Flags().String("id", "", "stream id override")
	cmd.Flags().String("service", "W3SVC", "service: W3SVC, FTPSVC, SMTPSVC, MSFTPSVC, NNTPSVC or HTTPERR")
	cmd.Flags().String("site", "", "site id or glob (per-site streams)")
	cmd.Flags().String("central", "", "central logging mode: binary or w3c")
	cmd.Flags().String("format", "w3c", "per-site log format: w3c, iis, ncsa or custom")
	cmd.Flags().String("period", "daily", "rollover: hourly, daily, weekly, monthly or maxsize")
	cmd.Flags().String("root", "", "log files root (overrides settings)")
	cmd.Flags().String("directory", "", "log directory (overrides derivation)")
	cmd.Flags().Bool("utf8", false, "file names carry the u_ prefix")
	cmd.Flags().Bool("custom-fields", false, "file names carry the _x suffix")
	cmd.Flags().Bool("disabled", false, "logging is disabled for this stream")
	cmd.Flags().Bool("local-time-rollover", false, "files roll over at local midnight")
	cmd.Flags().Int64("truncate-size", 0, "size threshold of maxsize streams")
	return cmd
}

func (a *app) newStreamDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stream entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s *store) error {
				if err := s.DeleteStream(ctx, args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted stream %s\n", args[0])
				return err
			})
		},
	}
}

// ---------- settings ----------

func settingsPairs(st config.Settings) [][2]string {
	return [][2]string{
		{"Root", st.Root},
		{"HTTP error root", st.HTTPErrRoot},
		{"Parallelism", strconv.Itoa(st.Parallelism)},
		{"Rate limit (/s)", strconv.FormatFloat(st.RateLimit, 'g', -1, 64)},
		{"Schedule", st.Schedule},
		{"Century pivot", strconv.Itoa(st.CenturyPivot)},
		{"Time zone", st.TimeZone},
	}
}

func (a *app) newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change global settings",
	}
	cmd.AddCommand(a.newSettingsShowCmd(), a.newSettingsSetCmd())
	return cmd
}

func (a *app) newSettingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print global settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s *store) error {
				cfg, err := current(ctx, s)
				if err != nil {
					return err
				}
				p := newPrinter(cmd)
				if p.isJSON() {
					return p.json(cfg.Settings)
				}
				p.kv(settingsPairs(cfg.Settings))
				return nil
			})
		},
	}
}

func (a *app) newSettingsSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change global settings; flags not given keep their value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s *store) error {
				cfg, err := current(ctx, s)
				if err != nil {
					return err
				}
				st := cfg.Settings
				flags := cmd.Flags()
				if flags.Changed("root") {
					st.Root, _ = flags.GetString("root")
				}
				if flags.Changed("httperr-root") {
					st.HTTPErrRoot, _ = flags.GetString("httperr-root")
				}
				if flags.Changed("parallelism") {
					st.Parallelism, _ = flags.GetInt("parallelism")
				}
				if flags.Changed("rate-limit") {
					st.RateLimit, _ = flags.GetFloat64("rate-limit")
				}
				if flags.Changed("schedule") {
					st.Schedule, _ = flags.GetString("schedule")
				}
				if flags.Changed("century-pivot") {
					st.CenturyPivot, _ = flags.GetInt("century-pivot")
				}
				if flags.Changed("time-zone") {
					st.TimeZone, _ = flags.GetString("time-zone")
				}

				check := cfg.Clone()
				check.Settings = st
				if err := check.Validate(); err != nil {
					return err
				}
				if err := s.PutSettings(ctx, st); err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "Settings saved")
				return err
			})
		},
	}
	cmd.Flags().String("root", "", "IIS log files root")
	cmd.Flags().String("httperr-root", "", "HTTP.sys error log directory")
	cmd.Flags().Int("parallelism", 1, "log directories rotated at once")
	cmd.Flags().Float64("rate-limit", 0, "file actions per second, 0 for unlimited")
	cmd.Flags().String("schedule", "", "cron expression of serve mode")
	cmd.Flags().Int("century-pivot", 0, "latest year a two-digit year expands to, 0 for 2049")
	cmd.Flags().String("time-zone", "", "IANA zone of local-time rollover streams")
	return cmd
}
