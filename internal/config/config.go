// Package config provides configuration persistence for the rotator.
//
// Store persists the desired rotation setup across runs: global settings,
// retention policies and the logging streams to rotate. Streams stand in for
// host logging configuration discovery: each entry describes one IIS logging
// stream (or, with a site glob, one per matching site directory).
//
// Store does not:
//   - Touch log files
//   - Resolve site globs (see discovery)
//   - Validate semantics (see Config.Validate)
package config

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/geeooff/iis-log-rotator/internal/retention"
	"github.com/geeooff/iis-log-rotator/internal/stream"

	"github.com/go-co-op/gocron/v2"
)

// Reserved policy ids. Any other policy id is a stream id.
const (
	PolicyDefault   = "default"
	PolicyHTTPError = "http-errors"
)

// Default locations of IIS log files on a stock Windows Server.
const (
	DefaultRoot        = `C:\inetpub\logs\LogFiles`
	DefaultHTTPErrRoot = `C:\Windows\System32\LogFiles\HTTPERR`
	DefaultSchedule    = "0 2 * * *"
)

// ErrInvalidConfig wraps every Validate failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Store persists and loads configuration with granular CRUD operations.
//
// Get methods return nil, nil when the entity does not exist. Deleting a
// missing entity is not an error.
type Store interface {
	// Load reads the full configuration. Returns nil if nothing exists (bootstrap signal).
	Load(ctx context.Context) (*Config, error)

	// Settings
	GetSettings(ctx context.Context) (*Settings, error)
	PutSettings(ctx context.Context, s Settings) error

	// Retention policies, keyed by stream id or a reserved id.
	GetPolicy(ctx context.Context, id string) (*retention.Policy, error)
	ListPolicies(ctx context.Context) (map[string]retention.Policy, error)
	PutPolicy(ctx context.Context, id string, p retention.Policy) error
	DeletePolicy(ctx context.Context, id string) error

	// Streams, keyed by name and listed in name order.
	GetStream(ctx context.Context, name string) (*StreamConfig, error)
	ListStreams(ctx context.Context) ([]StreamConfig, error)
	PutStream(ctx context.Context, cfg StreamConfig) error
	DeleteStream(ctx context.Context, name string) error
}

// Config describes the desired rotation setup.
type Config struct {
	Settings        Settings                    `json:"settings" yaml:"settings"`
	DefaultPolicy   *retention.Policy           `json:"defaultPolicy,omitempty" yaml:"defaultPolicy,omitempty"`
	HTTPErrorPolicy *retention.Policy           `json:"httpErrorPolicy,omitempty" yaml:"httpErrorPolicy,omitempty"`
	Policies        map[string]retention.Policy `json:"policies,omitempty" yaml:"policies,omitempty"`
	Streams         []StreamConfig              `json:"streams,omitempty" yaml:"streams,omitempty"`
}

// Settings are the global rotation settings.
type Settings struct {
	// Root is the IIS log files root. Streams may override it.
	Root string `json:"root,omitempty" yaml:"root,omitempty"`
	// HTTPErrRoot is the HTTP.sys error log directory.
	HTTPErrRoot string `json:"httpErrRoot,omitempty" yaml:"httpErrRoot,omitempty"`
	// Parallelism bounds how many log directories are rotated at once.
	// Zero means one.
	Parallelism int `json:"parallelism,omitempty" yaml:"parallelism,omitempty"`
	// RateLimit caps file mutations per second. Zero means unlimited.
	RateLimit float64 `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty"`
	// Schedule is the cron expression of serve mode.
	Schedule string `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	// CenturyPivot is the latest year a two-digit year expands to. Zero
	// means 2049.
	CenturyPivot int `json:"centuryPivot,omitempty" yaml:"centuryPivot,omitempty"`
	// TimeZone is the IANA zone of local-time rollover streams. Empty means
	// the process local zone.
	TimeZone string `json:"timeZone,omitempty" yaml:"timeZone,omitempty"`
}

// Location resolves TimeZone.
func (s Settings) Location() (*time.Location, error) {
	if s.TimeZone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(s.TimeZone)
}

// ValidateSchedule checks the Schedule cron expression (5-field syntax).
func (s Settings) ValidateSchedule() error {
	if s.Schedule == "" {
		return nil
	}
	cr := gocron.NewDefaultCron(false)
	if err := cr.IsValid(s.Schedule, time.UTC, time.Now()); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// StreamConfig describes a logging stream as the host configures it.
type StreamConfig struct {
	// Name identifies the entry in the store.
	Name string `json:"name" yaml:"name"`
	// ID overrides the derived stream id (W3SVC1, central, ...).
	ID      string `json:"id,omitempty" yaml:"id,omitempty"`
	Service string `json:"service,omitempty" yaml:"service,omitempty"`
	// Site is a numeric site id or a glob over site ids ("*", "1?", "{1,2}").
	Site    string `json:"site,omitempty" yaml:"site,omitempty"`
	Central string `json:"central,omitempty" yaml:"central,omitempty"`
	Format  string `json:"format,omitempty" yaml:"format,omitempty"`
	Period  string `json:"period,omitempty" yaml:"period,omitempty"`
	// Root overrides Settings.Root.
	Root string `json:"root,omitempty" yaml:"root,omitempty"`
	// Directory overrides the derived log directory. Site must then be a
	// plain id.
	Directory         string `json:"directory,omitempty" yaml:"directory,omitempty"`
	UTF8              bool   `json:"utf8,omitempty" yaml:"utf8,omitempty"`
	CustomFields      bool   `json:"customFields,omitempty" yaml:"customFields,omitempty"`
	Disabled          bool   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	LocalTimeRollover bool   `json:"localTimeRollover,omitempty" yaml:"localTimeRollover,omitempty"`
	TruncateSize      int64  `json:"truncateSize,omitempty" yaml:"truncateSize,omitempty"`
}

// HTTPErrors reports whether the entry describes the HTTP.sys error log.
func (c StreamConfig) HTTPErrors() bool {
	svc, err := stream.ParseService(c.Service)
	return err == nil && svc == stream.ServiceHTTPERR
}

// PerSite reports whether the entry needs a site id.
func (c StreamConfig) PerSite() bool {
	central, err := stream.ParseCentral(c.Central)
	return err == nil && central == stream.CentralNone && !c.HTTPErrors()
}

// Options converts the entry into stream options for one site. root is the
// effective log files root of the entry.
func (c StreamConfig) Options(root string, siteID int64) (stream.Options, error) {
	svc, err := stream.ParseService(c.Service)
	if err != nil {
		return stream.Options{}, err
	}
	central, err := stream.ParseCentral(c.Central)
	if err != nil {
		return stream.Options{}, err
	}
	format, err := stream.ParseFormat(c.Format)
	if err != nil {
		return stream.Options{}, err
	}
	period := stream.PeriodDaily
	if c.Period != "" {
		if period, err = stream.ParsePeriod(c.Period); err != nil {
			return stream.Options{}, err
		}
	}
	return stream.Options{
		ID:                c.ID,
		Service:           svc,
		Root:              root,
		Directory:         c.Directory,
		SiteID:            siteID,
		Central:           central,
		Format:            format,
		Period:            period,
		UTF8:              c.UTF8,
		CustomFields:      c.CustomFields,
		Enabled:           !c.Disabled,
		LocalTimeRollover: c.LocalTimeRollover,
		TruncateSize:      c.TruncateSize,
	}, nil
}

// SiteID parses Site as a plain site id. ok is false for globs.
func (c StreamConfig) SiteID() (id int64, ok bool) {
	id, err := strconv.ParseInt(c.Site, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// EffectiveRoot returns the log files root of an entry.
func (s Settings) EffectiveRoot(c StreamConfig) string {
	switch {
	case c.Root != "":
		return c.Root
	case c.HTTPErrors():
		return s.HTTPErrRoot
	}
	return s.Root
}

// PolicyFor resolves the policy of a stream: its specific policy, else the
// HTTP error policy for HTTP.sys error streams, else the default policy.
func (c *Config) PolicyFor(spec stream.Spec) retention.Policy {
	if p, ok := c.Policies[spec.ID]; ok {
		return p
	}
	if spec.Service == stream.ServiceHTTPERR && c.HTTPErrorPolicy != nil {
		return *c.HTTPErrorPolicy
	}
	return c.Default()
}

// Default returns the default policy; an unset one does nothing.
func (c *Config) Default() retention.Policy {
	if c.DefaultPolicy == nil {
		return retention.DefaultPolicy()
	}
	return *c.DefaultPolicy
}

// Validate checks settings, policies and stream entries.
func (c *Config) Validate() error {
	var errs []error
	if c.Settings.Parallelism < 0 {
		errs = append(errs, fmt.Errorf("parallelism must not be negative, got %d", c.Settings.Parallelism))
	}
	if c.Settings.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rateLimit must not be negative, got %g", c.Settings.RateLimit))
	}
	if err := c.Settings.ValidateSchedule(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Settings.Location(); err != nil {
		errs = append(errs, fmt.Errorf("timeZone: %w", err))
	}

	if c.DefaultPolicy != nil {
		if err := c.DefaultPolicy.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("default policy: %w", err))
		}
	}
	if c.HTTPErrorPolicy != nil {
		if err := c.HTTPErrorPolicy.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("http error policy: %w", err))
		}
	}
	for _, id := range slices.Sorted(maps.Keys(c.Policies)) {
		if id == PolicyDefault || id == PolicyHTTPError {
			errs = append(errs, fmt.Errorf("policy id %q is reserved", id))
			continue
		}
		if err := c.Policies[id].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("policy %s: %w", id, err))
		}
	}

	seen := make(map[string]bool, len(c.Streams))
	for _, sc := range c.Streams {
		if sc.Name == "" {
			errs = append(errs, errors.New("stream entry without a name"))
			continue
		}
		if seen[sc.Name] {
			errs = append(errs, fmt.Errorf("duplicate stream entry %q", sc.Name))
		}
		seen[sc.Name] = true
		if err := c.validateStream(sc); err != nil {
			errs = append(errs, fmt.Errorf("stream %s: %w", sc.Name, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) validateStream(sc StreamConfig) error {
	if _, err := sc.Options("", 0); err != nil {
		return err
	}
	if sc.PerSite() {
		if sc.Site == "" {
			return errors.New("per-site stream needs a site id or glob")
		}
		if _, ok := sc.SiteID(); !ok && sc.Directory != "" {
			return errors.New("directory override needs a plain site id")
		}
	}
	if c.Settings.EffectiveRoot(sc) == "" && sc.Directory == "" {
		return errors.New("no log root or directory")
	}
	return nil
}

// PolicyMap returns every policy keyed the way a Store keeps them,
// including the reserved default and HTTP error ids.
func (c *Config) PolicyMap() map[string]retention.Policy {
	m := make(map[string]retention.Policy, len(c.Policies)+2)
	maps.Copy(m, c.Policies)
	if c.DefaultPolicy != nil {
		m[PolicyDefault] = *c.DefaultPolicy
	}
	if c.HTTPErrorPolicy != nil {
		m[PolicyHTTPError] = *c.HTTPErrorPolicy
	}
	return m
}

// Assemble builds a Config from store parts. The reserved policy ids are
// split out of policies.
func Assemble(settings *Settings, policies map[string]retention.Policy, streams []StreamConfig) *Config {
	cfg := &Config{Streams: streams}
	if settings != nil {
		cfg.Settings = *settings
	}
	for id, p := range policies {
		switch id {
		case PolicyDefault:
			cfg.DefaultPolicy = &p
		case PolicyHTTPError:
			cfg.HTTPErrorPolicy = &p
		default:
			if cfg.Policies == nil {
				cfg.Policies = make(map[string]retention.Policy)
			}
			cfg.Policies[id] = p
		}
	}
	return cfg
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	return &Config{
		Settings:        c.Settings,
		DefaultPolicy:   clonePolicy(c.DefaultPolicy),
		HTTPErrorPolicy: clonePolicy(c.HTTPErrorPolicy),
		Policies:        maps.Clone(c.Policies),
		Streams:         slices.Clone(c.Streams),
	}
}

func clonePolicy(p *retention.Policy) *retention.Policy {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
