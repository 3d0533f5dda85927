package config

import (
	"context"

	"github.com/geeooff/iis-log-rotator/internal/retention"
)

// DefaultConfig returns the bootstrap configuration for a first run: every
// W3C per-site stream under the stock IIS log root, with a policy that
// compresses after a week and deletes after three months.
func DefaultConfig() *Config {
	return &Config{
		Settings: Settings{
			Root:        DefaultRoot,
			HTTPErrRoot: DefaultHTTPErrRoot,
			Parallelism: 1,
			Schedule:    DefaultSchedule,
		},
		DefaultPolicy: &retention.Policy{
			Compress:          true,
			CompressAfterDays: 7,
			Delete:            true,
			DeleteAfterDays:   90,
		},
		Streams: []StreamConfig{
			{Name: "sites", Service: "W3SVC", Site: "*", Format: "w3c", Period: "daily"},
		},
	}
}

// Bootstrap writes the default configuration to a store using individual
// CRUD operations. Call this when Load returns nil (no config exists).
func Bootstrap(ctx context.Context, store Store) error {
	return Save(ctx, store, DefaultConfig())
}

// Save writes every part of cfg to store. Entities missing from cfg are
// left in place.
func Save(ctx context.Context, store Store, cfg *Config) error {
	if err := store.PutSettings(ctx, cfg.Settings); err != nil {
		return err
	}
	for id, p := range cfg.PolicyMap() {
		if err := store.PutPolicy(ctx, id, p); err != nil {
			return err
		}
	}
	for _, sc := range cfg.Streams {
		if err := store.PutStream(ctx, sc); err != nil {
			return err
		}
	}
	return nil
}
