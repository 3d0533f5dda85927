// Package file provides a file-based config.Store implementation.
//
// Configuration is persisted as a versioned envelope:
//
//	{"version": 1, "config": { ... }}
//
// in JSON, or in YAML when the path ends in .yaml or .yml. All mutations
// load the full file, mutate in memory, and atomically flush the entire
// file.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/geeooff/iis-log-rotator/internal/config"
	"github.com/geeooff/iis-log-rotator/internal/retention"
)

const currentVersion = 1

// envelope is the versioned on-disk format.
type envelope struct {
	Version int            `json:"version" yaml:"version"`
	Config  *config.Config `json:"config" yaml:"config"`
}

// Store is a file-based config.Store implementation. Writes are atomic via
// temp file + rename with round-trip validation.
type Store struct {
	mu    sync.Mutex
	path  string
	codec codec
}

var _ config.Store = (*Store)(nil)

// NewStore creates a file-based store at path. The encoding follows the
// extension: YAML for .yaml and .yml, JSON otherwise.
func NewStore(path string) *Store {
	return &Store{path: path, codec: codecFor(path)}
}

// Path returns the config file path.
func (s *Store) Path() string { return s.path }

// Format returns the file encoding, "json" or "yaml".
func (s *Store) Format() string { return s.codec.name() }

// Load reads the full configuration from disk.
// Returns nil if the file does not exist.
func (s *Store) Load(ctx context.Context) (*config.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// load reads and parses the config file. Returns nil,nil if not found.
func (s *Store) load() (*config.Config, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var env envelope
	if err := s.codec.unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if env.Version == 0 {
		return nil, fmt.Errorf("unversioned config file detected; delete %s and run `config init` to bootstrap a fresh config", s.path)
	}
	if env.Version > currentVersion {
		return nil, fmt.Errorf("config file version %d is newer than supported version %d", env.Version, currentVersion)
	}
	if env.Version < currentVersion {
		if err := migrateFile(s.path, s.codec, data, env.Version); err != nil {
			return nil, fmt.Errorf("migrate config: %w", err)
		}
		data, err = os.ReadFile(s.path)
		if err != nil {
			return nil, fmt.Errorf("read migrated config: %w", err)
		}
		if err := s.codec.unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("parse migrated config: %w", err)
		}
	}

	return env.Config, nil
}

// flush atomically writes the config to disk with round-trip validation.
func (s *Store) flush(cfg *config.Config) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := s.codec.marshal(envelope{Version: currentVersion, Config: cfg})
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o640); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	// Round-trip validation: re-read and verify it parses.
	check, err := os.ReadFile(tmpPath)
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("read-back temp file: %w", err)
	}
	var verify envelope
	if err := s.codec.unmarshal(check, &verify); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("round-trip validation failed: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename config file: %w", err)
	}
	return nil
}

// update loads the config (empty when missing), applies fn and flushes.
func (s *Store) update(fn func(cfg *config.Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load()
	if err != nil {
		return err
	}
	if cfg == nil {
		cfg = config.Assemble(nil, nil, nil)
	}
	fn(cfg)
	return s.flush(cfg)
}

// Settings

func (s *Store) GetSettings(ctx context.Context) (*config.Settings, error) {
	cfg, err := s.Load(ctx)
	if err != nil || cfg == nil {
		return nil, err
	}
	return &cfg.Settings, nil
}

func (s *Store) PutSettings(ctx context.Context, settings config.Settings) error {
	return s.update(func(cfg *config.Config) { cfg.Settings = settings })
}

// Policies

func (s *Store) GetPolicy(ctx context.Context, id string) (*retention.Policy, error) {
	policies, err := s.ListPolicies(ctx)
	if err != nil {
		return nil, err
	}
	p, ok := policies[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// ListPolicies lists stored policies, including the reserved default and
// HTTP error ids once a config file exists.
func (s *Store) ListPolicies(ctx context.Context) (map[string]retention.Policy, error) {
	cfg, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return map[string]retention.Policy{}, nil
	}
	return cfg.PolicyMap(), nil
}

func (s *Store) PutPolicy(ctx context.Context, id string, p retention.Policy) error {
	return s.update(func(cfg *config.Config) {
		switch id {
		case config.PolicyDefault:
			cfg.DefaultPolicy = &p
		case config.PolicyHTTPError:
			cfg.HTTPErrorPolicy = &p
		default:
			if cfg.Policies == nil {
				cfg.Policies = make(map[string]retention.Policy)
			}
			cfg.Policies[id] = p
		}
	})
}

func (s *Store) DeletePolicy(ctx context.Context, id string) error {
	return s.update(func(cfg *config.Config) {
		switch id {
		case config.PolicyDefault:
			cfg.DefaultPolicy = nil
		case config.PolicyHTTPError:
			cfg.HTTPErrorPolicy = nil
		default:
			delete(cfg.Policies, id)
		}
	})
}

// Streams

func (s *Store) GetStream(ctx context.Context, name string) (*config.StreamConfig, error) {
	streams, err := s.ListStreams(ctx)
	if err != nil {
		return nil, err
	}
	for _, sc := range streams {
		if sc.Name == name {
			return &sc, nil
		}
	}
	return nil, nil
}

func (s *Store) ListStreams(ctx context.Context) ([]config.StreamConfig, error) {
	cfg, err := s.Load(ctx)
	if err != nil || cfg == nil {
		return nil, err
	}
	streams := slices.Clone(cfg.Streams)
	slices.SortFunc(streams, func(a, b config.StreamConfig) int { return strings.Compare(a.Name, b.Name) })
	return streams, nil
}

func (s *Store) PutStream(ctx context.Context, sc config.StreamConfig) error {
	return s.update(func(cfg *config.Config) {
		for i := range cfg.Streams {
			if cfg.Streams[i].Name == sc.Name {
				cfg.Streams[i] = sc
				return
			}
		}
		cfg.Streams = append(cfg.Streams, sc)
	})
}

func (s *Store) DeleteStream(ctx context.Context, name string) error {
	return s.update(func(cfg *config.Config) {
		cfg.Streams = slices.DeleteFunc(cfg.Streams, func(sc config.StreamConfig) bool {
			return sc.Name == name
		})
	})
}
