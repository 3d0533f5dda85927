// Package memory provides an in-memory config.Store implementation.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/geeooff/iis-log-rotator/internal/config"
	"github.com/geeooff/iis-log-rotator/internal/retention"
)

// Store is an in-memory config.Store implementation.
// Intended for testing. Configuration is not persisted across restarts.
type Store struct {
	mu       sync.RWMutex
	settings *config.Settings
	policies map[string]retention.Policy
	streams  map[string]config.StreamConfig
}

var _ config.Store = (*Store)(nil)

// NewStore creates a new in-memory config.Store.
func NewStore() *Store {
	return &Store{
		policies: make(map[string]retention.Policy),
		streams:  make(map[string]config.StreamConfig),
	}
}

// Load returns the stored configuration.
// Returns nil if nothing has been saved.
func (s *Store) Load(ctx context.Context) (*config.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.settings == nil && len(s.policies) == 0 && len(s.streams) == 0 {
		return nil, nil
	}
	var settings *config.Settings
	if s.settings != nil {
		cp := *s.settings
		settings = &cp
	}
	return config.Assemble(settings, maps.Clone(s.policies), s.sortedStreams()), nil
}

// Settings

func (s *Store) GetSettings(ctx context.Context) (*config.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return nil, nil
	}
	cp := *s.settings
	return &cp, nil
}

func (s *Store) PutSettings(ctx context.Context, settings config.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = &settings
	return nil
}

// Policies

func (s *Store) GetPolicy(ctx context.Context, id string) (*retention.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) ListPolicies(ctx context.Context) (map[string]retention.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.policies), nil
}

func (s *Store) PutPolicy(ctx context.Context, id string, p retention.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[id] = p
	return nil
}

func (s *Store) DeletePolicy(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.policies, id)
	return nil
}

// Streams

func (s *Store) GetStream(ctx context.Context, name string) (*config.StreamConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.streams[name]
	if !ok {
		return nil, nil
	}
	return &sc, nil
}

func (s *Store) ListStreams(ctx context.Context) ([]config.StreamConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedStreams(), nil
}

func (s *Store) PutStream(ctx context.Context, sc config.StreamConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[sc.Name] = sc
	return nil
}

func (s *Store) DeleteStream(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.streams, name)
	return nil
}

// sortedStreams must be called with mu held.
func (s *Store) sortedStreams() []config.StreamConfig {
	if len(s.streams) == 0 {
		return nil
	}
	out := slices.Collect(maps.Values(s.streams))
	slices.SortFunc(out, func(a, b config.StreamConfig) int { return cmp.Compare(a.Name, b.Name) })
	return out
}
