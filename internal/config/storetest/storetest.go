// Package storetest provides a shared conformance test suite for
// config.Store implementations. Each backend (memory, file, sqlite) wires
// this suite to verify it satisfies the full Store contract.
package storetest

import (
	"context"
	"testing"

	"github.com/geeooff/iis-log-rotator/internal/config"
	"github.com/geeooff/iis-log-rotator/internal/retention"
)

// TestStore runs the full conformance suite against a Store implementation.
// newStore must return a fresh, empty store for each sub-test.
func TestStore(t *testing.T, newStore func(t *testing.T) config.Store) {
	t.Run("LoadEmpty", func(t *testing.T) {
		s := newStore(t)
		cfg, err := s.Load(context.Background())
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg != nil {
			t.Fatalf("expected nil config from empty store, got %+v", cfg)
		}
	})

	// Settings
	t.Run("GetSettingsEmpty", func(t *testing.T) {
		s := newStore(t)
		got, err := s.GetSettings(context.Background())
		if err != nil {
			t.Fatalf("GetSettings: %v", err)
		}
		if got != nil {
			t.Fatalf("expected nil settings, got %+v", got)
		}
	})

	t.Run("PutGetSettings", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		want := config.Settings{
			Root:         `D:\iislogs`,
			HTTPErrRoot:  `D:\httperr`,
			Parallelism:  4,
			RateLimit:    2.5,
			Schedule:     "30 3 * * *",
			CenturyPivot: 2069,
			TimeZone:     "Europe/Paris",
		}
		if err := s.PutSettings(ctx, want); err != nil {
			t.Fatalf("PutSettings: %v", err)
		}
		got, err := s.GetSettings(ctx)
		if err != nil {
			t.Fatalf("GetSettings: %v", err)
		}
		if got == nil || *got != want {
			t.Fatalf("expected %+v, got %+v", want, got)
		}

		// Upsert.
		want.Parallelism = 1
		if err := s.PutSettings(ctx, want); err != nil {
			t.Fatalf("PutSettings upsert: %v", err)
		}
		got, _ = s.GetSettings(ctx)
		if got == nil || got.Parallelism != 1 {
			t.Fatalf("expected upserted settings, got %+v", got)
		}
	})

	// Policies
	t.Run("PutGetPolicy", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		p := retention.Policy{Compress: true, CompressAfterDays: 2, Delete: true, DeleteAfterDays: 10}
		if err := s.PutPolicy(ctx, "W3SVC1", p); err != nil {
			t.Fatalf("PutPolicy: %v", err)
		}
		got, err := s.GetPolicy(ctx, "W3SVC1")
		if err != nil {
			t.Fatalf("GetPolicy: %v", err)
		}
		if got == nil || *got != p {
			t.Fatalf("expected %+v, got %+v", p, got)
		}

		missing, err := s.GetPolicy(ctx, "W3SVC2")
		if err != nil {
			t.Fatalf("GetPolicy missing: %v", err)
		}
		if missing != nil {
			t.Fatalf("expected nil for missing policy, got %+v", missing)
		}
	})

	t.Run("PutPolicyUpsert", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.PutPolicy(ctx, "central", retention.Policy{Delete: true, DeleteAfterDays: 5}); err != nil {
			t.Fatalf("PutPolicy: %v", err)
		}
		if err := s.PutPolicy(ctx, "central", retention.Policy{Compress: true, CompressAfterDays: 1}); err != nil {
			t.Fatalf("PutPolicy upsert: %v", err)
		}
		got, _ := s.GetPolicy(ctx, "central")
		if got == nil || got.Delete || !got.Compress {
			t.Fatalf("expected upserted policy, got %+v", got)
		}
		all, err := s.ListPolicies(ctx)
		if err != nil {
			t.Fatalf("ListPolicies: %v", err)
		}
		if len(all) != 1 {
			t.Fatalf("expected 1 policy after upsert, got %d", len(all))
		}
	})

	t.Run("ListDeletePolicies", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		all, err := s.ListPolicies(ctx)
		if err != nil {
			t.Fatalf("ListPolicies: %v", err)
		}
		if len(all) != 0 {
			t.Fatalf("expected 0, got %d", len(all))
		}

		for _, id := range []string{config.PolicyDefault, config.PolicyHTTPError, "W3SVC1"} {
			if err := s.PutPolicy(ctx, id, retention.Policy{Delete: true, DeleteAfterDays: 3}); err != nil {
				t.Fatalf("PutPolicy %s: %v", id, err)
			}
		}
		all, _ = s.ListPolicies(ctx)
		if len(all) != 3 {
			t.Fatalf("expected 3, got %d", len(all))
		}

		if err := s.DeletePolicy(ctx, "W3SVC1"); err != nil {
			t.Fatalf("DeletePolicy: %v", err)
		}
		if err := s.DeletePolicy(ctx, "W3SVC1"); err != nil {
			t.Fatalf("DeletePolicy missing: %v", err)
		}
		all, _ = s.ListPolicies(ctx)
		if len(all) != 2 {
			t.Fatalf("expected 2 after delete, got %d", len(all))
		}
		if _, ok := all["W3SVC1"]; ok {
			t.Fatal("deleted policy still listed")
		}
	})

	// Streams
	t.Run("PutGetStream", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		sc := config.StreamConfig{
			Name:              "shop",
			ID:                "shop",
			Service:           "W3SVC",
			Site:              "3",
			Format:            "w3c",
			Period:            "hourly",
			Root:              `E:\logs`,
			Directory:         `E:\logs\shop`,
			UTF8:              true,
			CustomFields:      true,
			LocalTimeRollover: true,
			TruncateSize:      1 << 20,
		}
		if err := s.PutStream(ctx, sc); err != nil {
			t.Fatalf("PutStream: %v", err)
		}
		got, err := s.GetStream(ctx, "shop")
		if err != nil {
			t.Fatalf("GetStream: %v", err)
		}
		if got == nil || *got != sc {
			t.Fatalf("expected %+v, got %+v", sc, got)
		}

		missing, err := s.GetStream(ctx, "nope")
		if err != nil {
			t.Fatalf("GetStream missing: %v", err)
		}
		if missing != nil {
			t.Fatalf("expected nil for missing stream, got %+v", missing)
		}
	})

	t.Run("PutStreamUpsert", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.PutStream(ctx, config.StreamConfig{Name: "sites", Site: "*"}); err != nil {
			t.Fatalf("PutStream: %v", err)
		}
		if err := s.PutStream(ctx, config.StreamConfig{Name: "sites", Site: "1?", Disabled: true}); err != nil {
			t.Fatalf("PutStream upsert: %v", err)
		}
		all, err := s.ListStreams(ctx)
		if err != nil {
			t.Fatalf("ListStreams: %v", err)
		}
		if len(all) != 1 {
			t.Fatalf("expected 1 stream after upsert, got %d", len(all))
		}
		if all[0].Site != "1?" || !all[0].Disabled {
			t.Fatalf("expected upserted stream, got %+v", all[0])
		}
	})

	t.Run("ListStreamsOrdered", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for _, name := range []string{"zeta", "alpha", "mid"} {
			if err := s.PutStream(ctx, config.StreamConfig{Name: name, Site: "1"}); err != nil {
				t.Fatalf("PutStream %s: %v", name, err)
			}
		}
		all, err := s.ListStreams(ctx)
		if err != nil {
			t.Fatalf("ListStreams: %v", err)
		}
		if len(all) != 3 || all[0].Name != "alpha" || all[1].Name != "mid" || all[2].Name != "zeta" {
			t.Fatalf("expected name order, got %+v", all)
		}
	})

	t.Run("DeleteStream", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.PutStream(ctx, config.StreamConfig{Name: "a", Site: "1"}); err != nil {
			t.Fatalf("PutStream: %v", err)
		}
		if err := s.DeleteStream(ctx, "a"); err != nil {
			t.Fatalf("DeleteStream: %v", err)
		}
		if err := s.DeleteStream(ctx, "a"); err != nil {
			t.Fatalf("DeleteStream missing: %v", err)
		}
		got, _ := s.GetStream(ctx, "a")
		if got != nil {
			t.Fatalf("expected nil after delete, got %+v", got)
		}
	})

	// Full config
	t.Run("LoadAssembles", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		want := config.DefaultConfig()
		want.HTTPErrorPolicy = &retention.Policy{Delete: true, DeleteAfterDays: 14}
		want.Policies = map[string]retention.Policy{"W3SVC2": {Compress: true, CompressAfterDays: 3}}
		want.Streams = append(want.Streams, config.StreamConfig{Name: "errors", Service: "HTTPERR"})
		if err := config.Save(ctx, s, want); err != nil {
			t.Fatalf("Save: %v", err)
		}

		got, err := s.Load(ctx)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got == nil {
			t.Fatal("expected config, got nil")
		}
		if got.Settings != want.Settings {
			t.Errorf("Settings: expected %+v, got %+v", want.Settings, got.Settings)
		}
		if got.DefaultPolicy == nil || *got.DefaultPolicy != *want.DefaultPolicy {
			t.Errorf("DefaultPolicy: expected %+v, got %+v", want.DefaultPolicy, got.DefaultPolicy)
		}
		if got.HTTPErrorPolicy == nil || *got.HTTPErrorPolicy != *want.HTTPErrorPolicy {
			t.Errorf("HTTPErrorPolicy: expected %+v, got %+v", want.HTTPErrorPolicy, got.HTTPErrorPolicy)
		}
		if len(got.Policies) != 1 || got.Policies["W3SVC2"] != want.Policies["W3SVC2"] {
			t.Errorf("Policies: expected %+v, got %+v", want.Policies, got.Policies)
		}
		if len(got.Streams) != 2 || got.Streams[0].Name != "errors" || got.Streams[1].Name != "sites" {
			t.Errorf("Streams: expected errors and sites in name order, got %+v", got.Streams)
		}
		if err := got.Validate(); err != nil {
			t.Errorf("loaded config does not validate: %v", err)
		}
	})

	t.Run("LoadPoliciesOnly", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.PutPolicy(ctx, "W3SVC1", retention.Policy{Delete: true, DeleteAfterDays: 2}); err != nil {
			t.Fatalf("PutPolicy: %v", err)
		}
		got, err := s.Load(ctx)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got == nil {
			t.Fatal("expected config once a policy exists")
		}
		if got.DefaultPolicy != nil || got.Default().Enabled() {
			t.Errorf("expected no default policy, got %+v", got.DefaultPolicy)
		}
	})
}
