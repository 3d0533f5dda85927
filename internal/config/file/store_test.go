package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/geeooff/iis-log-rotator/internal/config"
	"github.com/geeooff/iis-log-rotator/internal/config/storetest"
	"github.com/geeooff/iis-log-rotator/internal/retention"
)

func TestConformanceJSON(t *testing.T) {
	storetest.TestStore(t, func(t *testing.T) config.Store {
		return NewStore(filepath.Join(t.TempDir(), "config.json"))
	})
}

func TestConformanceYAML(t *testing.T) {
	storetest.TestStore(t, func(t *testing.T) config.Store {
		return NewStore(filepath.Join(t.TempDir(), "config.yaml"))
	})
}

func TestFormatByExtension(t *testing.T) {
	tests := map[string]string{
		"config.json": "json",
		"config.yaml": "yaml",
		"config.YML":  "yaml",
		"config":      "json",
	}
	for name, want := range tests {
		if got := NewStore(name).Format(); got != want {
			t.Errorf("%s: expected %s, got %s", name, want, got)
		}
	}
}

func TestStoreWritesEnvelope(t *testing.T) {
	ctx := context.Background()
	for _, name := range []string{"config.json", "config.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			s := NewStore(path)
			if err := config.Bootstrap(ctx, s); err != nil {
				t.Fatalf("Bootstrap: %v", err)
			}

			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("config file should exist: %v", err)
			}
			text := string(data)
			for _, want := range []string{"version", "defaultPolicy", "compressAfterDays", "sites"} {
				if !strings.Contains(text, want) {
					t.Errorf("%s missing %q:\n%s", name, want, text)
				}
			}
			if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
				t.Error("temp file left behind")
			}

			// A second store on the same file sees the same config.
			loaded, err := NewStore(path).Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if loaded == nil || len(loaded.Streams) != 1 || loaded.DefaultPolicy == nil {
				t.Fatalf("unexpected config: %+v", loaded)
			}
		})
	}
}

func TestStoreHandWrittenYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `version: 1
config:
  settings:
    root: D:\logs
    parallelism: 2
  defaultPolicy:
    delete: true
    deleteAfterDays: 30
  policies:
    W3SVC2:
      compress: true
      compressAfterDays: 2
  streams:
    - name: sites
      site: "*"
      period: hourly
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := NewStore(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Settings.Root != `D:\logs` || cfg.Settings.Parallelism != 2 {
		t.Errorf("settings: %+v", cfg.Settings)
	}
	if cfg.Default() != (retention.Policy{Delete: true, DeleteAfterDays: 30}) {
		t.Errorf("default policy: %+v", cfg.DefaultPolicy)
	}
	if !cfg.Policies["W3SVC2"].Compress {
		t.Errorf("policies: %+v", cfg.Policies)
	}
	if len(cfg.Streams) != 1 || cfg.Streams[0].Period != "hourly" {
		t.Errorf("streams: %+v", cfg.Streams)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestStoreRejectsUnversioned(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"config": {}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStore(path).Load(context.Background()); err == nil || !strings.Contains(err.Error(), "unversioned") {
		t.Fatalf("expected unversioned error, got %v", err)
	}
}

func TestStoreRejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"version": 99, "config": {}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStore(path).Load(context.Background()); err == nil || !strings.Contains(err.Error(), "newer") {
		t.Fatalf("expected version error, got %v", err)
	}
}

func TestStoreRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewStore(path)
	if _, err := s.Load(context.Background()); err == nil {
		t.Fatal("expected parse error")
	}
	// Mutations must not clobber an unreadable file.
	if err := s.PutSettings(context.Background(), config.Settings{}); err == nil {
		t.Fatal("expected PutSettings to fail on unreadable file")
	}
	data, _ := os.ReadFile(path)
	if string(data) != `{not json` {
		t.Errorf("file overwritten: %q", data)
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	s := NewStore(path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 20*time.Millisecond, nil, func() { changed <- struct{}{} })
	}()

	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Give the watcher time to register before the flush.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		if err := s.PutSettings(ctx, config.Settings{Parallelism: 3}); err != nil {
			t.Fatalf("PutSettings: %v", err)
		}
		select {
		case <-changed:
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("Watch: %v", err)
			}
			return
		case <-tick.C:
		case <-deadline:
			t.Fatal("no change notification")
		}
	}
}
