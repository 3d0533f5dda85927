package discovery

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/geeooff/iis-log-rotator/internal/config"
	"github.com/geeooff/iis-log-rotator/internal/stream"
)

func mkdirs(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.MkdirAll(filepath.Join(root, n), 0o755); err != nil {
			t.Fatal(err)
		}
	}
}

func ids(specs []stream.Spec) string {
	var out []string
	for _, s := range specs {
		out = append(out, s.ID)
	}
	return strings.Join(out, ",")
}

func TestSites(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "W3SVC1", "W3SVC2", "W3SVC10", "W3SVC3x", "W3SVC", "FTPSVC1", "W3SVC0")
	if err := os.WriteFile(filepath.Join(root, "W3SVC4"), []byte("file, not a dir"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		pattern string
		want    []int64
	}{
		{"*", []int64{1, 2, 10}},
		{"?", []int64{1, 2}},
		{"1*", []int64{1, 10}},
		{"{2,10}", []int64{2, 10}},
		{"[12]", []int64{1, 2}},
		{"99", nil},
	}
	for _, tt := range tests {
		got, err := Sites(root, stream.ServiceW3SVC, tt.pattern)
		if err != nil {
			t.Fatalf("Sites(%q): %v", tt.pattern, err)
		}
		if len(got) != len(tt.want) {
			t.Errorf("Sites(%q): expected %v, got %v", tt.pattern, tt.want, got)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Sites(%q): expected %v, got %v", tt.pattern, tt.want, got)
				break
			}
		}
	}
}

func TestSitesInvalidPattern(t *testing.T) {
	for _, p := range []string{"[", "*/x", `..\*`} {
		if _, err := Sites(t.TempDir(), stream.ServiceW3SVC, p); err == nil {
			t.Errorf("Sites(%q): expected error", p)
		}
	}
}

func TestExpand(t *testing.T) {
	root := t.TempDir()
	httperr := t.TempDir()
	mkdirs(t, root, "W3SVC1", "W3SVC2", "FTPSVC5")

	cfg := &config.Config{
		Settings: config.Settings{Root: root, HTTPErrRoot: httperr},
		Streams: []config.StreamConfig{
			{Name: "sites", Site: "*", Format: "w3c", Period: "daily"},
			{Name: "ftp", Service: "FTPSVC", Site: "*"},
			{Name: "central", Central: "binary", Period: "hourly"},
			{Name: "errors", Service: "HTTPERR"},
			{Name: "missing", Site: "7"},
			{Name: "dup", Site: "2"},
			{Name: "broken", Site: "1", Period: "yearly"},
		},
	}
	specs, errs := Expand(context.Background(), cfg)

	if got := ids(specs); got != "W3SVC1,W3SVC2,FTPSVC5,central,HTTPERR,W3SVC7" {
		t.Fatalf("unexpected specs: %s", got)
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
	if !strings.Contains(errs[0].Error(), "dup") || !strings.Contains(errs[1].Error(), "broken") {
		t.Errorf("unexpected errors: %v", errs)
	}

	for _, s := range specs {
		switch s.ID {
		case "HTTPERR":
			if s.Directory != filepath.Clean(httperr) || s.Period != stream.PeriodMaxSize {
				t.Errorf("HTTPERR spec: %+v", s)
			}
		case "FTPSVC5":
			if s.Template != "ex{yyMMdd}.log" {
				t.Errorf("FTP template: %s", s.Template)
			}
		case "central":
			if s.Directory != filepath.Join(root, "W3SVC") || s.Extension != stream.ExtBinary {
				t.Errorf("central spec: %+v", s)
			}
		}
	}
}

func TestExpandGlobWithIDOverride(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "W3SVC1")
	cfg := &config.Config{
		Settings: config.Settings{Root: root},
		Streams:  []config.StreamConfig{{Name: "x", Site: "*", ID: "shop"}},
	}
	specs, errs := Expand(context.Background(), cfg)
	if len(specs) != 0 || len(errs) != 1 {
		t.Fatalf("expected a single error, got specs=%s errs=%v", ids(specs), errs)
	}
}

func TestExpandCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := &config.Config{Streams: []config.StreamConfig{{Name: "a", Site: "1", Root: "/logs"}}}
	specs, errs := Expand(ctx, cfg)
	if len(specs) != 0 || len(errs) != 1 {
		t.Fatalf("expected cancellation error, got specs=%s errs=%v", ids(specs), errs)
	}
}
