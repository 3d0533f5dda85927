// Package discovery turns configured stream entries into stream specs.
//
// An entry with a plain site id, a central log or the HTTP.sys error log
// yields one spec. A per-site entry whose site is a glob ("*", "1?",
// "{1,2}") is expanded against the site directories that exist under the
// log root, <root>/<SERVICE><site>, and yields one spec per match.
package discovery

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/geeooff/iis-log-rotator/internal/config"
	"github.com/geeooff/iis-log-rotator/internal/stream"

	"github.com/bmatcuk/doublestar/v4"
)

// Expand builds the specs of every entry of cfg. Entries that cannot be
// expanded are reported in errs and skipped; the others are returned in
// entry order, glob matches in site id order. A stream id produced twice is
// kept once.
func Expand(ctx context.Context, cfg *config.Config) (specs []stream.Spec, errs []error) {
	seen := make(map[string]string)
	for _, sc := range cfg.Streams {
		if err := ctx.Err(); err != nil {
			return specs, append(errs, err)
		}
		expanded, err := expandEntry(cfg.Settings, sc)
		if err != nil {
			errs = append(errs, fmt.Errorf("stream %s: %w", sc.Name, err))
			continue
		}
		for _, spec := range expanded {
			if prev, dup := seen[spec.ID]; dup {
				errs = append(errs, fmt.Errorf("stream %s: id %s already produced by %s", sc.Name, spec.ID, prev))
				continue
			}
			seen[spec.ID] = sc.Name
			specs = append(specs, spec)
		}
	}
	return specs, errs
}

func expandEntry(settings config.Settings, sc config.StreamConfig) ([]stream.Spec, error) {
	root := settings.EffectiveRoot(sc)
	if !sc.PerSite() {
		opts, err := sc.Options(root, 0)
		if err != nil {
			return nil, err
		}
		spec, err := stream.New(opts)
		if err != nil {
			return nil, err
		}
		return []stream.Spec{spec}, nil
	}

	if id, ok := sc.SiteID(); ok {
		opts, err := sc.Options(root, id)
		if err != nil {
			return nil, err
		}
		spec, err := stream.New(opts)
		if err != nil {
			return nil, err
		}
		return []stream.Spec{spec}, nil
	}

	if sc.ID != "" {
		return nil, fmt.Errorf("id override %q needs a plain site id", sc.ID)
	}
	opts, err := sc.Options(root, 0)
	if err != nil {
		return nil, err
	}
	ids, err := Sites(root, opts.Service, sc.Site)
	if err != nil {
		return nil, err
	}
	specs := make([]stream.Spec, 0, len(ids))
	for _, id := range ids {
		opts.SiteID = id
		spec, err := stream.New(opts)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Sites globs the site directories of a service under root and returns the
// matching site ids in ascending order. Names that are not <SERVICE><id>
// are ignored, whatever the pattern matched.
func Sites(root string, svc stream.Service, pattern string) ([]int64, error) {
	if !doublestar.ValidatePattern(pattern) || strings.ContainsAny(pattern, `/\`) {
		return nil, fmt.Errorf("invalid site pattern %q", pattern)
	}
	matches, err := doublestar.FilepathGlob(filepath.Join(root, string(svc)+pattern))
	if err != nil {
		return nil, fmt.Errorf("glob sites: %w", err)
	}

	prefix := strings.ToUpper(string(svc))
	var ids []int64
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.IsDir() {
			continue
		}
		name := filepath.Base(m)
		if !strings.HasPrefix(strings.ToUpper(name), prefix) {
			continue
		}
		id, err := strconv.ParseInt(name[len(prefix):], 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}
	slices.SortFunc(ids, cmp.Compare[int64])
	return slices.Compact(ids), nil
}
