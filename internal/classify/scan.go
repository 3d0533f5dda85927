package classify

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/geeooff/iis-log-rotator/internal/stream"
)

// Listing is the classified content of a stream directory. Both slices are
// in stream order (see Sort).
type Listing struct {
	Plain    []File
	Archived []File
	// Ignored counts directory entries that are not members of the stream.
	Ignored int
}

// Scan lists spec.Directory and classifies every regular file. Entries come
// back from os.ReadDir sorted by name, which is the tie break of Sort.
func (c *Classifier) Scan(ctx context.Context, spec stream.Spec) (Listing, error) {
	entries, err := os.ReadDir(spec.Directory)
	if err != nil {
		return Listing{}, fmt.Errorf("list %s: %w", spec.Directory, err)
	}

	var l Listing
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return Listing{}, err
		}
		if !e.Type().IsRegular() {
			l.Ignored++
			continue
		}
		f, ok := c.Classify(spec, e.Name())
		if !ok {
			l.Ignored++
			continue
		}
		if !f.Exists {
			times, err := c.times()(f.Path)
			if err != nil {
				// Vanished between ReadDir and stat.
				l.Ignored++
				continue
			}
			f.Exists = true
			f.Created = times.Created
			f.Modified = times.Modified
		}
		if f.Archived {
			l.Archived = append(l.Archived, f)
		} else {
			l.Plain = append(l.Plain, f)
		}
	}

	Sort(spec, l.Plain)
	Sort(spec, l.Archived)
	return l, nil
}

// Sort orders files ascending by creation time for MaxSize streams and by
// logical date otherwise. The sort is stable: files sharing a timestamp keep
// their enumeration order.
func Sort(spec stream.Spec, files []File) {
	if spec.Period.SizeBased() {
		slices.SortStableFunc(files, func(a, b File) int {
			return a.Created.Compare(b.Created)
		})
		return
	}
	slices.SortStableFunc(files, func(a, b File) int {
		return a.LogicalDate.Compare(b.LogicalDate)
	})
}
