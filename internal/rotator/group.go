package rotator

import (
	"github.com/geeooff/iis-log-rotator/internal/dirlock"
	"github.com/geeooff/iis-log-rotator/internal/stream"
)

// groupByDirectory partitions spec indexes by log directory, keeping the
// order of first appearance for groups and the input order within a group.
// Directories are compared by lock key, so two spellings of one path share
// a group.
func groupByDirectory(specs []stream.Spec) [][]int {
	var groups [][]int
	byKey := make(map[string]int)
	for i, spec := range specs {
		key, err := dirlock.Key(spec.Directory)
		if err != nil {
			key = spec.Directory
		}
		g, ok := byKey[key]
		if !ok {
			g = len(groups)
			byKey[key] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}
