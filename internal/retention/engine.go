// Package retention decides which files of a stream are deleted and which
// are compressed. Evaluation is a pure function of a State snapshot: no IO,
// no clock reads, no logging.
package retention

import (
	"time"

	"github.com/geeooff/iis-log-rotator/internal/classify"
	"github.com/geeooff/iis-log-rotator/internal/stream"
)

// State is an immutable snapshot of one stream directory.
type State struct {
	// Plain and Archived are ordered ascending (classify.Sort).
	Plain    []classify.File
	Archived []classify.File
	Policy   Policy
	// Now is the reference time, see Now.
	Now time.Time
}

// Plan is the outcome of Evaluate.
type Plan struct {
	// Protected is the newest plain file, assumed still open for writing.
	// Nil when there are no plain files.
	Protected *classify.File
	Delete    []classify.File
	Compress  []classify.File
}

// Empty reports whether the plan has no action.
func (p Plan) Empty() bool {
	return len(p.Delete) == 0 && len(p.Compress) == 0
}

// Evaluate applies the policy to the snapshot.
//
// The newest plain file is never touched. The delete pass runs first over
// plain and archived files older than DeleteAfterDays; the compress pass
// then selects plain files older than CompressAfterDays that the delete pass
// did not claim.
func Evaluate(s State) Plan {
	var plan Plan
	plain := s.Plain
	if n := len(plain); n > 0 {
		latest := plain[n-1]
		plan.Protected = &latest
		plain = plain[:n-1]
	}

	deleted := make(map[string]struct{})
	if s.Policy.Delete {
		before := s.Now.AddDate(0, 0, -s.Policy.DeleteAfterDays)
		for _, set := range [][]classify.File{plain, s.Archived} {
			for _, f := range set {
				if f.Exists && f.LogicalDate.Before(before) {
					plan.Delete = append(plan.Delete, f)
					deleted[f.Path] = struct{}{}
				}
			}
		}
	}

	if s.Policy.Compress {
		before := s.Now.AddDate(0, 0, -s.Policy.CompressAfterDays)
		for _, f := range plain {
			if _, ok := deleted[f.Path]; ok {
				continue
			}
			if f.Exists && f.LogicalDate.Before(before) {
				plan.Compress = append(plan.Compress, f)
			}
		}
	}

	return plan
}

// Now returns the reference time of a stream: now in UTC, or in local when
// the stream rolls over on local time. A nil local means time.Local.
func Now(spec stream.Spec, now time.Time, local *time.Location) time.Time {
	return now.In(spec.Zone(local))
}
