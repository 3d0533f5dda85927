// Package report carries the outcome of a rotation run to diagnostics sinks.
//
// The rotator never logs file actions directly: it emits StreamStarted,
// FileDone and StreamDone events for each stream and RunDone at the end. A
// Sink turns those into log lines, metrics or printed tables.
package report

import (
	"time"

	"github.com/google/uuid"
)

// Action is what was attempted on a file.
type Action string

const (
	ActionCompress Action = "compress"
	ActionDelete   Action = "delete"
)

// Reason qualifies a delete.
type Reason string

const (
	ReasonObsolete             Reason = "obsolete"
	ReasonPreviouslyCompressed Reason = "previously compressed"
)

// SkipReason explains why a stream was not processed.
type SkipReason string

const (
	SkipNone         SkipReason = ""
	SkipDisabled     SkipReason = "disabled"
	SkipCustomFormat SkipReason = "custom format"
	SkipNoPolicy     SkipReason = "no policy"
	SkipInvalid      SkipReason = "invalid policy"
	SkipMissingDir   SkipReason = "directory missing"
	SkipLocked       SkipReason = "directory locked"
	SkipListFailed   SkipReason = "listing failed"
	SkipCanceled     SkipReason = "canceled"
)

// FileOutcome is the result of one compress or delete.
type FileOutcome struct {
	Path      string `json:"path"`
	Action    Action `json:"action"`
	Reason    Reason `json:"reason,omitempty"`
	Simulated bool   `json:"simulated,omitempty"`
	Err       error  `json:"-"`
	Error     string `json:"error,omitempty"`
}

// Failed reports whether the action did not complete.
func (o FileOutcome) Failed() bool { return o.Err != nil }

// Stream summarizes one stream of a run.
type Stream struct {
	ID        string     `json:"id"`
	Period    string     `json:"period"`
	Template  string     `json:"template"`
	Directory string     `json:"directory"`
	Policy    string     `json:"policy,omitempty"`
	Skip      SkipReason `json:"skip,omitempty"`
	SkipError string     `json:"skipError,omitempty"`

	Protected string `json:"protected,omitempty"`
	// Planned counts as decided by the retention engine.
	PlannedDeletes  int           `json:"plannedDeletes"`
	PlannedCompress int           `json:"plannedCompress"`
	Compressed      int           `json:"compressed"`
	Deleted         int           `json:"deleted"`
	Failed          int           `json:"failed"`
	Outcomes        []FileOutcome `json:"outcomes,omitempty"`
}

// Skipped reports whether the stream was not processed.
func (s Stream) Skipped() bool { return s.Skip != SkipNone }

// Record appends an outcome and updates the counters.
func (s *Stream) Record(o FileOutcome) {
	if o.Err != nil {
		o.Error = o.Err.Error()
	}
	s.Outcomes = append(s.Outcomes, o)
	switch {
	case o.Failed():
		s.Failed++
	case o.Action == ActionCompress:
		s.Compressed++
	case o.Action == ActionDelete:
		s.Deleted++
	}
}

// Run is the outcome of one invocation over a set of streams.
type Run struct {
	ID      uuid.UUID `json:"id"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	DryRun  bool      `json:"dryRun"`
	Streams []Stream  `json:"streams"`
}

// NewRun starts a run. IDs are time ordered (UUIDv7).
func NewRun(start time.Time, dryRun bool) Run {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Run{ID: id, Start: start, DryRun: dryRun}
}

// Duration is the wall time of the run.
func (r Run) Duration() time.Duration { return r.End.Sub(r.Start) }

// Totals sums the counters of every stream.
func (r Run) Totals() (compressed, deleted, failed, skipped int) {
	for _, s := range r.Streams {
		compressed += s.Compressed
		deleted += s.Deleted
		failed += s.Failed
		if s.Skipped() {
			skipped++
		}
	}
	return
}
