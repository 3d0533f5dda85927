package report

import (
	"log/slog"

	"github.com/geeooff/iis-log-rotator/internal/logging"
)

// Sink receives run events. Implementations must be safe for concurrent
// use: streams may be processed in parallel.
type Sink interface {
	StreamStarted(s Stream)
	FileDone(streamID string, o FileOutcome)
	StreamDone(s Stream)
	RunDone(r Run)
}

// Nop discards every event.
type Nop struct{}

func (Nop) StreamStarted(Stream)         {}
func (Nop) FileDone(string, FileOutcome) {}
func (Nop) StreamDone(Stream)            {}
func (Nop) RunDone(Run)                  {}

// Multi fans events out to every sink in order.
type Multi []Sink

func (m Multi) StreamStarted(s Stream) {
	for _, sink := range m {
		sink.StreamStarted(s)
	}
}

func (m Multi) FileDone(streamID string, o FileOutcome) {
	for _, sink := range m {
		sink.FileDone(streamID, o)
	}
}

func (m Multi) StreamDone(s Stream) {
	for _, sink := range m {
		sink.StreamDone(s)
	}
}

func (m Multi) RunDone(r Run) {
	for _, sink := range m {
		sink.RunDone(r)
	}
}

// LogSink writes run events as structured log lines.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink logging through logger. A nil logger discards.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logging.Default(logger).With("component", "report")}
}

func (l *LogSink) StreamStarted(s Stream) {
	l.logger.Info("processing stream",
		"stream", s.ID, "period", s.Period, "template", s.Template,
		"directory", s.Directory, "policy", s.Policy)
}

func (l *LogSink) FileDone(streamID string, o FileOutcome) {
	attrs := []any{"stream", streamID, "path", o.Path}
	if o.Reason != "" {
		attrs = append(attrs, "reason", string(o.Reason))
	}
	if o.Simulated {
		attrs = append(attrs, "simulated", true)
	}
	if o.Failed() {
		l.logger.Error(string(o.Action)+" failed", append(attrs, "error", o.Err)...)
		return
	}
	switch o.Action {
	case ActionCompress:
		l.logger.Info("file compressed", attrs...)
	case ActionDelete:
		l.logger.Info("file deleted", attrs...)
	}
}

func (l *LogSink) StreamDone(s Stream) {
	if s.Skipped() {
		attrs := []any{"stream", s.ID, "reason", string(s.Skip)}
		if s.SkipError != "" {
			attrs = append(attrs, "error", s.SkipError)
		}
		if s.Skip == SkipListFailed || s.Skip == SkipLocked {
			l.logger.Warn("stream skipped", attrs...)
		} else {
			l.logger.Info("stream skipped", attrs...)
		}
		return
	}
	if s.Protected != "" {
		l.logger.Debug("latest file skipped", "stream", s.ID, "path", s.Protected)
	}
	l.logger.Info("stream planned", "stream", s.ID,
		"to_delete", s.PlannedDeletes, "to_compress", s.PlannedCompress)
	l.logger.Info("stream done", "stream", s.ID,
		"compressed", s.Compressed, "deleted", s.Deleted, "failed", s.Failed)
}

func (l *LogSink) RunDone(r Run) {
	compressed, deleted, failed, skipped := r.Totals()
	l.logger.Info("run complete",
		"run", r.ID.String(), "dry_run", r.DryRun, "streams", len(r.Streams),
		"compressed", compressed, "deleted", deleted, "failed", failed,
		"skipped", skipped, "duration", r.Duration())
}
