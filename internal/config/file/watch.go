package file

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/geeooff/iis-log-rotator/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events an atomic flush produces.
const DefaultDebounce = 250 * time.Millisecond

// Watch calls onChange after the config file at path is written, replaced
// or removed. It watches the parent directory so that temp-file-then-rename
// flushes are seen. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, debounce time.Duration, logger *slog.Logger, onChange func()) error {
	logger = logging.Default(logger).With("component", "config-watch")
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				logger.Debug("config file changed", "path", abs, "op", event.Op.String())
				timer.Reset(debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("fsnotify error", "error", err)

		case <-timer.C:
			onChange()
		}
	}
}
