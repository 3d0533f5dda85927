// Package dirlock serializes rotation runs across processes. A Locker hands
// out one advisory, non-blocking, exclusive lock per log directory; two
// rotations of the same directory never overlap, whether they run in one
// process or in several.
package dirlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ErrDirectoryLocked is returned when another holder owns the lock.
var ErrDirectoryLocked = errors.New("log directory is locked by another process")

// Locker creates lock files under Dir, one per locked log directory. Lock
// files are named after the directory path so that log directories never
// receive foreign files.
type Locker struct {
	Dir string
}

// Lock is a held directory lock.
type Lock struct {
	path string
	dir  string
	file *os.File
}

// Acquire takes the lock of the log directory dir without blocking.
func (l Locker) Acquire(dir string) (*Lock, error) {
	if l.Dir == "" {
		return nil, errors.New("dirlock: no lock directory configured")
	}
	if err := os.MkdirAll(l.Dir, 0o750); err != nil {
		return nil, err
	}
	key, err := Key(dir)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(l.Dir, key+".lock")
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_RDWR, 0o640)
	if err != nil {
		return nil, err
	}
	if err := lockFile(f); err != nil {
		_ = f.Close()
		if errors.Is(err, errWouldBlock) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryLocked, dir)
		}
		return nil, fmt.Errorf("lock %s: %w", dir, err)
	}

	// Owner note for whoever finds the file; failures are harmless.
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+" "+dir+"\n"), 0)
	}
	return &Lock{path: path, dir: dir, file: f}, nil
}

// Key returns the lock name of a log directory: a name-based UUID of the
// absolute, cleaned path (case-folded on Windows).
func Key(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)
	if runtime.GOOS == "windows" {
		abs = strings.ToLower(abs)
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(abs))).String(), nil
}

// Dir returns the locked log directory.
func (l *Lock) Dir() string { return l.dir }

// Path returns the lock file.
func (l *Lock) Path() string { return l.path }

// Release drops the lock. The lock file stays behind for reuse.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unlockFile(l.file)
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	return err
}
