// Package archive performs the filesystem side of a retention plan:
// compressing a plain log file into a single-entry zip next to it and
// removing files.
//
// Every mutation goes through an Executor. In dry-run mode the executor
// validates and logs but never touches the disk.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/geeooff/iis-log-rotator/internal/classify"
	"github.com/geeooff/iis-log-rotator/internal/logging"
	"github.com/geeooff/iis-log-rotator/internal/report"
	"github.com/geeooff/iis-log-rotator/internal/stream"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"golang.org/x/time/rate"
)

var (
	// ErrArchived is returned when asked to compress an archive.
	ErrArchived = errors.New("file is already an archive")
	// ErrNotRegular is returned for directories and special files.
	ErrNotRegular = errors.New("not a regular file")
)

// copyBufferSize is the read size when streaming a log into the archive.
const copyBufferSize = 256 << 10 // 256 KB

// Config configures an Executor.
type Config struct {
	// DryRun suppresses every filesystem mutation.
	DryRun bool
	// Limiter paces mutations, one token per compress or delete. Nil means
	// unlimited.
	Limiter *rate.Limiter
	Logger  *slog.Logger
}

// Executor compresses and deletes stream files. It is safe for concurrent
// use on distinct files.
type Executor struct {
	dryRun  bool
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewExecutor creates an executor.
func NewExecutor(cfg Config) *Executor {
	return &Executor{
		dryRun:  cfg.DryRun,
		limiter: cfg.Limiter,
		logger:  logging.Default(cfg.Logger).With("component", "archive"),
	}
}

// DryRun reports whether the executor simulates.
func (e *Executor) DryRun() bool { return e.dryRun }

// Compress writes f into a maximally compressed single-entry zip at
// f.Path + ".zip", replacing any existing archive, and copies the source
// timestamps onto it. The plain file is left in place.
func (e *Executor) Compress(ctx context.Context, f classify.File) error {
	if f.Archived {
		return fmt.Errorf("compress %s: %w", f.Path, ErrArchived)
	}
	dst := stream.ArchiveName(f.Path)
	if e.dryRun {
		info, err := os.Stat(f.Path)
		if err != nil {
			return fmt.Errorf("compress %s: %w", f.Path, err)
		}
		if !info.Mode().IsRegular() {
			return fmt.Errorf("compress %s: %w", f.Path, ErrNotRegular)
		}
		e.logger.Debug("would compress", "path", f.Path, "archive", dst, "bytes", info.Size())
		return nil
	}
	if err := e.wait(ctx); err != nil {
		return fmt.Errorf("compress %s: %w", f.Path, err)
	}

	e.logger.Debug("compressing", "path", f.Path, "archive", dst)
	if err := compressFile(f.Path, dst); err != nil {
		return fmt.Errorf("compress %s: %w", f.Path, err)
	}
	return nil
}

// Delete removes f. A file that is already gone is an error.
func (e *Executor) Delete(ctx context.Context, f classify.File, reason report.Reason) error {
	if e.dryRun {
		if _, err := os.Lstat(f.Path); err != nil {
			return fmt.Errorf("delete %s: %w", f.Path, err)
		}
		e.logger.Debug("would delete", "path", f.Path, "reason", string(reason))
		return nil
	}
	if err := e.wait(ctx); err != nil {
		return fmt.Errorf("delete %s: %w", f.Path, err)
	}

	e.logger.Debug("deleting", "path", f.Path, "reason", string(reason))
	if err := os.Remove(f.Path); err != nil {
		return fmt.Errorf("delete %s: %w", f.Path, err)
	}
	return nil
}

func (e *Executor) wait(ctx context.Context) error {
	if e.limiter == nil {
		return ctx.Err()
	}
	return e.limiter.Wait(ctx)
}

// compressFile streams src into a temp zip in the destination directory and
// renames it over dst.
func compressFile(src, dst string) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return ErrNotRegular
	}
	times, err := classify.ReadTimes(src)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".compress-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if err := writeArchive(tmp, in, info); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return copyTimes(dst, times)
}

func writeArchive(w io.Writer, src io.Reader, info os.FileInfo) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = info.Name()
	hdr.Method = zip.Deflate
	hdr.Modified = info.ModTime()

	entry, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	if _, err := io.CopyBuffer(entry, src, make([]byte, copyBufferSize)); err != nil {
		return err
	}
	return zw.Close()
}

// copyTimes stamps the archive with the source's modification time and,
// where the platform allows setting it, its creation time.
func copyTimes(path string, t classify.Times) error {
	if err := os.Chtimes(path, time.Now(), t.Modified); err != nil {
		return err
	}
	return setCreationTime(path, t.Created)
}
