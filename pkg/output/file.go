// Package output writes harvest results to timestamped files.
//
// A File is written to a temporary path in its target directory and only
// renamed into place on Commit, so an interrupted crawl never leaves a
// truncated array behind under the final name.
package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Default file naming.
const (
	DefaultPrefix = "plos_"
	ExtJSON       = ".json"
	ExtRaw        = ".txt"

	// TimestampLayout renders as MM-dd-yy-HH-mm-ss.
	TimestampLayout = "01-02-06-15-04-05"
)

// ErrClosed is returned when a committed or aborted File is used.
var ErrClosed = errors.New("output file already closed")

// FileName returns prefix + timestamp + ext for t.
func FileName(prefix, ext string, t time.Time) string {
	return prefix + t.Format(TimestampLayout) + ext
}

// File is an output file that becomes visible under its final name on Commit.
type File struct {
	tmp    *os.File
	path   string
	closed bool
	bytes  int64
	logger zerolog.Logger
}

// Create opens a temporary file in dir that will be committed as name.
// dir is created if it does not exist.
func Create(dir, name string) (*File, error) {
	if name == "" {
		return nil, fmt.Errorf("output file name is required")
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	path := filepath.Join(dir, name)
	return &File{
		tmp:    tmp,
		path:   path,
		logger: log.With().Str("component", "output").Str("path", path).Logger(),
	}, nil
}

// Name returns the final path of the file.
func (f *File) Name() string {
	return f.path
}

// Written returns the number of bytes written so far.
func (f *File) Written() int64 {
	return f.bytes
}

// Write implements io.Writer.
func (f *File) Write(p []byte) (int, error) {
	if f.closed {
		return 0, ErrClosed
	}
	n, err := f.tmp.Write(p)
	f.bytes += int64(n)
	return n, err
}

// Commit flushes the file and moves it to its final path.
func (f *File) Commit() error {
	if f.closed {
		return ErrClosed
	}
	f.closed = true

	if err := f.tmp.Sync(); err != nil {
		f.discard()
		return fmt.Errorf("sync output: %w", err)
	}
	if err := f.tmp.Close(); err != nil {
		os.Remove(f.tmp.Name())
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(f.tmp.Name(), f.path); err != nil {
		os.Remove(f.tmp.Name())
		return fmt.Errorf("rename output: %w", err)
	}

	f.logger.Info().Int64("bytes", f.bytes).Msg("Output written")
	return nil
}

// Abort discards everything written. Abort after Commit is a no-op.
func (f *File) Abort() error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.logger.Warn().Int64("bytes", f.bytes).Msg("Output discarded")
	return f.discard()
}

func (f *File) discard() error {
	f.tmp.Close()
	if err := os.Remove(f.tmp.Name()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove temp file: %w", err)
	}
	return nil
}
