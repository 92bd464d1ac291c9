// Package tail reads JSONL streams line by line and follows files that are
// still being written.
package tail

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// MaxLineBytes bounds a single JSONL line.
const MaxLineBytes = 10 * 1024 * 1024

// LineFunc receives one non-blank line without its trailing newline. The
// slice is only valid during the call.
type LineFunc func(line []byte) error

// ReadLines calls fn for each non-blank line of r until EOF, ctx is done or
// fn fails. A final line without a newline is still delivered.
func ReadLines(ctx context.Context, r io.Reader, fn LineFunc) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Follower delivers the lines of a file as they are appended.
type Follower struct {
	logger *slog.Logger
}

func NewFollower(logger *slog.Logger) *Follower {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Follower{logger: logger}
}

// Follow delivers every complete line already in path, then keeps delivering
// lines appended to it until ctx is done. A partial trailing line is held
// back until its newline arrives. If the file shrinks it is read again from
// the start. Follow returns nil when ctx is cancelled.
func (f *Follower) Follow(ctx context.Context, path string, fn LineFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so the file may be created or replaced later.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	st := &followState{path: path}
	defer st.close()

	if err := st.drain(fn); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				f.logger.Debug("followed file went away", "path", path)
				st.close()
				continue
			}
			if err := st.drain(fn); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("file watcher error", "path", path, "error", err)
		}
	}
}

type followState struct {
	path    string
	file    *os.File
	offset  int64
	pending []byte
}

func (s *followState) close() {
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
	s.offset = 0
	s.pending = nil
}

// drain reads from the current offset to EOF and delivers complete lines.
func (s *followState) drain(fn LineFunc) error {
	if s.file == nil {
		file, err := os.Open(s.path)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", s.path, err)
		}
		s.file = file
	}

	info, err := s.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", s.path, err)
	}
	if info.Size() < s.offset {
		s.offset = 0
		s.pending = nil
	}
	if _, err := s.file.Seek(s.offset, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek %s: %w", s.path, err)
	}

	reader := bufio.NewReader(s.file)
	for {
		chunk, err := reader.ReadBytes('\n')
		s.offset += int64(len(chunk))
		s.pending = append(s.pending, chunk...)

		if len(s.pending) > MaxLineBytes {
			return fmt.Errorf("line in %s exceeds %d bytes", s.path, MaxLineBytes)
		}

		if err == nil {
			line := bytes.TrimSpace(s.pending)
			s.pending = s.pending[:0]
			if len(line) == 0 {
				continue
			}
			if err := fn(line); err != nil {
				return err
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", s.path, err)
	}
}
