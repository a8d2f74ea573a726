// Package tailer follows a growing log file, tolerant of rotation and
// truncation, and streams complete lines over a channel.
//
// The tailer polls: it reads to end-of-file, then waits one poll interval
// before re-checking. Filesystem notifications, when available, wake the
// loop early so new lines surface without the poll latency; the poll remains
// the correctness mechanism. Rotation is detected by comparing the on-disk
// identity (device+inode) of the path against the open handle, or by the
// file shrinking below the consumed offset. On rotation the stale handle is
// closed and the new file is read from the beginning, so every post-rotation
// line is delivered exactly once and no pre-rotation line is repeated.
package tailer

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Config for the tailer.
type Config struct {
	Path         string
	PollInterval time.Duration
	BufferSize   int
}

// Tailer follows one log file.
type Tailer struct {
	cfg   Config
	log   *logrus.Logger
	lines chan string

	file    *os.File
	reader  *bufio.Reader
	dev     uint64
	ino     uint64
	hasID   bool
	offset  int64
	partial []byte
}

// New creates a Tailer for the given path. Run must be called to start it.
func New(cfg Config, log *logrus.Logger) *Tailer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	return &Tailer{
		cfg:   cfg,
		log:   log,
		lines: make(chan string, cfg.BufferSize),
	}
}

// Lines returns the channel of complete lines, without trailing newlines.
// The channel is closed when Run returns.
func (t *Tailer) Lines() <-chan string {
	return t.lines
}

// Run follows the file until ctx is cancelled. Transient open/stat errors
// are retried on the next poll tick and never terminate the loop.
func (t *Tailer) Run(ctx context.Context) {
	defer close(t.lines)
	defer t.closeFile()

	watcher := t.newWatcher()
	if watcher != nil {
		defer watcher.Close()
	}

	// The first open seeks to the end: only lines written after startup are
	// reported, matching tail -f.
	if err := t.open(seekEnd); err != nil {
		t.log.WithError(err).WithField("path", t.cfg.Path).Warn("Log file not readable yet, will retry")
	}

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if t.file != nil {
			if !t.readAvailable(ctx) {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case ev, ok := <-watcherEvents(watcher):
			if !ok {
				watcher = nil
			} else if filepath.Clean(ev.Name) != filepath.Clean(t.cfg.Path) {
				continue
			}
		case err, ok := <-watcherErrors(watcher):
			if ok {
				t.log.WithError(err).Debug("Watcher error")
			} else {
				watcher = nil
			}
			continue
		}

		t.checkReopen()
	}
}

type openMode int

const (
	seekEnd openMode = iota
	seekStart
)

func (t *Tailer) open(mode openMode) error {
	f, err := os.Open(t.cfg.Path)
	if err != nil {
		return err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}

	t.file = f
	t.reader = bufio.NewReader(f)
	t.partial = t.partial[:0]
	t.dev, t.ino, t.hasID = fileIdentity(fi)
	t.offset = 0
	if mode == seekEnd {
		if _, err := f.Seek(0, io.SeekEnd); err == nil {
			t.offset = fi.Size()
		}
	}
	t.log.WithFields(logrus.Fields{
		"path":   t.cfg.Path,
		"offset": t.offset,
	}).Info("Following log file")
	return nil
}

func (t *Tailer) closeFile() {
	if t.file != nil {
		t.file.Close()
		t.file = nil
		t.reader = nil
	}
}

// readAvailable drains everything currently readable, emitting complete
// lines. Returns false if ctx was cancelled while delivering a line.
func (t *Tailer) readAvailable(ctx context.Context) bool {
	for {
		chunk, err := t.reader.ReadBytes('\n')
		t.offset += int64(len(chunk))
		if len(chunk) > 0 {
			t.partial = append(t.partial, chunk...)
		}
		if err == nil {
			line := strings.TrimRight(string(t.partial), "\r\n")
			t.partial = t.partial[:0]
			if line != "" {
				select {
				case t.lines <- line:
				case <-ctx.Done():
					return false
				}
			}
			continue
		}
		if err == io.EOF {
			// Incomplete trailing line stays buffered in t.partial until the
			// writer finishes it.
			return true
		}
		t.log.WithError(err).WithField("path", t.cfg.Path).Warn("Read error, reopening")
		t.closeFile()
		return true
	}
}

// checkReopen detects rotation (identity change), truncation (shrink below
// the consumed offset), and recovers a closed handle. The path being
// momentarily missing during rotation is left for the next tick.
func (t *Tailer) checkReopen() {
	fi, err := os.Stat(t.cfg.Path)
	if err != nil {
		// Transient stat failure, or the path is momentarily missing during
		// rotation. An open handle keeps draining; otherwise retry next tick.
		return
	}

	if t.file == nil {
		if err := t.open(seekStart); err != nil {
			t.log.WithError(err).Debug("Reopen failed, will retry")
		}
		return
	}

	dev, ino, ok := fileIdentity(fi)
	rotated := t.hasID && ok && (dev != t.dev || ino != t.ino)
	shrunk := fi.Size() < t.offset
	if !rotated && !shrunk {
		return
	}

	t.log.WithFields(logrus.Fields{
		"path":    t.cfg.Path,
		"rotated": rotated,
		"shrunk":  shrunk,
	}).Info("Log file replaced, reopening from start")
	t.closeFile()
	if err := t.open(seekStart); err != nil {
		t.log.WithError(err).Debug("Reopen after rotation failed, will retry")
	}
}

// newWatcher sets up an fsnotify watch on the log file's directory. A nil
// return means pure polling, which is still correct.
func (t *Tailer) newWatcher() *fsnotify.Watcher {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		t.log.WithError(err).Debug("fsnotify unavailable, falling back to polling only")
		return nil
	}
	if err := watcher.Add(filepath.Dir(t.cfg.Path)); err != nil {
		t.log.WithError(err).Debug("Cannot watch log directory, falling back to polling only")
		watcher.Close()
		return nil
	}
	return watcher
}

func watcherEvents(w *fsnotify.Watcher) <-chan fsnotify.Event {
	if w == nil {
		return nil
	}
	return w.Events
}

func watcherErrors(w *fsnotify.Watcher) <-chan error {
	if w == nil {
		return nil
	}
	return w.Errors
}

// fileIdentity extracts the device and inode numbers identifying the file on
// disk. ok is false on platforms without stat_t support; rotation detection
// then relies on shrink alone.
func fileIdentity(fi os.FileInfo) (dev, ino uint64, ok bool) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, false
	}
	return uint64(st.Dev), uint64(st.Ino), true
}
