// Package watcher polls monitored log files for appended lines and feeds
// them through the line parsers. Plain stat-based polling is used rather
// than inotify: it survives logrotate's rename+create, NFS mounts and
// container bind mounts without special cases.
package watcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/logsentry/logsentry/internal/logging"
	"github.com/logsentry/logsentry/internal/metrics"
	"github.com/logsentry/logsentry/internal/parser"
)

// backlogLines bounds how much history a fresh tailer replays from an
// already existing file.
const backlogLines = 100

// Tailer tracks one log file by byte offset. It is not safe for concurrent
// use; the watcher service drives each tailer from a single goroutine.
type Tailer struct {
	path   string
	parser parser.LineParser
	log    *logging.Logger
	offset int64
	primed bool
}

// NewTailer creates a tailer for path feeding the given parser. The first
// Poll positions the offset at the file's current end so content written
// before watching started is never re-read; call ProcessExisting first to
// also replay recent history.
func NewTailer(path string, p parser.LineParser, log *logging.Logger) *Tailer {
	return &Tailer{
		path:   path,
		parser: p,
		log:    log.With(logging.Source(p.Name()), logging.Path(path)),
	}
}

// Offset returns the current byte offset. Exposed for tests.
func (t *Tailer) Offset() int64 { return t.offset }

// ProcessExisting replays up to the last backlogLines lines of the file and
// positions the offset at the current end. A missing file is not an error;
// the tailer starts at offset zero and picks the file up when it appears.
func (t *Tailer) ProcessExisting(ctx context.Context) error {
	f, err := os.Open(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			t.offset = 0
			t.primed = true
			return nil
		}
		return fmt.Errorf("failed to open %s: %w", t.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", t.path, err)
	}

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > backlogLines {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", t.path, err)
	}

	t.processLines(ctx, lines)
	t.offset = info.Size()
	t.primed = true
	return nil
}

// prime positions the offset at the file's current end so history written
// before watching started is never read. A missing file primes at offset
// zero: anything that appears afterwards is new.
func (t *Tailer) prime() error {
	info, err := os.Stat(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			t.offset = 0
			t.primed = true
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", t.path, err)
	}

	t.offset = info.Size()
	t.primed = true
	return nil
}

// Poll performs one tick of the offset state machine:
//
//	first tick          -> offset positioned at the current end, nothing read
//	file missing        -> offset reset to 0, nothing read
//	size < offset       -> rotation/truncation, offset reset to 0, nothing read
//	size == offset      -> nothing to do
//	size > offset       -> read and process the appended region
//
// Only complete lines are consumed; a trailing partial line stays in the
// file until a later tick sees its newline.
func (t *Tailer) Poll(ctx context.Context) error {
	if !t.primed {
		return t.prime()
	}

	info, err := os.Stat(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if t.offset != 0 {
				t.log.InfoContext(ctx, "monitored file disappeared, resetting offset")
				t.offset = 0
			}
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", t.path, err)
	}

	size := info.Size()
	switch {
	case size < t.offset:
		metrics.Rotations.WithLabelValues(t.parser.Name()).Inc()
		t.log.InfoContext(ctx, "file truncated, resetting offset",
			logging.Offset(t.offset))
		t.offset = 0
		return nil
	case size == t.offset:
		return nil
	}

	f, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", t.path, err)
	}
	defer f.Close()

	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek %s: %w", t.path, err)
	}

	data, err := io.ReadAll(io.LimitReader(f, size-t.offset))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", t.path, err)
	}

	// Consume only up to the last newline so a half-written line is left
	// for the next tick.
	end := strings.LastIndexByte(string(data), '\n')
	if end < 0 {
		return nil
	}

	lines := strings.Split(string(data[:end]), "\n")
	t.processLines(ctx, lines)
	t.offset += int64(end + 1)

	return nil
}

// processLines runs each line through the parser. A line that fails to
// persist is logged and skipped; one bad line never blocks the rest of the
// batch.
func (t *Tailer) processLines(ctx context.Context, lines []string) {
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		metrics.LinesRead.WithLabelValues(t.parser.Name()).Inc()

		matched, err := t.parser.ProcessLine(ctx, line)
		if err != nil {
			metrics.StorageErrors.WithLabelValues(t.parser.Name()).Inc()
			t.log.ErrorContext(ctx, "failed to process line", logging.Error(err))
			continue
		}
		if !matched {
			metrics.ParseMisses.WithLabelValues(t.parser.Name()).Inc()
		}
	}
}
