// Package logsink provides the advisory diagnostic log sink used by the
// store and the CLI (spec.md §6.4). It is never consulted for recovery or
// validity decisions.
package logsink

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/natefinch/atomic"
)

// Sink accumulates timestamped lines and flushes the whole file atomically,
// the same replace-don't-append technique the teacher pack uses for its
// cache file (see cache_binary.go's atomic.WriteFile call).
type Sink struct {
	path string

	mu    sync.Mutex
	lines []string
}

// New returns a Sink that flushes to path. The file is not created until
// the first Logf or Flush call.
func New(path string) *Sink {
	return &Sink{path: path}
}

// Logf formats and buffers one diagnostic line, then flushes the whole
// buffer to disk. Flush errors are swallowed: logging must never cause an
// operation to fail (spec.md §6.4 — advisory only).
func (s *Sink) Logf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := fmt.Sprintf("%s %s", time.Now().Format(time.RFC3339Nano), fmt.Sprintf(format, args...))
	s.lines = append(s.lines, line)

	_ = s.flushLocked()
}

// Flush rewrites the log file from the current in-memory buffer.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.flushLocked()
}

func (s *Sink) flushLocked() error {
	var buf bytes.Buffer

	for _, line := range s.lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}

	return atomic.WriteFile(s.path, &buf)
}
