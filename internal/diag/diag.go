// Package diag keeps recent diagnostics in a bounded in-memory ring. The
// host owns its lifecycle: Init before the first logger is built, Drain
// when it wants to show or persist what was collected.
package diag

import (
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// DefaultCapacity is the ring size used when Init is given zero.
const DefaultCapacity = 512

// Ring is an io.Writer that keeps the last N lines written to it.
type Ring struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

// NewRing creates a ring holding up to capacity lines.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Ring{lines: make([]string, capacity)}
}

// Write stores every non-empty line in p, evicting the oldest.
func (r *Ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, line := range strings.Split(string(p), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		r.lines[r.next] = line
		r.next = (r.next + 1) % len(r.lines)
		if r.next == 0 {
			r.full = true
		}
	}
	return len(p), nil
}

// Lines returns the stored lines, oldest first.
func (r *Ring) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

// Drain returns the stored lines and empties the ring.
func (r *Ring) Drain() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.snapshot()
	clear(r.lines)
	r.next, r.full = 0, false
	return out
}

// Len returns the number of stored lines.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.lines)
	}
	return r.next
}

func (r *Ring) snapshot() []string {
	if !r.full {
		return append([]string(nil), r.lines[:r.next]...)
	}
	out := make([]string, 0, len(r.lines))
	out = append(out, r.lines[r.next:]...)
	return append(out, r.lines[:r.next]...)
}

var (
	mu     sync.Mutex
	global *Ring
)

// Init installs a fresh process-wide ring and returns it. Anything
// collected by a previous ring is discarded.
func Init(capacity int) *Ring {
	mu.Lock()
	defer mu.Unlock()
	global = NewRing(capacity)
	return global
}

// Drain empties the process-wide ring. It returns nil before Init.
func Drain() []string {
	mu.Lock()
	r := global
	mu.Unlock()
	if r == nil {
		return nil
	}
	return r.Drain()
}

// Lines returns the contents of the process-wide ring without clearing it.
func Lines() []string {
	mu.Lock()
	r := global
	mu.Unlock()
	if r == nil {
		return nil
	}
	return r.Lines()
}

// Options configures NewLogger.
type Options struct {
	Prefix string
	Level  log.Level
	// Echo also writes every entry here, typically os.Stderr.
	Echo io.Writer
}

// NewLogger builds a logger that writes to the process-wide ring and to
// Echo. With neither available it discards everything.
func NewLogger(opts Options) *log.Logger {
	mu.Lock()
	r := global
	mu.Unlock()

	var sinks []io.Writer
	if r != nil {
		sinks = append(sinks, r)
	}
	if opts.Echo != nil {
		sinks = append(sinks, opts.Echo)
	}
	var w io.Writer = io.Discard
	switch len(sinks) {
	case 1:
		w = sinks[0]
	case 2:
		w = io.MultiWriter(sinks...)
	}

	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          opts.Prefix,
		Level:           opts.Level,
	})
}

// ParseLevel converts a CLI level name, defaulting to info.
func ParseLevel(name string) (log.Level, error) {
	if name == "" {
		return log.InfoLevel, nil
	}
	return log.ParseLevel(name)
}
