// Package replay records matches frame by frame into a zstd-compressed
// JSONL journal and re-runs them to check that every tick reproduces.
package replay

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/vovakirdan/quaternion/internal/config"
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/match"
)

// Version is the journal format version.
const Version = 1

var (
	// ErrNoHeader is returned when a frame is recorded before the header.
	ErrNoHeader = errors.New("replay: header not written")
	// ErrBadJournal is returned for journals that cannot be decoded.
	ErrBadJournal = errors.New("replay: malformed journal")
)

// Header is the first line of a journal: everything needed to rebuild the
// match before any frame is fed to it.
type Header struct {
	Version int              `json:"version"`
	MatchID string           `json:"match_id"`
	Config  core.MatchConfig `json:"config"`
	Tables  *config.Tables   `json:"tables"`
	Start   time.Time        `json:"start"`
	Economy bool             `json:"economy"`
	Created time.Time        `json:"created"`
}

// HeaderFor describes m. It must be taken before the first frame.
func HeaderFor(matchID string, m *match.Match) Header {
	return Header{
		Version: Version,
		MatchID: matchID,
		Config:  m.Config(),
		Tables:  m.Tables(),
		Start:   m.Start(),
		Economy: m.EconomyEnabled(),
		Created: time.Now().UTC(),
	}
}

// Writer appends frames to a journal. It implements match.FrameRecorder.
type Writer struct {
	mu     sync.Mutex
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
	header bool
	frames uint64
}

var _ match.FrameRecorder = (*Writer)(nil)

// Create opens a new journal at path, replacing any existing file.
func Create(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("replay: cannot create directory %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("replay: cannot create journal: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("replay: %w", err)
	}
	return &Writer{f: f, enc: enc, w: bufio.NewWriterSize(enc, 128*1024)}, nil
}

// WriteHeader writes the journal header. It may only be called once.
func (w *Writer) WriteHeader(h Header) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.header {
		return errors.New("replay: header already written")
	}
	if h.Tables == nil {
		return errors.New("replay: header needs tables")
	}
	if err := w.writeLocked(h); err != nil {
		return err
	}
	w.header = true
	return nil
}

// RecordFrame appends one frame.
func (w *Writer) RecordFrame(f match.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.header {
		return ErrNoHeader
	}
	if err := w.writeLocked(f); err != nil {
		return err
	}
	w.frames++
	return nil
}

// Frames returns how many frames were recorded.
func (w *Writer) Frames() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

func (w *Writer) writeLocked(v any) error {
	if w.w == nil {
		return errors.New("replay: journal closed")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("replay: encode: %w", err)
	}
	if _, err := w.w.Write(b); err != nil {
		return fmt.Errorf("replay: write: %w", err)
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("replay: write: %w", err)
	}
	return nil
}

// Close flushes and closes the journal.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	errFlush := w.w.Flush()
	errEnc := w.enc.Close()
	errFile := w.f.Close()
	w.w, w.enc, w.f = nil, nil, nil
	return errors.Join(errFlush, errEnc, errFile)
}

// Reader reads a journal frame by frame.
type Reader struct {
	f      *os.File
	dec    *zstd.Decoder
	sc     *bufio.Scanner
	header Header
	line   int
}

// Open opens a journal and reads its header.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replay: cannot open journal: %w", err)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("replay: %w", err)
	}
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	r := &Reader{f: f, dec: dec, sc: sc}
	if err := r.readHeader(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) readHeader() error {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrBadJournal, err)
		}
		return fmt.Errorf("%w: empty journal", ErrBadJournal)
	}
	r.line++
	if err := json.Unmarshal(r.sc.Bytes(), &r.header); err != nil {
		return fmt.Errorf("%w: header: %v", ErrBadJournal, err)
	}
	if r.header.Version != Version {
		return fmt.Errorf("%w: version %d, want %d", ErrBadJournal, r.header.Version, Version)
	}
	if r.header.Tables == nil {
		return fmt.Errorf("%w: header has no tables", ErrBadJournal)
	}
	if err := r.header.Tables.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrBadJournal, err)
	}
	return nil
}

// Header returns the journal header.
func (r *Reader) Header() Header { return r.header }

// Next returns the next frame, or io.EOF after the last one.
func (r *Reader) Next() (match.Frame, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return match.Frame{}, fmt.Errorf("%w: line %d: %v", ErrBadJournal, r.line+1, err)
		}
		return match.Frame{}, io.EOF
	}
	r.line++
	var f match.Frame
	if err := json.Unmarshal(r.sc.Bytes(), &f); err != nil {
		return match.Frame{}, fmt.Errorf("%w: line %d: %v", ErrBadJournal, r.line, err)
	}
	return f, nil
}

// Close releases the journal.
func (r *Reader) Close() error {
	r.dec.Close()
	return r.f.Close()
}
