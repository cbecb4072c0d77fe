package replay

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/vovakirdan/quaternion/internal/match"
	"github.com/vovakirdan/quaternion/internal/sim"
)

// Divergence is the first tick whose digest did not reproduce.
type Divergence struct {
	Frame uint64 `json:"frame"`
	Tick  uint64 `json:"tick"`
	Want  string `json:"want"`
	Got   string `json:"got"`
}

func (d Divergence) String() string {
	return fmt.Sprintf("frame %d tick %d: want %s got %s", d.Frame, d.Tick, short(d.Want), short(d.Got))
}

// Report summarises a verification run.
type Report struct {
	MatchID    string               `json:"match_id"`
	Frames     int                  `json:"frames"`
	Ticks      int                  `json:"ticks"`
	Divergence *Divergence          `json:"divergence,omitempty"`
	Endgame    *sim.EndgameScenario `json:"endgame,omitempty"`
}

// OK reports whether every tick reproduced.
func (r Report) OK() bool { return r.Divergence == nil }

// lastFrame keeps the most recent frame of the re-run.
type lastFrame struct{ f match.Frame }

func (l *lastFrame) RecordFrame(f match.Frame) error {
	l.f = f
	return nil
}

// Verify rebuilds the match described by the journal at path, feeds it
// every recorded frame and compares tick digests. It stops at the first
// divergence, which is reported rather than returned as an error.
func Verify(ctx context.Context, path string, opts ...match.Option) (Report, error) {
	r, err := Open(path)
	if err != nil {
		return Report{}, err
	}
	defer r.Close()

	h := r.Header()
	rep := Report{MatchID: h.MatchID}

	var got lastFrame
	opts = append(opts, match.WithStart(h.Start), match.WithRecorder(&got))
	if !h.Economy {
		opts = append(opts, match.WithoutEconomy())
	}
	m, err := match.New(h.Config, h.Tables, opts...)
	if err != nil {
		return rep, fmt.Errorf("replay: rebuild match: %w", err)
	}
	if err := m.Initialize(ctx); err != nil {
		return rep, fmt.Errorf("replay: rebuild match: %w", err)
	}
	defer m.Cleanup()

	for {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		want, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rep, err
		}

		for _, id := range want.Joins {
			if err := m.Join(id); err != nil {
				return rep, fmt.Errorf("replay: frame %d: join %s: %w", want.Frame, id, err)
			}
		}
		if len(want.Actions) > 0 {
			if err := m.Submit(want.Actions...); err != nil {
				return rep, fmt.Errorf("replay: frame %d: %w", want.Frame, err)
			}
		}
		if want.Paused {
			m.Pause()
		} else {
			m.Resume()
		}
		if _, err := m.Advance(want.WallDelta); err != nil {
			return rep, fmt.Errorf("replay: frame %d: %w", want.Frame, err)
		}

		rep.Frames++
		if d := compare(want, got.f); d != nil {
			rep.Divergence = d
			return rep, nil
		}
		rep.Ticks += len(want.Ticks)
	}

	if end, ok := m.Endgame(); ok {
		rep.Endgame = end
	}
	return rep, nil
}

func compare(want, got match.Frame) *Divergence {
	n := max(len(want.Ticks), len(got.Ticks))
	for i := range n {
		var w, g match.TickRecord
		if i < len(want.Ticks) {
			w = want.Ticks[i]
		}
		if i < len(got.Ticks) {
			g = got.Ticks[i]
		}
		if w != g {
			tick := w.Tick
			if tick == 0 {
				tick = g.Tick
			}
			return &Divergence{Frame: want.Frame, Tick: tick, Want: w.Digest, Got: g.Digest}
		}
	}
	return nil
}

func short(digest string) string {
	if digest == "" {
		return "(none)"
	}
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
