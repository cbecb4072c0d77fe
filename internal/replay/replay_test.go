package replay

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/vovakirdan/quaternion/internal/config"
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/match"
)

func tables(t *testing.T) *config.Tables {
	t.Helper()
	tb, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}
	return tb
}

// record plays a short match into a journal and returns its path.
func record(t *testing.T, frames int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "match.jsonl.zst")
	w, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}

	cfg := core.DefaultMatchConfig()
	cfg.Seed = 99
	m, err := match.New(cfg, tables(t), match.WithRecorder(w))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteHeader(HeaderFor("m-99", m)); err != nil {
		t.Fatal(err)
	}
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer m.Cleanup()

	for i := 0; i < frames && !m.Over(); i++ {
		switch i {
		case 30:
			m.Submit(core.PlayerAction{
				Type:       core.ActionBuild,
				ActorID:    "player-1",
				SequenceNo: 1,
				Payload:    core.ActionPayload{Building: "extractor"},
			})
		case 100:
			m.Pause()
		case 110:
			m.Resume()
		}
		delta := 1.0 / 30
		if i%97 == 0 {
			delta = 0.4 // clamped, drops ticks
		}
		if _, err := m.Advance(delta); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.RecordError(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestJournalRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "j.zst")
	w, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.RecordFrame(match.Frame{Frame: 1}); !errors.Is(err, ErrNoHeader) {
		t.Fatalf("frame before header err = %v", err)
	}

	cfg := core.DefaultMatchConfig()
	if err := w.WriteHeader(Header{Version: Version, MatchID: "x", Config: cfg, Tables: tables(t)}); err != nil {
		t.Fatal(err)
	}
	frames := []match.Frame{
		{Frame: 1, WallDelta: 0.016, Ticks: []match.TickRecord{{Tick: 1, Digest: "aa"}}},
		{Frame: 2, WallDelta: 0.02, Paused: true},
		{Frame: 3, WallDelta: 0.016, Joins: []core.PlayerID{"p"}, Actions: []core.PlayerAction{{Type: core.ActionMove, ActorID: "p", SequenceNo: 1}}},
	}
	for _, f := range frames {
		if err := w.RecordFrame(f); err != nil {
			t.Fatal(err)
		}
	}
	if w.Frames() != 3 {
		t.Fatalf("frames = %d", w.Frames())
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if h := r.Header(); h.MatchID != "x" || h.Config != cfg {
		t.Fatalf("header = %+v", h)
	}
	for i := range frames {
		f, err := r.Next()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if f.Frame != frames[i].Frame || f.Paused != frames[i].Paused || len(f.Ticks) != len(frames[i].Ticks) || len(f.Actions) != len(frames[i].Actions) {
			t.Fatalf("frame %d = %+v", i, f)
		}
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("after last frame err = %v", err)
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not zstd", []byte("{\"version\":1}\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.zst")
			if err := os.WriteFile(path, tt.data, 0o644); err != nil {
				t.Fatal(err)
			}
			if r, err := Open(path); err == nil {
				r.Close()
				t.Fatal("garbage journal opened")
			}
		})
	}
}

func TestVerifyReproduces(t *testing.T) {
	path := record(t, 900)

	rep, err := Verify(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if !rep.OK() {
		t.Fatalf("diverged: %s", rep.Divergence)
	}
	if rep.MatchID != "m-99" || rep.Frames != 900 || rep.Ticks == 0 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestVerifyFindsTamperedTick(t *testing.T) {
	src := record(t, 120)

	r, err := Open(src)
	if err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(t.TempDir(), "tampered.zst")
	w, err := Create(dst)
	if err != nil {
		t.Fatal(err)
	}
	w.WriteHeader(r.Header())

	var tamperedTick uint64
	for {
		f, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if f.Frame == 60 && len(f.Ticks) > 0 {
			f.Ticks[0].Digest = "0000"
			tamperedTick = f.Ticks[0].Tick
		}
		w.RecordFrame(f)
	}
	r.Close()
	w.Close()
	if tamperedTick == 0 {
		t.Fatal("frame 60 ran no ticks")
	}

	rep, err := Verify(context.Background(), dst)
	if err != nil {
		t.Fatal(err)
	}
	if rep.OK() {
		t.Fatal("tampered journal verified")
	}
	if rep.Divergence.Frame != 60 || rep.Divergence.Tick != tamperedTick || rep.Divergence.Want != "0000" {
		t.Fatalf("divergence = %+v", rep.Divergence)
	}
}

func TestVerifyHonoursCancel(t *testing.T) {
	path := record(t, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Verify(ctx, path); err == nil {
		t.Fatal("cancelled verify succeeded")
	}
}
