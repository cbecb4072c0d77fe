package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vovakirdan/quaternion/internal/config"
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/match"
	"github.com/vovakirdan/quaternion/internal/room"
	"github.com/vovakirdan/quaternion/internal/sim"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newLocal(t *testing.T, tables *config.Tables, mode core.Mode, onEnd func(sim.EndgameScenario)) (*match.Match, Model) {
	t.Helper()
	cfg := core.DefaultMatchConfig()
	cfg.Mode = mode
	m, err := match.New(cfg, tables, match.WithoutSubsystems(), match.WithoutEconomy())
	if err != nil {
		t.Fatalf("match.New: %v", err)
	}
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(m.Cleanup)
	return m, NewModel(NewLocalSource(m, onEnd), tables, 60)
}

func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return model
}

func keyMsg(k string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func TestTicksAdvanceByWallTime(t *testing.T) {
	_, model := newLocal(t, defaultTables(t), core.ModeSingle, nil)

	model = send(t, model, TickMsg(t0))
	if model.view.State == nil || model.view.State.Tick != 0 {
		t.Fatalf("first frame has no elapsed time, state = %+v", model.view.State)
	}

	model = send(t, model, TickMsg(t0.Add(55*time.Millisecond)))
	if got := model.view.State.Tick; got != 3 {
		t.Errorf("tick after 55ms = %d, want 3", got)
	}

	// 110ms of backlog holds six steps; the frame-skip cap runs five and
	// drops the rest.
	model = send(t, model, TickMsg(t0.Add(160*time.Millisecond)))
	if got := model.view.State.Tick; got != 8 {
		t.Errorf("tick after a 105ms frame = %d, want 8", got)
	}
	tel := model.view.Telemetry
	if tel == nil || tel.Ticks != 8 || tel.DroppedTicks != 1 {
		t.Errorf("telemetry = %+v, want 8 ticks with 1 dropped", tel)
	}
}

func TestKeysSubmitActions(t *testing.T) {
	_, model := newLocal(t, defaultTables(t), core.ModeSingle, nil)
	model = send(t, model, TickMsg(t0))

	model = send(t, model, keyMsg("4"))
	model = send(t, model, keyMsg("m"))
	if model.notice != "" {
		t.Fatalf("notice = %q", model.notice)
	}
	model = send(t, model, TickMsg(t0.Add(50*time.Millisecond)))

	p := model.view.State.Player("player-1")
	if p.Garrison != moveUnits {
		t.Errorf("garrison = %d, want %d", p.Garrison, moveUnits)
	}
	found := false
	for _, job := range p.Construction {
		if job.Building == "extractor" {
			found = true
		}
	}
	if !found {
		t.Errorf("construction = %+v, want an extractor", p.Construction)
	}
	if p.LastSequence != 2 {
		t.Errorf("last sequence = %d, want 2", p.LastSequence)
	}
}

func TestFocusPausesMatch(t *testing.T) {
	m, model := newLocal(t, defaultTables(t), core.ModeSingle, nil)

	model = send(t, model, tea.BlurMsg{})
	if !m.Paused() {
		t.Fatal("blur should pause")
	}
	model = send(t, model, tea.FocusMsg{})
	if m.Paused() {
		t.Fatal("focus should resume")
	}

	model = send(t, model, keyMsg("p"))
	model = send(t, model, tea.BlurMsg{})
	model = send(t, model, tea.FocusMsg{})
	if !m.Paused() {
		t.Error("focus must not resume a player pause")
	}
	model = send(t, model, keyMsg("p"))
	if m.Paused() {
		t.Error("second p should resume")
	}
}

func TestTheaterTakesNoKeys(t *testing.T) {
	_, model := newLocal(t, defaultTables(t), core.ModeTheater, nil)
	model = send(t, model, TickMsg(t0))

	model = send(t, model, keyMsg("m"))
	if model.notice != match.ErrSpectator.Error() {
		t.Errorf("notice = %q, want spectator error", model.notice)
	}
	if !strings.Contains(model.View(), "spectating") {
		t.Error("header should say spectating")
	}
}

func TestEndgameShownOnce(t *testing.T) {
	tables := defaultTables(t).Clone()
	tables.Start.BaseHP = 1

	var ends []sim.EndgameScenario
	_, model := newLocal(t, tables, core.ModeSingle, func(sc sim.EndgameScenario) {
		ends = append(ends, sc)
	})
	model = send(t, model, TickMsg(t0))
	model = send(t, model, keyMsg("m"))
	model = send(t, model, keyMsg("a"))
	model = send(t, model, TickMsg(t0.Add(50*time.Millisecond)))
	model = send(t, model, TickMsg(t0.Add(100*time.Millisecond)))

	if len(ends) != 1 {
		t.Fatalf("onEnd called %d times, want 1", len(ends))
	}
	if ends[0].Winner != "player-1" || ends[0].Track != sim.TrackElimination {
		t.Errorf("endgame = %+v", ends[0])
	}
	if !strings.Contains(model.View(), "VICTORY") {
		t.Error("view should announce the victory")
	}

	model = send(t, model, keyMsg("m"))
	if model.notice != "" {
		t.Errorf("keys after the end should be ignored, notice = %q", model.notice)
	}
}

func TestUnavailableCommandLeavesNotice(t *testing.T) {
	_, model := newLocal(t, defaultTables(t), core.ModeSingle, nil)
	model = send(t, model, TickMsg(t0))

	model = send(t, model, keyMsg("z"))
	if model.notice != "nothing to answer" {
		t.Errorf("notice = %q", model.notice)
	}
}

func TestDiagnosticsOverlay(t *testing.T) {
	_, model := newLocal(t, defaultTables(t), core.ModeSingle, nil)
	model = send(t, model, TickMsg(t0))
	model = send(t, model, keyMsg("d"))

	if !model.showDiag || !strings.Contains(model.View(), "Diagnostics") {
		t.Error("d should show the diagnostics overlay")
	}
}

func TestRoomSource(t *testing.T) {
	tables := defaultTables(t)
	cfg := core.DefaultMatchConfig()
	cfg.Mode = core.ModeMultiplayer
	cfg.RoomID = "lobby"
	cfg.PlayerID = ""
	r, err := room.New(context.Background(), room.DefaultConfig(cfg, tables),
		room.WithMatchOptions(match.WithoutSubsystems(), match.WithoutEconomy()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.Close)

	src := NewRoomSource(r, "s1", "alice")
	step := func(n int) {
		for range n {
			if _, err := r.Step(1.0 / 60); err != nil {
				t.Fatal(err)
			}
		}
	}
	step(6)

	v, err := src.Advance(0)
	if err != nil {
		t.Fatal(err)
	}
	if v.State == nil || v.State.Player("alice") == nil {
		t.Fatalf("snapshot missing alice: %+v", v.State)
	}
	if len(v.Feed) == 0 || !strings.Contains(v.Feed[0], "joined room lobby") {
		t.Errorf("feed = %v", v.Feed)
	}

	if err := src.Submit(moveAction(3)); err != nil {
		t.Fatal(err)
	}
	step(6)
	v, _ = src.Advance(0)
	if got := v.State.Player("alice").Garrison; got != 3 {
		t.Errorf("garrison = %d, want 3", got)
	}

	src.Pause()
	step(6)
	if v, _ = src.Advance(0); v.State.Tick == 0 {
		t.Error("a session cannot pause the room")
	}

	r.Close()
	if _, err := src.Advance(0); !errors.Is(err, room.ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
	if err := src.Submit(moveAction(1)); !errors.Is(err, room.ErrClosed) {
		t.Errorf("submit err = %v, want ErrClosed", err)
	}
	src.Close()
	src.Close()
}
