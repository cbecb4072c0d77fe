package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/economy"
	"github.com/vovakirdan/quaternion/internal/orchestrator"
	"github.com/vovakirdan/quaternion/internal/scheduler"
	"github.com/vovakirdan/quaternion/internal/sim"
)

// hooks adapts Match to scheduler.Hooks without exporting the callbacks.
type hooks Match

var (
	_ scheduler.Hooks     = (*hooks)(nil)
	_ scheduler.FrameHook = (*hooks)(nil)
)

func (h *hooks) Initialize(ctx context.Context) error {
	m := (*Match)(h)
	if err := ctx.Err(); err != nil {
		return err
	}

	orch, err := orchestrator.FromRegistry(m.subsystemEnv(), m.tables.SubsystemNames(), m.start,
		orchestrator.WithLogger(m.log.WithPrefix("orchestrator")))
	if err != nil {
		return err
	}
	m.orch = orch

	if !m.noEconomy {
		opts := []economy.Option{
			economy.WithLogger(m.log.WithPrefix("economy")),
			economy.WithDifficulty(m.diff),
		}
		if m.cfg.Mode == core.ModePuzzle {
			opts = append(opts, economy.WithPuzzleFrequency(2))
		}
		m.econ = economy.New(m.tables, m.world, opts...)
		m.econ.Initialize(m.cfg.Seed, m.start)
	}

	m.log.Info("match ready",
		"mode", m.cfg.Mode,
		"seed", m.cfg.Seed,
		"map", m.cfg.MapType,
		"difficulty", m.diff.Name,
		"subsystems", len(m.orch.Status()),
		"economy", m.econ != nil)
	return nil
}

// BeginFrame advances the wall clock and opens a frame record. Input that
// arrived since the previous frame is sealed into its own batch.
func (h *hooks) BeginFrame(wallDelta float64, paused bool) {
	m := (*Match)(h)
	if !paused {
		m.wall = m.wall.Add(time.Duration(wallDelta * float64(time.Second)))
	}
	if m.econ != nil {
		m.econ.Advance(m.wall)
	}

	m.inboxMu.Lock()
	actions, joins := m.inbox, m.joins
	m.inbox, m.joins = nil, nil
	m.world.SealBatch()
	m.inboxMu.Unlock()

	m.frameNo++
	if m.recorder != nil {
		m.frame = &Frame{
			Frame:     m.frameNo,
			WallDelta: wallDelta,
			Paused:    paused,
			Joins:     joins,
			Actions:   actions,
		}
	}
}

func (h *hooks) FixedUpdate(dt float64) error {
	m := (*Match)(h)
	if err := m.world.Tick(dt); err != nil {
		if errors.Is(err, sim.ErrMatchOver) || errors.Is(err, sim.ErrClosed) {
			return scheduler.ErrHalt
		}
		return err
	}

	state := m.world.State()
	for _, r := range m.world.DrainRejections() {
		m.notes.publish(Notification{Kind: NotifyRejection, Tick: r.Tick, Rejection: &r})
	}

	sc := m.eval.Evaluate(state, dt)
	if sc != nil {
		if err := m.world.Conclude(*sc); err != nil {
			return err
		}
	}
	if m.frame != nil {
		m.frame.Ticks = append(m.frame.Ticks, TickRecord{Tick: state.Tick, Digest: m.world.Digest()})
	}
	if sc != nil {
		end, _ := m.Endgame()
		m.log.Info("match over",
			"outcome", end.Outcome,
			"track", end.Track,
			"winner", end.Winner,
			"tick", end.Tick,
			"elapsed", fmt.Sprintf("%.1fs", end.Elapsed))
		m.notes.publish(Notification{Kind: NotifyEndgame, Tick: end.Tick, Endgame: end})
		return scheduler.ErrHalt
	}
	return nil
}

// Render polls the subsystems and the economy against the wall clock and
// applies everything they propose as one batch. Both read the same
// snapshot.
func (h *hooks) Render(alpha float64) {
	m := (*Match)(h)
	m.alpha = alpha
	defer h.endFrame()

	state := m.world.State()
	if state.GameOver || m.orch == nil {
		return
	}

	var snap *sim.WorldState
	snapshot := func() *sim.WorldState {
		if snap == nil {
			snap = m.world.Snapshot()
		}
		return snap
	}

	effects := m.orch.Collect(m.wall, snapshot)
	if m.econ != nil && m.econ.Due(m.wall) {
		effects = append(effects, m.econ.Update(m.wall, snapshot())...)
	}
	if len(effects) > 0 {
		applied, dropped := m.world.ApplyEffects(effects)
		for _, e := range applied {
			m.notes.publish(Notification{Kind: NotifyEffect, Tick: state.Tick, Effect: e})
		}
		for _, d := range dropped {
			m.log.Debug("effect dropped", "kind", d.Effect.Kind(), "source", d.Effect.Origin(), "err", d.Err)
		}
	}

	for _, a := range m.orch.PlannedActions() {
		m.world.Enqueue(a)
	}
}

func (h *hooks) endFrame() {
	m := (*Match)(h)
	if m.frame == nil {
		return
	}
	f := *m.frame
	m.frame = nil
	if err := m.recorder.RecordFrame(f); err != nil && m.recordErr == nil {
		m.recordErr = err
		m.log.Error("frame recording failed", "frame", f.Frame, "err", err)
	}
}

func (h *hooks) Cleanup() {
	m := (*Match)(h)
	m.world.Close()
	m.log.Debug("match closed", "frames", m.frameNo)
}

func (h *hooks) OnError(err error) {
	m := (*Match)(h)
	m.log.Warn("tick failed", "err", err)
	m.notes.publish(Notification{Kind: NotifyError, Tick: m.world.State().Tick, Error: err.Error()})
}

func (m *Match) handleAllocate(a core.PlayerAction) error {
	if m.econ == nil {
		return fmt.Errorf("%w: economy disabled", sim.ErrNoHandler)
	}
	res, err := m.econ.ExecuteAllocationDecision(a.ActorID, a.Payload.PuzzleID, a.Payload.OptionID)
	if err != nil {
		return err
	}
	m.notes.publish(Notification{Kind: NotifyDecision, Tick: m.world.State().Tick, Decision: &res})
	return nil
}

func (m *Match) handleMarketOffer(a core.PlayerAction) error {
	if m.econ == nil {
		return fmt.Errorf("%w: offer %s", sim.ErrInvalidAction, a.Payload.OfferID)
	}
	res, err := m.econ.AcceptMarketOffer(a.ActorID, a.Payload.OfferID)
	if err != nil {
		return err
	}
	m.notes.publish(Notification{Kind: NotifyDecision, Tick: m.world.State().Tick, Decision: &res})
	return nil
}
