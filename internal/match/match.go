// Package match composes one playable match: the world, the fixed-timestep
// scheduler, the win evaluator, the AI orchestrator and the economy. It is
// the only package that knows all of them.
package match

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vovakirdan/quaternion/internal/config"
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/economy"
	"github.com/vovakirdan/quaternion/internal/orchestrator"
	"github.com/vovakirdan/quaternion/internal/registry"
	"github.com/vovakirdan/quaternion/internal/scheduler"
	"github.com/vovakirdan/quaternion/internal/sim"
	"github.com/vovakirdan/quaternion/internal/victory"

	// Registers the AI subsystems.
	_ "github.com/vovakirdan/quaternion/internal/ai"
)

var (
	// ErrSpectator is returned when input is submitted to a theater match.
	ErrSpectator = errors.New("match: theater matches take no player input")
	// ErrJoinClosed is returned by Join outside multiplayer matches.
	ErrJoinClosed = errors.New("match: only multiplayer matches accept joins")
)

// Epoch is the default origin of a match's wall clock. Cadences only depend
// on elapsed wall time, so a fixed origin keeps replays identical.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Option configures a Match.
type Option func(*Match)

// WithLogger sets the logger handed to every component.
func WithLogger(l *log.Logger) Option {
	return func(m *Match) { m.log = l }
}

// WithClock sets the clock the scheduler uses for telemetry.
func WithClock(c scheduler.Clock) Option {
	return func(m *Match) { m.clock = c }
}

// WithStart sets the origin of the match's wall clock.
func WithStart(t time.Time) Option {
	return func(m *Match) { m.start = t }
}

// WithRecorder records every frame, for replays.
func WithRecorder(r FrameRecorder) Option {
	return func(m *Match) { m.recorder = r }
}

// WithoutSubsystems disables every AI subsystem.
func WithoutSubsystems() Option {
	return func(m *Match) { m.noSubsystems = true }
}

// WithoutEconomy disables shocks, puzzles, the market and the advisor.
func WithoutEconomy() Option {
	return func(m *Match) { m.noEconomy = true }
}

// WithNotificationBuffer sets how many notifications are kept for a slow
// consumer before the oldest are dropped.
func WithNotificationBuffer(n int) Option {
	return func(m *Match) { m.bufSize = n }
}

// Match is one running game. Submit is safe for concurrent use; every
// other method must be called from the goroutine that drives frames.
type Match struct {
	cfg    core.MatchConfig
	tables *config.Tables
	diff   config.Difficulty
	log    *log.Logger
	clock  scheduler.Clock

	world *sim.World
	loop  *scheduler.Loop
	eval  *victory.Evaluator
	orch  *orchestrator.Orchestrator
	econ  *economy.Economy

	start        time.Time
	wall         time.Time
	paused       bool
	alpha        float64
	noSubsystems bool
	noEconomy    bool
	bufSize      int
	notes        *notifier

	inboxMu sync.Mutex
	inbox   []core.PlayerAction
	joins   []core.PlayerID

	recorder  FrameRecorder
	frameNo   uint64
	frame     *Frame
	recordErr error
}

// New validates the configuration and builds a match ready to initialize.
// Any failure here is fatal: no partial match is created.
func New(cfg core.MatchConfig, tables *config.Tables, opts ...Option) (*Match, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if tables == nil {
		return nil, fmt.Errorf("match: tables are required")
	}
	diff, err := config.ParseDifficulty(cfg.AIDifficulty)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidConfig, err)
	}

	m := &Match{
		cfg:     cfg,
		tables:  tables,
		diff:    diff,
		log:     log.New(io.Discard),
		start:   Epoch,
		bufSize: 256,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.wall = m.start
	m.notes = newNotifier(m.bufSize)
	if m.noSubsystems {
		m.tables = tables.Clone()
		m.tables.DisableSubsystems()
	}

	m.world, err = sim.New(cfg, m.tables, sim.WithLogger(m.log.WithPrefix("sim")))
	if err != nil {
		return nil, err
	}
	m.eval = victory.New(m.tables.Victory)
	m.world.Handle(core.ActionAllocate, m.handleAllocate)
	m.world.Handle(core.ActionAcceptOffer, m.handleMarketOffer)

	if err := m.addInitialPlayers(); err != nil {
		return nil, err
	}

	sc := m.tables.Scheduler
	loopOpts := []scheduler.Option{scheduler.WithLogger(m.log.WithPrefix("scheduler"))}
	if m.clock != nil {
		loopOpts = append(loopOpts, scheduler.WithClock(m.clock))
	}
	m.loop, err = scheduler.New(scheduler.Config{
		FixedTimestep:  sc.FixedTimestep(),
		MaxDeltaTime:   sc.MaxDeltaTime,
		MaxFrameSkip:   sc.MaxFrameSkip,
		FrameBudget:    time.Duration(sc.FrameBudgetMs * float64(time.Millisecond)),
		QualityWindow:  sc.QualityWindow,
		ErrorThreshold: sc.ErrorThreshold,
		ErrorWindow:    time.Duration(sc.ErrorWindow * float64(time.Second)),
	}, (*hooks)(m), loopOpts...)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// addInitialPlayers creates the players the mode starts with.
func (m *Match) addInitialPlayers() error {
	var humans, ais []core.PlayerID
	switch m.cfg.Mode {
	case core.ModeSingle, core.ModeCampaign, core.ModePuzzle:
		humans = []core.PlayerID{m.cfg.PlayerID}
		ais = []core.PlayerID{"ai-1"}
	case core.ModeTheater:
		ais = []core.PlayerID{"ai-1", "ai-2"}
	case core.ModeMultiplayer:
		// Players arrive through Join.
	}
	for _, id := range humans {
		if err := m.world.AddPlayer(id, false); err != nil {
			return err
		}
	}
	for _, id := range ais {
		if err := m.world.AddPlayer(id, true); err != nil {
			return err
		}
	}
	return nil
}

// Initialize prepares the subsystems and the economy and arms the loop.
func (m *Match) Initialize(ctx context.Context) error {
	return m.loop.Initialize(ctx)
}

// Advance feeds one host frame's wall delta into the match and returns
// the number of ticks run.
func (m *Match) Advance(wallDelta float64) (int, error) {
	return m.loop.Advance(wallDelta)
}

// Run drives frames from a ticker until the match ends, fails, or ctx is
// cancelled.
func (m *Match) Run(ctx context.Context, frame time.Duration) error {
	return m.loop.Run(ctx, frame)
}

// Submit queues player actions for the next tick boundary.
func (m *Match) Submit(actions ...core.PlayerAction) error {
	if m.cfg.Mode == core.ModeTheater {
		return ErrSpectator
	}
	m.inboxMu.Lock()
	defer m.inboxMu.Unlock()
	for _, a := range actions {
		m.world.Enqueue(a)
		m.inbox = append(m.inbox, a)
	}
	return nil
}

// Join adds a human player to a multiplayer match.
func (m *Match) Join(id core.PlayerID) error {
	if m.cfg.Mode != core.ModeMultiplayer {
		return ErrJoinClosed
	}
	if err := m.world.AddPlayer(id, false); err != nil {
		return err
	}
	m.inboxMu.Lock()
	m.joins = append(m.joins, id)
	m.inboxMu.Unlock()
	m.log.Info("player joined", "player", id)
	return nil
}

// Pause suspends ticking and the wall clock. Frames still render.
func (m *Match) Pause() {
	m.loop.Pause()
	m.paused = m.loop.Paused()
}

// Resume continues after Pause without replaying the paused time.
func (m *Match) Resume() {
	m.loop.Resume()
	m.paused = m.loop.Paused()
}

// Paused reports whether the match is paused.
func (m *Match) Paused() bool { return m.paused }

// Cleanup stops the match. It is safe to call more than once.
func (m *Match) Cleanup() {
	m.loop.Cleanup()
}

// Done is closed by Cleanup.
func (m *Match) Done() <-chan struct{} { return m.loop.Done() }

// Config returns the match configuration.
func (m *Match) Config() core.MatchConfig { return m.cfg }

// Start returns the origin of the wall clock.
func (m *Match) Start() time.Time { return m.start }

// EconomyEnabled reports whether the economy runs in this match.
func (m *Match) EconomyEnabled() bool { return !m.noEconomy }

// Tables returns the data tables in use.
func (m *Match) Tables() *config.Tables { return m.tables }

// Difficulty returns the AI difficulty preset.
func (m *Match) Difficulty() config.Difficulty { return m.diff }

// Snapshot returns a copy of the world state.
func (m *Match) Snapshot() *sim.WorldState { return m.world.Snapshot() }

// Digest returns the digest of the current world state.
func (m *Match) Digest() string { return m.world.Digest() }

// Endgame returns the terminal scenario once the match is over.
func (m *Match) Endgame() (*sim.EndgameScenario, bool) {
	s := m.world.State()
	if !s.GameOver {
		return nil, false
	}
	sc := *s.Endgame
	return &sc, true
}

// Over reports whether the match has ended.
func (m *Match) Over() bool { return m.world.State().GameOver }

// Telemetry returns the scheduler's performance counters.
func (m *Match) Telemetry() scheduler.Telemetry { return m.loop.Telemetry() }

// Quality returns the adaptive quality signal.
func (m *Match) Quality() float64 { return m.loop.Quality() }

// Interpolation returns the render interpolation factor of the last frame.
func (m *Match) Interpolation() float64 { return m.alpha }

// WallClock returns the match's wall time: the start plus every unpaused
// frame delta.
func (m *Match) WallClock() time.Time { return m.wall }

// Notifications streams effects, rejections, decisions and the endgame.
func (m *Match) Notifications() <-chan Notification { return m.notes.ch }

// DroppedNotifications counts notifications discarded for a slow reader.
func (m *Match) DroppedNotifications() uint64 { return m.notes.droppedCount() }

// SubsystemStatus reports the AI subsystem schedule.
func (m *Match) SubsystemStatus() []orchestrator.Status {
	if m.orch == nil {
		return nil
	}
	return m.orch.Status()
}

// Economy exposes the economy's read-only views.
func (m *Match) Economy() EconomyView {
	return EconomyView{econ: m.econ}
}

// RecordError returns the first error reported by the frame recorder.
func (m *Match) RecordError() error { return m.recordErr }

// EconomyView is a read-only window onto the economy. Every method is
// safe on a match without an economy.
type EconomyView struct {
	econ *economy.Economy
}

func (v EconomyView) ActiveEvents() []economy.ResourceEvent {
	if v.econ == nil {
		return nil
	}
	return v.econ.ActiveEvents()
}

func (v EconomyView) ActivePuzzles() []economy.AllocationPuzzle {
	if v.econ == nil {
		return nil
	}
	return v.econ.ActivePuzzles()
}

func (v EconomyView) MarketOffers() []economy.MarketOffer {
	if v.econ == nil {
		return nil
	}
	return v.econ.MarketOffers()
}

func (v EconomyView) Advice(id core.PlayerID) (economy.AdvisorResponse, bool) {
	if v.econ == nil {
		return economy.AdvisorResponse{}, false
	}
	return v.econ.Advice(id)
}

func (m *Match) subsystemEnv() registry.Env {
	return registry.Env{
		Seed:       m.cfg.Seed,
		Tables:     m.tables,
		Difficulty: m.diff,
		MapType:    m.cfg.MapType,
		Log:        m.log.WithPrefix("ai"),
	}
}
