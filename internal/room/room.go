// Package room hosts one multiplayer match for many network sessions. The
// room loop is the only goroutine that touches the match: sessions talk to
// it through messages that are drained at frame boundaries.
package room

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/vovakirdan/quaternion/internal/config"
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/match"
	"github.com/vovakirdan/quaternion/internal/scheduler"
	"github.com/vovakirdan/quaternion/internal/sim"
)

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("room: closed")

// ResultSaver persists finished matches. The room works without one.
type ResultSaver interface {
	SaveMatchResult(matchID string, cfg core.MatchConfig, sc sim.EndgameScenario) (int64, error)
	SaveTelemetry(matchID string, tel scheduler.Telemetry) error
}

// Config holds the room settings.
type Config struct {
	Match              core.MatchConfig
	Tables             *config.Tables
	FrameInterval      time.Duration // Host frame period for Run
	SnapshotEvery      int           // Frames between snapshot broadcasts
	MaxActionsPerFrame int           // Per session; extra actions are refused
}

// DefaultConfig returns a room for the given match setup.
func DefaultConfig(cfg core.MatchConfig, tables *config.Tables) Config {
	return Config{
		Match:              cfg,
		Tables:             tables,
		FrameInterval:      time.Second / 60,
		SnapshotEvery:      6,
		MaxActionsPerFrame: 8,
	}
}

// Option configures a Room.
type Option func(*Room)

// WithLogger sets the room logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Room) { r.log = l }
}

// WithResultSaver stores the endgame and telemetry when the match ends.
func WithResultSaver(s ResultSaver) Option {
	return func(r *Room) { r.saver = s }
}

// WithMatchOptions passes options through to the match.
func WithMatchOptions(opts ...match.Option) Option {
	return func(r *Room) { r.matchOpts = append(r.matchOpts, opts...) }
}

// Room owns one multiplayer match and the sessions playing it.
type Room struct {
	cfg       Config
	matchID   string
	log       *log.Logger
	saver     ResultSaver
	matchOpts []match.Option

	match    *match.Match
	seats    *Seats
	msgs     chan message
	done     chan struct{}
	doneOnce sync.Once

	// Owned by the loop goroutine.
	seq   map[core.PlayerID]uint64
	frame uint64
	over  bool
}

// New builds and initializes a room. The match must be multiplayer.
func New(ctx context.Context, cfg Config, opts ...Option) (*Room, error) {
	if cfg.Match.Mode != core.ModeMultiplayer {
		return nil, fmt.Errorf("room: mode %s is not multiplayer", cfg.Match.Mode)
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = time.Second / 60
	}
	if cfg.SnapshotEvery < 1 {
		cfg.SnapshotEvery = 1
	}
	if cfg.MaxActionsPerFrame < 1 {
		cfg.MaxActionsPerFrame = 8
	}

	r := &Room{
		cfg:      cfg,
		matchID:  uuid.NewString(),
		log:      log.New(io.Discard),
		seats:    NewSeats(),
		msgs:     make(chan message, 256),
		done:     make(chan struct{}),
		seq:      make(map[core.PlayerID]uint64),
	}
	for _, opt := range opts {
		opt(r)
	}

	mopts := append([]match.Option{match.WithLogger(r.log)}, r.matchOpts...)
	m, err := match.New(cfg.Match, cfg.Tables, mopts...)
	if err != nil {
		return nil, err
	}
	if err := m.Initialize(ctx); err != nil {
		return nil, err
	}
	r.match = m
	r.log.Info("room open", "room", cfg.Match.RoomID, "match", r.matchID)
	return r, nil
}

// ID returns the room id.
func (r *Room) ID() string { return r.cfg.Match.RoomID }

// MatchID returns the id the result is stored under.
func (r *Room) MatchID() string { return r.matchID }

// Sessions returns the number of connected sessions.
func (r *Room) Sessions() int { return r.seats.Count() }

// Done is closed by Close.
func (r *Room) Done() <-chan struct{} { return r.done }

// Join seats a session as player. The player is created on first join;
// later joins with the same player id reattach to it.
func (r *Room) Join(s SessionHandle, player core.PlayerID) {
	r.send(joinMsg{session: s, player: player})
}

// Leave detaches a session. Its player stays in the match.
func (r *Room) Leave(id SessionID) {
	r.send(leaveMsg{session: id})
}

// Submit queues an action from a session. The room stamps the actor and
// the sequence number, so clients cannot act for someone else.
func (r *Room) Submit(id SessionID, a core.PlayerAction) {
	r.send(actionMsg{session: id, action: a})
}

func (r *Room) send(msg message) {
	select {
	case r.msgs <- msg:
	case <-r.done:
	}
}

// Run drives the room from a ticker until the match ends, ctx is
// cancelled or Close is called.
func (r *Room) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.FrameInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.done:
			return ErrClosed
		case now := <-ticker.C:
			delta := now.Sub(last).Seconds()
			last = now
			over, err := r.Step(delta)
			if err != nil {
				return err
			}
			if over {
				return nil
			}
		}
	}
}

// Step runs one host frame: pending session messages, then the match,
// then the broadcasts. It reports whether the match is over.
func (r *Room) Step(delta float64) (bool, error) {
	select {
	case <-r.done:
		return true, ErrClosed
	default:
	}
	if r.over {
		return true, nil
	}
	for _, id := range r.seats.Prune() {
		r.log.Info("session dropped", "session", id)
	}
	r.drainMessages()

	if _, err := r.match.Advance(delta); err != nil {
		r.seats.Broadcast(ErrorEvent{Message: err.Error()})
		return false, fmt.Errorf("room %s: %w", r.ID(), err)
	}
	r.frame++
	r.publish()

	if r.frame%uint64(r.cfg.SnapshotEvery) == 0 || r.match.Over() {
		snap := r.match.Snapshot()
		econ := r.match.Economy()
		r.seats.Broadcast(SnapshotEvent{
			RoomID:  r.ID(),
			Tick:    snap.Tick,
			State:   snap,
			Puzzles: econ.ActivePuzzles(),
			Market:  econ.MarketOffers(),
		})
	}

	if end, ok := r.match.Endgame(); ok {
		r.over = true
		r.seats.Broadcast(EndgameEvent{MatchID: r.matchID, Scenario: *end})
		r.save(*end)
	}
	return r.over, nil
}

func (r *Room) drainMessages() {
	counts := make(map[SessionID]int)
	for {
		select {
		case msg := <-r.msgs:
			switch m := msg.(type) {
			case joinMsg:
				r.handleJoin(m)
			case leaveMsg:
				r.handleLeave(m)
			case actionMsg:
				counts[m.session]++
				if counts[m.session] > r.cfg.MaxActionsPerFrame {
					r.reply(m.session, "too many actions this frame")
					continue
				}
				r.handleAction(m)
			}
		default:
			return
		}
	}
}

func (r *Room) handleJoin(m joinMsg) {
	if m.player == "" {
		m.session.Send(ErrorEvent{Message: "player id is required"})
		return
	}
	if _, known := r.seq[m.player]; !known {
		if err := r.match.Join(m.player); err != nil {
			m.session.Send(ErrorEvent{Message: err.Error()})
			return
		}
		r.seq[m.player] = 0
	}
	r.seats.Seat(m.session, m.player)
	r.log.Info("session joined", "session", m.session.ID(), "player", m.player)

	snap := r.match.Snapshot()
	m.session.Send(WelcomeEvent{RoomID: r.ID(), MatchID: r.matchID, Player: m.player, Tick: snap.Tick})
	m.session.Send(SnapshotEvent{RoomID: r.ID(), Tick: snap.Tick, State: snap})
}

func (r *Room) handleLeave(m leaveMsg) {
	player, ok := r.seats.Unseat(m.session)
	if !ok {
		return
	}
	r.log.Info("session left", "session", m.session, "player", player)
}

func (r *Room) handleAction(m actionMsg) {
	player, ok := r.seats.Player(m.session)
	if !ok {
		r.reply(m.session, "join before acting")
		return
	}
	a := m.action
	a.ActorID = player
	r.seq[player]++
	a.SequenceNo = r.seq[player]
	if err := r.match.Submit(a); err != nil {
		r.reply(m.session, err.Error())
	}
}

// publish forwards the match notifications of the last frame.
func (r *Room) publish() {
	for {
		select {
		case n := <-r.match.Notifications():
			switch n.Kind {
			case match.NotifyEffect:
				r.seats.Broadcast(EffectEvent{Tick: n.Tick, Effect: n.Effect})
			case match.NotifyRejection:
				r.seats.SendTo(n.Rejection.Action.ActorID, RejectionEvent{Rejection: *n.Rejection})
			case match.NotifyDecision:
				r.seats.SendTo(n.Decision.PlayerID, DecisionEvent{Tick: n.Tick, Result: *n.Decision})
			case match.NotifyError:
				r.log.Warn("match error", "tick", n.Tick, "err", n.Error)
			}
		default:
			return
		}
	}
}

// reply sends an error to one seated session.
func (r *Room) reply(id SessionID, msg string) {
	if s, ok := r.seats.Session(id); ok {
		s.Send(ErrorEvent{Message: msg})
	}
}

func (r *Room) save(end sim.EndgameScenario) {
	r.log.Info("room match over", "match", r.matchID, "track", end.Track, "winner", end.Winner)
	if r.saver == nil {
		return
	}
	if _, err := r.saver.SaveMatchResult(r.matchID, r.cfg.Match, end); err != nil {
		r.log.Error("save result", "match", r.matchID, "err", err)
	}
	if err := r.saver.SaveTelemetry(r.matchID, r.match.Telemetry()); err != nil {
		r.log.Error("save telemetry", "match", r.matchID, "err", err)
	}
}

// Close stops the room and its match. Safe to call more than once.
func (r *Room) Close() {
	r.doneOnce.Do(func() {
		close(r.done)
		r.match.Cleanup()
		r.log.Info("room closed", "room", r.ID())
	})
}
