package tui

import (
	"errors"
	"fmt"

	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/economy"
	"github.com/vovakirdan/quaternion/internal/match"
	"github.com/vovakirdan/quaternion/internal/orchestrator"
	"github.com/vovakirdan/quaternion/internal/room"
	"github.com/vovakirdan/quaternion/internal/scheduler"
	"github.com/vovakirdan/quaternion/internal/sim"
)

// maxFeed is the number of feed lines kept for the effect panel.
const maxFeed = 8

// View is what the HUD shows after one host frame.
type View struct {
	State         *sim.WorldState
	Puzzles       []economy.AllocationPuzzle
	Market        []economy.MarketOffer
	Advice        *economy.AdvisorResponse
	Feed          []string // Newest last
	Endgame       *sim.EndgameScenario
	Telemetry     *scheduler.Telemetry // Nil when the match runs elsewhere
	Subsystems    []orchestrator.Status
	Interpolation float64
	Quality       float64
	Paused        bool
}

// Source feeds the HUD. A local source owns its match and advances it on
// every host frame; a room source only mirrors what the room pushes.
type Source interface {
	Player() core.PlayerID
	Advance(wallDelta float64) (View, error)
	Submit(a core.PlayerAction) error
	Pause()
	Resume()
	Close()
}

// LocalSource drives a match owned by the HUD.
type LocalSource struct {
	match  *match.Match
	player core.PlayerID
	seq    uint64
	feed   []string
	end    *sim.EndgameScenario
	onEnd  func(sim.EndgameScenario)
}

// NewLocalSource wraps an initialized match. onEnd, if set, is called once
// when the match concludes.
func NewLocalSource(m *match.Match, onEnd func(sim.EndgameScenario)) *LocalSource {
	var player core.PlayerID
	if m.Config().Mode.HasLocalPlayer() {
		player = m.Config().PlayerID
	}
	return &LocalSource{match: m, player: player, onEnd: onEnd}
}

// Player returns the seated player, empty for spectators.
func (s *LocalSource) Player() core.PlayerID { return s.player }

// Advance runs one host frame.
func (s *LocalSource) Advance(wallDelta float64) (View, error) {
	_, err := s.match.Advance(wallDelta)
	if err != nil && !errors.Is(err, scheduler.ErrClosed) {
		return View{}, err
	}
	s.drain()

	if s.end == nil {
		if end, ok := s.match.Endgame(); ok {
			s.end = end
			if s.onEnd != nil {
				s.onEnd(*end)
			}
		}
	}

	econ := s.match.Economy()
	tel := s.match.Telemetry()
	v := View{
		State:         s.match.Snapshot(),
		Puzzles:       econ.ActivePuzzles(),
		Market:        econ.MarketOffers(),
		Feed:          s.feed,
		Endgame:       s.end,
		Telemetry:     &tel,
		Subsystems:    s.match.SubsystemStatus(),
		Interpolation: s.match.Interpolation(),
		Quality:       s.match.Quality(),
		Paused:        s.match.Paused(),
	}
	if s.player != "" {
		if adv, ok := econ.Advice(s.player); ok {
			v.Advice = &adv
		}
	}
	return v, nil
}

func (s *LocalSource) drain() {
	for {
		select {
		case n := <-s.match.Notifications():
			if line := describeNotification(n, s.player); line != "" {
				s.feed = appendFeed(s.feed, line)
			}
		default:
			return
		}
	}
}

// Submit stamps the local player and a sequence number onto a.
func (s *LocalSource) Submit(a core.PlayerAction) error {
	if s.player == "" {
		return match.ErrSpectator
	}
	s.seq++
	a.ActorID = s.player
	a.SequenceNo = s.seq
	return s.match.Submit(a)
}

// Pause suspends the match.
func (s *LocalSource) Pause() { s.match.Pause() }

// Resume continues the match.
func (s *LocalSource) Resume() { s.match.Resume() }

// Close stops the match.
func (s *LocalSource) Close() { s.match.Cleanup() }

// RoomSource mirrors a shared room through one session. The room runs its
// own frame loop, so Advance only drains pushed events and Pause is
// ignored.
type RoomSource struct {
	room    *room.Room
	session *room.ChannelSession
	player  core.PlayerID
	view    View
}

// NewRoomSource joins player to r through a new session.
func NewRoomSource(r *room.Room, id room.SessionID, player core.PlayerID) *RoomSource {
	s := &RoomSource{
		room:    r,
		session: room.NewChannelSession(id, 256),
		player:  player,
	}
	r.Join(s.session, player)
	return s
}

// Player returns the joined player.
func (s *RoomSource) Player() core.PlayerID { return s.player }

// Advance applies every event pushed since the previous frame.
func (s *RoomSource) Advance(float64) (View, error) {
	for drained := false; !drained; {
		select {
		case evt := <-s.session.Events():
			s.apply(evt)
		default:
			drained = true
		}
	}
	select {
	case <-s.room.Done():
		if s.view.Endgame == nil {
			return s.view, room.ErrClosed
		}
	default:
	}
	return s.view, nil
}

func (s *RoomSource) apply(evt room.Event) {
	switch e := evt.(type) {
	case room.WelcomeEvent:
		s.view.Feed = appendFeed(s.view.Feed, fmt.Sprintf("joined room %s as %s", e.RoomID, e.Player))
	case room.SnapshotEvent:
		s.view.State = e.State
		s.view.Puzzles = e.Puzzles
		s.view.Market = e.Market
	case room.EffectEvent:
		if line := describeEffect(e.Effect, s.player); line != "" {
			s.view.Feed = appendFeed(s.view.Feed, line)
		}
	case room.RejectionEvent:
		s.view.Feed = appendFeed(s.view.Feed, describeRejection(e.Rejection))
	case room.DecisionEvent:
		s.view.Feed = appendFeed(s.view.Feed, describeDecision(e.Result))
	case room.EndgameEvent:
		end := e.Scenario
		s.view.Endgame = &end
	case room.ErrorEvent:
		s.view.Feed = appendFeed(s.view.Feed, "error: "+e.Message)
	}
}

// Submit forwards a to the room, which stamps the actor and sequence.
func (s *RoomSource) Submit(a core.PlayerAction) error {
	select {
	case <-s.room.Done():
		return room.ErrClosed
	default:
	}
	s.room.Submit(s.session.ID(), a)
	return nil
}

// Pause is a no-op; one player cannot pause a shared room.
func (s *RoomSource) Pause() {}

// Resume is a no-op.
func (s *RoomSource) Resume() {}

// Close leaves the room. Safe to call more than once.
func (s *RoomSource) Close() {
	select {
	case <-s.session.Done():
		return
	default:
	}
	s.room.Leave(s.session.ID())
	s.session.Close()
}

func appendFeed(feed []string, line string) []string {
	feed = append(feed, line)
	if len(feed) > maxFeed {
		feed = append([]string(nil), feed[len(feed)-maxFeed:]...)
	}
	return feed
}

func describeNotification(n match.Notification, player core.PlayerID) string {
	switch n.Kind {
	case match.NotifyEffect:
		return describeEffect(n.Effect, player)
	case match.NotifyRejection:
		if n.Rejection != nil {
			return describeRejection(*n.Rejection)
		}
	case match.NotifyDecision:
		if n.Decision != nil {
			return describeDecision(*n.Decision)
		}
	case match.NotifyError:
		return "error: " + n.Error
	}
	return ""
}

func describeEffect(e sim.Effect, player core.PlayerID) string {
	switch e := e.(type) {
	case sim.AllianceFormed:
		return fmt.Sprintf("alliance: %s + %s", e.A, e.B)
	case sim.WorldEvent:
		if e.Hostile {
			return fmt.Sprintf("event: %s (hostile, %.1f)", e.Name, e.Severity)
		}
		return "event: " + e.Name
	case sim.TileDiscovered:
		return fmt.Sprintf("%s discovered %s at %d,%d", e.Tile.DiscoveredBy, e.Tile.Kind, e.Tile.Pos.X, e.Tile.Pos.Y)
	case sim.OfferCreated:
		if e.Offer.PlayerID != player {
			return ""
		}
		return fmt.Sprintf("offer %s from %s", e.Offer.ID, e.Source)
	case sim.TechUnlocked:
		return fmt.Sprintf("%s unlocked %s", e.PlayerID, e.Tech)
	case sim.NarrativeBeat:
		return e.Text
	case sim.ResourceDelta:
		return fmt.Sprintf("%s %s: %s", e.PlayerID, e.Reason, e.Delta)
	case sim.MoralShift:
		return fmt.Sprintf("%s moral %+.1f (%s)", e.PlayerID, e.Delta, e.Reason)
	case sim.VictoryClaim:
		return fmt.Sprintf("%s claims %s", e.PlayerID, e.Condition)
	}
	return ""
}

func describeRejection(r sim.Rejection) string {
	return fmt.Sprintf("refused %s: %s", r.Action.Type, r.Reason)
}

func describeDecision(r economy.Result) string {
	if r.Penalty {
		return fmt.Sprintf("deal %s went wrong, paid %s", r.ID, r.Paid)
	}
	return fmt.Sprintf("deal %s: paid %s got %s", r.ID, r.Paid, r.Received)
}

var (
	_ Source = (*LocalSource)(nil)
	_ Source = (*RoomSource)(nil)
)
