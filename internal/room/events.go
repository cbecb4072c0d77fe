package room

import (
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/economy"
	"github.com/vovakirdan/quaternion/internal/sim"
)

// Event is sent from the room to a session.
type Event interface {
	roomEvent()
}

// WelcomeEvent confirms a join.
type WelcomeEvent struct {
	RoomID  string
	MatchID string
	Player  core.PlayerID
	Tick    uint64
}

func (WelcomeEvent) roomEvent() {}

// SnapshotEvent carries the world state and the open economy prompts of
// every player. The payload is shared between sessions and must not be
// modified.
type SnapshotEvent struct {
	RoomID  string
	Tick    uint64
	State   *sim.WorldState
	Puzzles []economy.AllocationPuzzle
	Market  []economy.MarketOffer
}

func (SnapshotEvent) roomEvent() {}

// EffectEvent announces an effect applied to the world.
type EffectEvent struct {
	Tick   uint64
	Effect sim.Effect
}

func (EffectEvent) roomEvent() {}

// RejectionEvent tells a player that one of their actions was refused.
type RejectionEvent struct {
	Rejection sim.Rejection
}

func (RejectionEvent) roomEvent() {}

// DecisionEvent reports a resolved allocation puzzle or market deal.
type DecisionEvent struct {
	Tick   uint64
	Result economy.Result
}

func (DecisionEvent) roomEvent() {}

// EndgameEvent is sent to everyone when the match ends.
type EndgameEvent struct {
	MatchID  string
	Scenario sim.EndgameScenario
}

func (EndgameEvent) roomEvent() {}

// ErrorEvent reports a request the room could not serve.
type ErrorEvent struct {
	Message string
}

func (ErrorEvent) roomEvent() {}

// message is sent from a session to the room loop.
type message interface {
	roomMessage()
}

type joinMsg struct {
	session SessionHandle
	player  core.PlayerID
}

func (joinMsg) roomMessage() {}

type leaveMsg struct {
	session SessionID
}

func (leaveMsg) roomMessage() {}

type actionMsg struct {
	session SessionID
	action  core.PlayerAction
}

func (actionMsg) roomMessage() {}
