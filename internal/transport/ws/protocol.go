package ws

import (
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/economy"
	"github.com/vovakirdan/quaternion/internal/room"
	"github.com/vovakirdan/quaternion/internal/sim"
)

// Version is the wire protocol version.
const Version = 1

// Message types.
const (
	TypeHello     = "hello"
	TypeAction    = "action"
	TypeWelcome   = "welcome"
	TypeSnapshot  = "snapshot"
	TypeEffect    = "effect"
	TypeRejection = "rejection"
	TypeDecision  = "decision"
	TypeEndgame   = "endgame"
	TypeError     = "error"
)

// ClientMsg is anything a client sends. Hello carries Player, action
// carries Action; the server ignores ActorID and SequenceNo.
type ClientMsg struct {
	Type    string             `json:"type"`
	Version int                `json:"version"`
	Player  core.PlayerID      `json:"player,omitempty"`
	Action  *core.PlayerAction `json:"action,omitempty"`
}

// EffectPayload names the effect kind next to its fields. Data holds one
// of the sim effect structs when sent and decodes as a JSON object.
type EffectPayload struct {
	Kind sim.EffectKind `json:"kind"`
	Data any            `json:"data"`
}

// RejectionPayload is a refused action and why.
type RejectionPayload struct {
	Tick   uint64            `json:"tick"`
	Action core.PlayerAction `json:"action"`
	Reason string            `json:"reason"`
}

// ServerMsg is anything the server pushes. Exactly one payload is set,
// matching Type.
type ServerMsg struct {
	Type      string                     `json:"type"`
	Version   int                        `json:"version"`
	Room      string                     `json:"room,omitempty"`
	MatchID   string                     `json:"match_id,omitempty"`
	Player    core.PlayerID              `json:"player,omitempty"`
	Tick      uint64                     `json:"tick,omitempty"`
	State     *sim.WorldState            `json:"state,omitempty"`
	Puzzles   []economy.AllocationPuzzle `json:"puzzles,omitempty"`
	Market    []economy.MarketOffer      `json:"market,omitempty"`
	Effect    *EffectPayload             `json:"effect,omitempty"`
	Rejection *RejectionPayload          `json:"rejection,omitempty"`
	Decision  *economy.Result            `json:"decision,omitempty"`
	Endgame   *sim.EndgameScenario       `json:"endgame,omitempty"`
	Error     string                     `json:"error,omitempty"`
}

// encode converts a room event to its wire form.
func encode(evt room.Event) (ServerMsg, bool) {
	msg := ServerMsg{Version: Version}
	switch e := evt.(type) {
	case room.WelcomeEvent:
		msg.Type = TypeWelcome
		msg.Room, msg.MatchID, msg.Player, msg.Tick = e.RoomID, e.MatchID, e.Player, e.Tick
	case room.SnapshotEvent:
		msg.Type = TypeSnapshot
		msg.Room, msg.Tick, msg.State = e.RoomID, e.Tick, e.State
		msg.Puzzles, msg.Market = e.Puzzles, e.Market
	case room.EffectEvent:
		msg.Type = TypeEffect
		msg.Tick = e.Tick
		msg.Effect = &EffectPayload{Kind: e.Effect.Kind(), Data: e.Effect}
	case room.RejectionEvent:
		msg.Type = TypeRejection
		msg.Tick = e.Rejection.Tick
		msg.Rejection = &RejectionPayload{Tick: e.Rejection.Tick, Action: e.Rejection.Action, Reason: e.Rejection.Reason}
	case room.DecisionEvent:
		msg.Type = TypeDecision
		msg.Tick = e.Tick
		msg.Decision = &e.Result
	case room.EndgameEvent:
		msg.Type = TypeEndgame
		msg.MatchID = e.MatchID
		msg.Tick = e.Scenario.Tick
		msg.Endgame = &e.Scenario
	case room.ErrorEvent:
		msg.Type = TypeError
		msg.Error = e.Message
	default:
		return msg, false
	}
	return msg, true
}
