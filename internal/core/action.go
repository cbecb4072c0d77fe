package core

// ActionType is the kind of a PlayerAction.
type ActionType string

const (
	ActionBuild       ActionType = "build"
	ActionResearch    ActionType = "research"
	ActionMove        ActionType = "move"
	ActionAttack      ActionType = "attack"
	ActionAllocate    ActionType = "allocate"
	ActionAcceptOffer ActionType = "acceptOffer"
)

// ActionTypes lists every recognised action type.
var ActionTypes = []ActionType{
	ActionBuild, ActionResearch, ActionMove, ActionAttack, ActionAllocate, ActionAcceptOffer,
}

// Valid reports whether t is a recognised action type.
func (t ActionType) Valid() bool {
	for _, at := range ActionTypes {
		if at == t {
			return true
		}
	}
	return false
}

// PlayerAction is a command submitted by a participant. Actions are queued
// and only take effect at the next tick boundary.
type PlayerAction struct {
	Type       ActionType    `json:"type"`
	ActorID    PlayerID      `json:"actor_id"`
	SequenceNo uint64        `json:"sequence_no"`
	Payload    ActionPayload `json:"payload"`
}

// ActionPayload carries the arguments of every action type. Only the fields
// relevant to the action's Type are read.
type ActionPayload struct {
	Building BuildingID `json:"building,omitempty"` // build
	Tech     TechID     `json:"tech,omitempty"`     // research
	Units    int        `json:"units,omitempty"`    // move: positive stations, negative recalls
	Target   PlayerID   `json:"target,omitempty"`   // attack
	Base     bool       `json:"base,omitempty"`     // attack the base instead of the garrison
	PuzzleID string     `json:"puzzle_id,omitempty"`
	OptionID string     `json:"option_id,omitempty"`
	OfferID  string     `json:"offer_id,omitempty"`
}
