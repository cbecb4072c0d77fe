package economy

import (
	"time"

	"github.com/vovakirdan/quaternion/internal/core"
)

// Status is the lifecycle state of an economy record. Every record leaves
// StatusOpen exactly once.
type Status string

const (
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
	StatusExpired  Status = "expired"
)

// ResourceEvent is a shock that hit every active player when it began. It
// stays listed until it expires so the HUD can explain the loss.
type ResourceEvent struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Axis      core.Resource `json:"axis"`
	Fraction  float64       `json:"fraction"` // Negative for shortages
	StartedAt time.Time     `json:"started_at"`
	ExpiresAt time.Time     `json:"expires_at"`
	Status    Status        `json:"status"`
}

// AllocationOption is one answer to an allocation puzzle.
type AllocationOption struct {
	ID      string         `json:"id"`
	Label   string         `json:"label"`
	Cost    core.Resources `json:"cost"`
	Reward  core.Resources `json:"reward"`
	Moral   float64        `json:"moral"`
	Ethical bool           `json:"ethical"`
}

// AllocationPuzzle forces a player to choose between trade-offs.
type AllocationPuzzle struct {
	ID        string             `json:"id"`
	PlayerID  core.PlayerID      `json:"player_id"`
	Prompt    string             `json:"prompt"`
	Options   []AllocationOption `json:"options"`
	ExpiresAt time.Time          `json:"expires_at"`
	Status    Status             `json:"status"`
	Chosen    string             `json:"chosen,omitempty"`
}

// Option returns the option with id.
func (p *AllocationPuzzle) Option(id string) (AllocationOption, bool) {
	for _, o := range p.Options {
		if o.ID == id {
			return o, true
		}
	}
	return AllocationOption{}, false
}

// MarketOffer is a black-market deal. Risk is hidden from players; it is
// the chance the deal goes wrong when accepted.
type MarketOffer struct {
	ID        string         `json:"id"`
	PlayerID  core.PlayerID  `json:"player_id"`
	Cost      core.Resources `json:"cost"`
	Reward    core.Resources `json:"reward"`
	Risk      float64        `json:"-"`
	Penalty   float64        `json:"penalty"`
	ExpiresAt time.Time      `json:"expires_at"`
	Status    Status         `json:"status"`
}

// Posture grades a player's resource spread.
type Posture string

const (
	PostureBalanced Posture = "balanced"
	PostureSkewed   Posture = "skewed"
	PostureCritical Posture = "critical"
	PostureStarved  Posture = "starved"
)

// AdvisorResponse is a read-only critique of a player's economy.
type AdvisorResponse struct {
	ID        string        `json:"id"`
	PlayerID  core.PlayerID `json:"player_id"`
	At        time.Time     `json:"at"`
	Posture   Posture       `json:"posture"`
	Weakest   core.Resource `json:"weakest"`
	Strongest core.Resource `json:"strongest"`
	Imbalance float64       `json:"imbalance"`
	Message   string        `json:"message"`
}

// Result reports what a decision or a deal did to a player.
type Result struct {
	ID       string         `json:"id"`
	PlayerID core.PlayerID  `json:"player_id"`
	OptionID string         `json:"option_id,omitempty"`
	Paid     core.Resources `json:"paid"`
	Received core.Resources `json:"received"`
	Moral    float64        `json:"moral"`
	Penalty  bool           `json:"penalty"`
}
