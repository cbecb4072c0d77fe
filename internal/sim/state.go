// Package sim owns the authoritative world state of a match and the
// deterministic tick that advances it. Everything outside this package
// reads snapshots and proposes changes as effects or player actions.
package sim

import (
	"github.com/vovakirdan/quaternion/internal/core"
)

// Track names a win condition.
type Track string

const (
	TrackElimination   Track = "elimination"
	TrackEquilibrium   Track = "equilibrium"
	TrackTechnological Track = "technological"
	TrackTerritorial   Track = "territorial"
	TrackMoral         Track = "moral"
	TrackAlternative   Track = "alternative"
)

// Outcome is the terminal result of a match.
type Outcome string

const (
	OutcomeVictory Outcome = "victory"
	OutcomeDefeat  Outcome = "defeat"
)

// Population tracks the people available to a player. Garrisoned units are
// drawn from Current.
type Population struct {
	Current float64 `json:"current"`
	Max     float64 `json:"max"`
}

// BuildJob is a building under construction.
type BuildJob struct {
	Building  core.BuildingID `json:"building"`
	Remaining float64         `json:"remaining"`
}

// ResearchJob is the technology being researched.
type ResearchJob struct {
	Tech      core.TechID `json:"tech"`
	Remaining float64     `json:"remaining"`
}

// PlayerState is everything the world knows about one participant.
type PlayerState struct {
	ID              core.PlayerID           `json:"id"`
	AI              bool                    `json:"ai"`
	Resources       core.Resources          `json:"resources"`
	Population      Population              `json:"population"`
	Buildings       map[core.BuildingID]int `json:"buildings"`
	Construction    []BuildJob              `json:"construction"`
	Research        *ResearchJob            `json:"research,omitempty"`
	ResearchedTechs map[core.TechID]bool    `json:"researched_techs"`
	UnlockedTechs   map[core.TechID]bool    `json:"unlocked_techs"`
	MoralAlignment  float64                 `json:"moral_alignment"`
	EthicalEvents   int                     `json:"ethical_events"`
	Garrison        int                     `json:"garrison"`
	BaseHP          float64                 `json:"base_hp"`
	Attacks         int                     `json:"attacks"`
	LastAttacker    core.PlayerID           `json:"last_attacker,omitempty"`
	LastSequence    uint64                  `json:"last_sequence"`
	Eliminated      bool                    `json:"eliminated"`
}

// AvailableUnits is the population not already garrisoned.
func (p *PlayerState) AvailableUnits() int {
	n := int(p.Population.Current) - p.Garrison
	if n < 0 {
		return 0
	}
	return n
}

// WinConditionTracker reports progress toward one victory track.
type WinConditionTracker struct {
	Track     Track                     `json:"track"`
	Threshold float64                   `json:"threshold"`
	Progress  float64                   `json:"progress"` // Best progress among players
	Leader    core.PlayerID             `json:"leader,omitempty"`
	PerPlayer map[core.PlayerID]float64 `json:"per_player"`
}

// EndgameScenario describes how a match ended.
type EndgameScenario struct {
	Outcome        Outcome                          `json:"outcome"`
	Track          Track                            `json:"track"`
	Winner         core.PlayerID                    `json:"winner,omitempty"`
	Loser          core.PlayerID                    `json:"loser,omitempty"`
	ClaimID        string                           `json:"claim_id,omitempty"`
	Reason         string                           `json:"reason"`
	FinalResources map[core.PlayerID]core.Resources `json:"final_resources"`
	Elapsed        float64                          `json:"elapsed"` // Simulated seconds
	Tick           uint64                           `json:"tick"`
}

// Alliance binds two players; allies cannot attack each other.
type Alliance struct {
	A     core.PlayerID `json:"a"`
	B     core.PlayerID `json:"b"`
	Since float64       `json:"since"`
}

// Includes reports whether the alliance binds a and b in either order.
func (al Alliance) Includes(a, b core.PlayerID) bool {
	return (al.A == a && al.B == b) || (al.A == b && al.B == a)
}

// Tile is a discovered map location.
type Tile struct {
	Pos          core.Point     `json:"pos"`
	Kind         string         `json:"kind"`
	Cache        core.Resources `json:"cache"`
	DiscoveredBy core.PlayerID  `json:"discovered_by"`
}

// Offer is a trade proposed to a player. Accepting pays Give and receives
// Get.
type Offer struct {
	ID        string         `json:"id"`
	Source    string         `json:"source"`
	PlayerID  core.PlayerID  `json:"player_id"`
	Give      core.Resources `json:"give"`
	Get       core.Resources `json:"get"`
	Moral     float64        `json:"moral"`
	ExpiresAt float64        `json:"expires_at"` // Simulated seconds
}

// Claim is a pending alternative-victory claim awaiting evaluation.
type Claim struct {
	ClaimID   string        `json:"claim_id"`
	PlayerID  core.PlayerID `json:"player_id"`
	Condition string        `json:"condition"`
}

// EventRecord is a world event that has already been applied.
type EventRecord struct {
	ID       string  `json:"id"`
	Kind     string  `json:"kind"`
	Severity float64 `json:"severity"`
	Hostile  bool    `json:"hostile"`
	At       float64 `json:"at"`
}

// Retention limits for the rolling logs kept in the world state.
const (
	maxEventRecords = 32
	maxNarrative    = 16
)

// WorldState is the authoritative state of a match. Outside the tick
// pipeline it is only ever seen as a snapshot copy.
type WorldState struct {
	Config         core.MatchConfig               `json:"config"`
	Tick           uint64                         `json:"tick"`
	GameTime       float64                        `json:"game_time"`
	Instability    float64                        `json:"instability"`
	Hostility      float64                        `json:"hostility"`
	Players        map[core.PlayerID]*PlayerState `json:"players"`
	PlayerOrder    []core.PlayerID                `json:"player_order"`
	WinConditions  []WinConditionTracker          `json:"win_conditions"`
	ContestedPoint core.Point                     `json:"contested_point"`
	Controller     core.PlayerID                  `json:"controller,omitempty"`
	Alliances      []Alliance                     `json:"alliances"`
	Tiles          []Tile                         `json:"tiles"`
	Offers         []Offer                        `json:"offers"`
	PendingClaims  []Claim                        `json:"pending_claims"`
	Events         []EventRecord                  `json:"events"`
	Narrative      []string                       `json:"narrative"`
	GameOver       bool                           `json:"game_over"`
	Winner         core.PlayerID                  `json:"winner,omitempty"`
	Endgame        *EndgameScenario               `json:"endgame,omitempty"`
}

// Player returns the player with id, or nil.
func (s *WorldState) Player(id core.PlayerID) *PlayerState {
	return s.Players[id]
}

// Allied reports whether a and b share an alliance.
func (s *WorldState) Allied(a, b core.PlayerID) bool {
	for _, al := range s.Alliances {
		if al.Includes(a, b) {
			return true
		}
	}
	return false
}

// Tracker returns the tracker for track, or nil.
func (s *WorldState) Tracker(track Track) *WinConditionTracker {
	for i := range s.WinConditions {
		if s.WinConditions[i].Track == track {
			return &s.WinConditions[i]
		}
	}
	return nil
}

// Humans returns the non-AI players in order.
func (s *WorldState) Humans() []core.PlayerID {
	var out []core.PlayerID
	for _, id := range s.PlayerOrder {
		if !s.Players[id].AI {
			out = append(out, id)
		}
	}
	return out
}

// AIs returns the AI players in order.
func (s *WorldState) AIs() []core.PlayerID {
	var out []core.PlayerID
	for _, id := range s.PlayerOrder {
		if s.Players[id].AI {
			out = append(out, id)
		}
	}
	return out
}

// OfferByID returns the index of the offer with id, or -1.
func (s *WorldState) OfferByID(id string) int {
	for i := range s.Offers {
		if s.Offers[i].ID == id {
			return i
		}
	}
	return -1
}
