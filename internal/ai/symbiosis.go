package ai

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/registry"
	"github.com/vovakirdan/quaternion/internal/sim"
)

func init() {
	registry.Register(Symbiosis, "Symbiotic Offers", func(env registry.Env) registry.Subsystem {
		return NewSymbiosis(env)
	})
}

// Offer terms.
const (
	symbiosisTTL     = 90.0 // Simulated seconds an offer stays open
	symbiosisShare   = 0.2  // Share of the surplus asked for
	symbiosisPremium = 1.15 // Return on what is given
	symbiosisMoral   = 3.0
)

// SymbiosisSubsystem has an AI partner propose trades that move a human
// player's surplus into their weakest axis. Accepting is a cooperative act
// and nudges the player's alignment upward.
type SymbiosisSubsystem struct {
	rng     *rand.Rand
	log     *log.Logger
	offered map[core.PlayerID]int
}

// NewSymbiosis creates the symbiotic offer generator.
func NewSymbiosis(env registry.Env) *SymbiosisSubsystem {
	return &SymbiosisSubsystem{
		rng:     env.Rand(Symbiosis),
		log:     env.Log,
		offered: make(map[core.PlayerID]int),
	}
}

func (s *SymbiosisSubsystem) Name() string { return Symbiosis }

// Offered returns how many offers have been made to a player.
func (s *SymbiosisSubsystem) Offered(id core.PlayerID) int { return s.offered[id] }

// Run makes at most one offer per human who has none open.
func (s *SymbiosisSubsystem) Run(_ time.Time, snap *sim.WorldState) ([]sim.Effect, error) {
	var partners []core.PlayerID
	for _, p := range activePlayers(snap) {
		if p.AI {
			partners = append(partners, p.ID)
		}
	}
	if len(partners) == 0 {
		return nil, nil
	}

	var out []sim.Effect
	for _, p := range activePlayers(snap) {
		if p.AI || hasOpenOffer(snap, p.ID, Symbiosis) {
			continue
		}
		surplus, hi := p.Resources.Max()
		deficit, lo := p.Resources.Min()
		if surplus == deficit || hi-lo < 10 {
			continue
		}
		give := math.Floor((hi - lo) * symbiosisShare)
		if give <= 0 {
			continue
		}
		partner := pick(s.rng, partners)
		offer := sim.Offer{
			ID:        newID(s.rng),
			Source:    Symbiosis,
			PlayerID:  p.ID,
			Give:      core.Resources{}.With(surplus, give),
			Get:       core.Resources{}.With(deficit, math.Round(give*symbiosisPremium)),
			Moral:     symbiosisMoral,
			ExpiresAt: snap.GameTime + symbiosisTTL,
		}
		s.offered[p.ID]++
		s.log.Debug("symbiotic offer", "player", p.ID, "partner", partner, "give", surplus, "get", deficit)
		out = append(out,
			sim.OfferCreated{Meta: meta(Symbiosis), Offer: offer},
			sim.NarrativeBeat{
				Meta:     meta(Symbiosis),
				PlayerID: p.ID,
				Text:     fmt.Sprintf("%s offers %s for %.0f %s.", partner, deficit, give, surplus),
			},
		)
	}
	return out, nil
}

func hasOpenOffer(snap *sim.WorldState, id core.PlayerID, source string) bool {
	for _, o := range snap.Offers {
		if o.PlayerID == id && o.Source == source && o.ExpiresAt > snap.GameTime {
			return true
		}
	}
	return false
}
