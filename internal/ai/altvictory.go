package ai

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vovakirdan/quaternion/internal/config"
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/registry"
	"github.com/vovakirdan/quaternion/internal/sim"
)

func init() {
	registry.Register(AltVictory, "Alternative Victories", func(env registry.Env) registry.Subsystem {
		return NewAltVictory(env)
	})
}

// altCondition is a victory condition outside the four core tracks.
type altCondition struct {
	ID    string
	Title string
	Met   func(snap *sim.WorldState, p *sim.PlayerState) bool
}

// AltVictorySubsystem reveals hidden victory conditions one at a time and
// files a claim when a player meets a revealed one. Claims only end the
// match once the evaluator confirms them.
type AltVictorySubsystem struct {
	rng      *rand.Rand
	log      *log.Logger
	hidden   []altCondition
	revealed []altCondition
	claimed  map[string]bool
}

// NewAltVictory creates the subsystem with its conditions in a seeded
// reveal order.
func NewAltVictory(env registry.Env) *AltVictorySubsystem {
	a := &AltVictorySubsystem{
		rng:     env.Rand(AltVictory),
		log:     env.Log,
		claimed: make(map[string]bool),
	}
	a.hidden = altConditions(env.Tables)
	a.rng.Shuffle(len(a.hidden), func(i, j int) {
		a.hidden[i], a.hidden[j] = a.hidden[j], a.hidden[i]
	})
	return a
}

func altConditions(t *config.Tables) []altCondition {
	var research []core.TechID
	if t != nil {
		for _, id := range t.TechIDs() {
			if !t.Techs[id].Terminal && !t.Techs[id].RequiresUnlock {
				research = append(research, id)
			}
		}
	}
	return []altCondition{
		{
			ID:    "cartographer",
			Title: "Cartographer",
			Met: func(snap *sim.WorldState, p *sim.PlayerState) bool {
				n := 0
				for _, t := range snap.Tiles {
					if t.DiscoveredBy == p.ID {
						n++
					}
				}
				return n >= 8
			},
		},
		{
			ID:    "concord",
			Title: "Grand Concord",
			Met: func(snap *sim.WorldState, p *sim.PlayerState) bool {
				others := 0
				for _, o := range activePlayers(snap) {
					if o.ID == p.ID {
						continue
					}
					others++
					if !snap.Allied(p.ID, o.ID) {
						return false
					}
				}
				return others > 0 && p.MoralAlignment >= 50
			},
		},
		{
			ID:    "hoard",
			Title: "Dragon's Hoard",
			Met: func(_ *sim.WorldState, p *sim.PlayerState) bool {
				return p.Resources.Total() >= 4000
			},
		},
		{
			ID:    "polymath",
			Title: "Polymath",
			Met: func(_ *sim.WorldState, p *sim.PlayerState) bool {
				if len(research) == 0 {
					return false
				}
				for _, id := range research {
					if !p.ResearchedTechs[id] {
						return false
					}
				}
				return true
			},
		},
	}
}

func (a *AltVictorySubsystem) Name() string { return AltVictory }

// Revealed returns the ids of the conditions revealed so far.
func (a *AltVictorySubsystem) Revealed() []string {
	ids := make([]string, len(a.revealed))
	for i, c := range a.revealed {
		ids[i] = c.ID
	}
	return ids
}

// Run reveals the next condition, then checks every revealed condition in
// reveal order against every active player in id order.
func (a *AltVictorySubsystem) Run(_ time.Time, snap *sim.WorldState) ([]sim.Effect, error) {
	var out []sim.Effect
	if len(a.hidden) > 0 {
		c := a.hidden[0]
		a.hidden = a.hidden[1:]
		a.revealed = append(a.revealed, c)
		out = append(out, sim.NarrativeBeat{
			Meta: meta(AltVictory),
			Text: fmt.Sprintf("An old prophecy surfaces: the path of the %s.", c.Title),
		})
	}

	for _, c := range a.revealed {
		for _, p := range activePlayers(snap) {
			claimID := c.ID + ":" + string(p.ID)
			if a.claimed[claimID] || !c.Met(snap, p) {
				continue
			}
			a.claimed[claimID] = true
			a.log.Info("victory claim filed", "player", p.ID, "condition", c.ID)
			out = append(out, sim.VictoryClaim{
				Meta:  meta(AltVictory),
				Claim: sim.Claim{ClaimID: claimID, PlayerID: p.ID, Condition: c.Title},
			})
		}
	}
	return out, nil
}
