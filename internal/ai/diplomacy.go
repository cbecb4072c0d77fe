package ai

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/registry"
	"github.com/vovakirdan/quaternion/internal/sim"
)

func init() {
	registry.Register(Diplomacy, "Territorial Diplomacy", func(env registry.Env) registry.Subsystem {
		return NewDiplomacy(env)
	})
}

// DiplomacySubsystem forms alliances between players that have not fought
// each other. AIs ally readily; a human is only courted once their moral
// alignment shows they can be trusted. Hostility makes pacts more likely.
type DiplomacySubsystem struct {
	rng     *rand.Rand
	log     *log.Logger
	trust   float64
	grudges map[[2]core.PlayerID]bool
}

// NewDiplomacy creates the diplomacy subsystem.
func NewDiplomacy(env registry.Env) *DiplomacySubsystem {
	return &DiplomacySubsystem{
		rng:     env.Rand(Diplomacy),
		log:     env.Log,
		trust:   25,
		grudges: make(map[[2]core.PlayerID]bool),
	}
}

func (d *DiplomacySubsystem) Name() string { return Diplomacy }

func pairKey(a, b core.PlayerID) [2]core.PlayerID {
	if b < a {
		a, b = b, a
	}
	return [2]core.PlayerID{a, b}
}

// Run proposes at most one alliance per activation.
func (d *DiplomacySubsystem) Run(_ time.Time, snap *sim.WorldState) ([]sim.Effect, error) {
	players := activePlayers(snap)
	for _, p := range players {
		if p.LastAttacker != "" {
			d.grudges[pairKey(p.ID, p.LastAttacker)] = true
		}
	}

	var candidates [][2]*sim.PlayerState
	for i, a := range players {
		for _, b := range players[i+1:] {
			if snap.Allied(a.ID, b.ID) || d.grudges[pairKey(a.ID, b.ID)] {
				continue
			}
			if !a.AI && !b.AI {
				continue
			}
			if (!a.AI && a.MoralAlignment < d.trust) || (!b.AI && b.MoralAlignment < d.trust) {
				continue
			}
			candidates = append(candidates, [2]*sim.PlayerState{a, b})
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	chance := min(0.8, 0.3+0.1*snap.Hostility)
	if d.rng.Float64() >= chance {
		return nil, nil
	}
	pair := pick(d.rng, candidates)
	d.log.Debug("alliance proposed", "a", pair[0].ID, "b", pair[1].ID, "hostility", snap.Hostility)

	reason := "mutual defence"
	if snap.Hostility < 1 {
		reason = "shared borders"
	}
	return []sim.Effect{
		sim.AllianceFormed{Meta: meta(Diplomacy), A: pair[0].ID, B: pair[1].ID, Reason: reason},
		sim.NarrativeBeat{
			Meta: meta(Diplomacy),
			Text: fmt.Sprintf("%s and %s sign a pact of %s.", pair[0].ID, pair[1].ID, reason),
		},
	}, nil
}
