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
	registry.Register(TechTree, "Dynamic Tech Tree", func(env registry.Env) registry.Subsystem {
		return NewTechTree(env)
	})
}

const (
	terrainUnlockChance = 0.7
	moralUnlockChance   = 0.4
	moralUnlockFloor    = 30.0
)

// TechTreeSubsystem unlocks gated technologies. Techs tied to the terrain
// of the map unlock readily once their prerequisites are researched;
// techs with no terrain affinity need a player of good standing.
type TechTreeSubsystem struct {
	rng    *rand.Rand
	log    *log.Logger
	tables *config.Tables
	gated  []core.TechID
}

// NewTechTree creates the tech unlock subsystem for the map type in env.
func NewTechTree(env registry.Env) *TechTreeSubsystem {
	t := &TechTreeSubsystem{
		rng:    env.Rand(TechTree),
		log:    env.Log,
		tables: env.Tables,
	}
	if env.Tables != nil {
		for _, id := range env.Tables.TechIDs() {
			def := env.Tables.Techs[id]
			if def.RequiresUnlock && def.AvailableOn(env.MapType) {
				t.gated = append(t.gated, id)
			}
		}
	}
	return t
}

func (t *TechTreeSubsystem) Name() string { return TechTree }

// Gated returns the techs this subsystem may unlock on the current map.
func (t *TechTreeSubsystem) Gated() []core.TechID { return t.gated }

// Run unlocks at most one tech per player.
func (t *TechTreeSubsystem) Run(_ time.Time, snap *sim.WorldState) ([]sim.Effect, error) {
	var out []sim.Effect
	for _, p := range activePlayers(snap) {
		for _, id := range t.gated {
			if p.UnlockedTechs[id] || !t.ready(p, id) {
				continue
			}
			chance := terrainUnlockChance
			if len(t.tables.Techs[id].Terrain) == 0 {
				if p.MoralAlignment < moralUnlockFloor {
					continue
				}
				chance = moralUnlockChance
			}
			if t.rng.Float64() >= chance {
				continue
			}
			t.log.Debug("tech unlocked", "player", p.ID, "tech", id)
			out = append(out,
				sim.TechUnlocked{Meta: meta(TechTree), PlayerID: p.ID, Tech: id},
				sim.NarrativeBeat{
					Meta:     meta(TechTree),
					PlayerID: p.ID,
					Text:     fmt.Sprintf("The land reveals the secret of %s to %s.", t.tables.Techs[id].Name, p.ID),
				},
			)
			break
		}
	}
	return out, nil
}

func (t *TechTreeSubsystem) ready(p *sim.PlayerState, id core.TechID) bool {
	for _, req := range t.tables.Techs[id].Requires {
		if !p.ResearchedTechs[req] {
			return false
		}
	}
	return true
}
