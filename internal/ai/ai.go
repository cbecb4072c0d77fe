// Package ai holds the autonomous subsystems the orchestrator polls. Each
// one registers itself with the registry in init, keeps its own private
// state and random stream, and only ever proposes effects.
package ai

import (
	"math/rand"

	"github.com/google/uuid"
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/sim"
)

// Subsystem ids as they appear in the data tables.
const (
	Adaptive      = "adaptive"
	AltVictory    = "alt_victory"
	Commander     = "commander"
	Diplomacy     = "diplomacy"
	DungeonMaster = "dungeon_master"
	Ecosystem     = "ecosystem"
	Symbiosis     = "symbiosis"
	TechTree      = "tech_tree"
)

// newID draws a UUID from rng so ids replay with the seed.
func newID(rng *rand.Rand) string {
	id, err := uuid.NewRandomFromReader(rng)
	if err != nil {
		// rand.Rand never fails to read.
		panic(err)
	}
	return id.String()
}

// activePlayers returns the players still in the match, in id order.
func activePlayers(snap *sim.WorldState) []*sim.PlayerState {
	out := make([]*sim.PlayerState, 0, len(snap.PlayerOrder))
	for _, id := range snap.PlayerOrder {
		if p := snap.Players[id]; p != nil && !p.Eliminated {
			out = append(out, p)
		}
	}
	return out
}

func pick[T any](rng *rand.Rand, items []T) T {
	return items[rng.Intn(len(items))]
}

func meta(source string) sim.Meta {
	return sim.Meta{Source: source}
}

// shortfall is how far below the player's mean its weakest axis sits.
func shortfall(r core.Resources) (core.Resource, float64) {
	res, v := r.Min()
	return res, r.Mean() - v
}
