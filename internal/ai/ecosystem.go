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
	registry.Register(Ecosystem, "Living Ecosystem", func(env registry.Env) registry.Subsystem {
		return NewEcosystem(env)
	})
}

// worldEvent is a template the ecosystem rolls from. Fraction is the share
// of each player's balance on Axis that the event moves, before scaling.
type worldEvent struct {
	Name     string
	Axis     core.Resource
	Fraction float64
	Terrain  []string
}

var worldEvents = []worldEvent{
	{Name: "Solar Flare", Axis: core.Energy, Fraction: -0.15},
	{Name: "Crop Blight", Axis: core.Biomass, Fraction: -0.12},
	{Name: "Data Storm", Axis: core.Data, Fraction: -0.10},
	{Name: "Meteor Shower", Axis: core.Ore, Fraction: 0.10, Terrain: []string{"highlands", "wasteland"}},
	{Name: "Monsoon", Axis: core.Biomass, Fraction: 0.10, Terrain: []string{"archipelago", "continental"}},
	{Name: "Tectonic Shift", Axis: core.Ore, Fraction: -0.12, Terrain: []string{"highlands"}},
	{Name: "Tidal Surge", Axis: core.Energy, Fraction: 0.08, Terrain: []string{"archipelago"}},
	{Name: "Dust Storm", Axis: core.Energy, Fraction: -0.08, Terrain: []string{"wasteland"}},
}

// EcosystemSubsystem rolls environmental events shaped by the map type.
// Harmful events are hostile and push world instability up; they never
// take more than a fraction of what a player holds.
type EcosystemSubsystem struct {
	rng    *rand.Rand
	log    *log.Logger
	diff   config.Difficulty
	events []worldEvent
	streak int // Consecutive hostile events
}

// NewEcosystem creates the ecosystem subsystem for the map type in env.
func NewEcosystem(env registry.Env) *EcosystemSubsystem {
	e := &EcosystemSubsystem{
		rng:  env.Rand(Ecosystem),
		log:  env.Log,
		diff: env.Difficulty,
	}
	for _, ev := range worldEvents {
		if len(ev.Terrain) == 0 || contains(ev.Terrain, env.MapType) {
			e.events = append(e.events, ev)
		}
	}
	return e
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (e *EcosystemSubsystem) Name() string { return Ecosystem }

// Run emits one world event. After two hostile events in a row a benign
// one is forced so the world does not spiral.
func (e *EcosystemSubsystem) Run(_ time.Time, snap *sim.WorldState) ([]sim.Effect, error) {
	players := activePlayers(snap)
	if len(players) == 0 {
		return nil, nil
	}

	ev := pick(e.rng, e.events)
	if e.streak >= 2 {
		var benign []worldEvent
		for _, c := range e.events {
			if c.Fraction > 0 {
				benign = append(benign, c)
			}
		}
		if len(benign) > 0 {
			ev = pick(e.rng, benign)
		}
	}

	scale := e.diff.SeverityScale
	if scale <= 0 {
		scale = 1
	}
	frac := core.ClampF(ev.Fraction*scale, -0.5, 0.5)
	hostile := frac < 0

	deltas := make(map[core.PlayerID]core.Resources, len(players))
	for _, p := range players {
		amount := p.Resources.Get(ev.Axis) * frac
		if !hostile {
			// Bounty scales with the world, not the player, so the poor catch up.
			amount = max(amount, 10*frac)
		}
		deltas[p.ID] = core.Resources{}.With(ev.Axis, amount)
	}

	if hostile {
		e.streak++
	} else {
		e.streak = 0
	}
	severity := -frac
	if !hostile {
		severity = frac
	}
	severity *= 10
	e.log.Debug("world event", "name", ev.Name, "axis", ev.Axis, "fraction", frac)

	return []sim.Effect{
		sim.WorldEvent{
			Meta:     meta(Ecosystem),
			ID:       newID(e.rng),
			Name:     ev.Name,
			Severity: severity,
			Hostile:  hostile,
			Deltas:   deltas,
		},
		sim.NarrativeBeat{
			Meta: meta(Ecosystem),
			Text: fmt.Sprintf("%s sweeps the %s.", ev.Name, snap.Config.MapType),
		},
	}, nil
}
