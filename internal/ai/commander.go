package ai

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/vovakirdan/quaternion/internal/config"
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/registry"
	"github.com/vovakirdan/quaternion/internal/sim"
)

func init() {
	registry.Register(Commander, "AI Commander", func(env registry.Env) registry.Subsystem {
		return NewCommander(env)
	})
}

// reserve is the floor the commander keeps on every axis when spending.
const reserve = 20.0

// CommanderSubsystem plays the AI players. It proposes no effects; each
// activation plans player actions that go through the same queue and
// validation as human input.
type CommanderSubsystem struct {
	log        *log.Logger
	tables     *config.Tables
	aggression float64
	seq        map[core.PlayerID]uint64
	planned    []core.PlayerAction
}

// NewCommander creates the AI commander.
func NewCommander(env registry.Env) *CommanderSubsystem {
	aggression := env.Difficulty.Aggression
	if aggression <= 0 {
		aggression = 0.6
	}
	return &CommanderSubsystem{
		log:        env.Log,
		tables:     env.Tables,
		aggression: aggression,
		seq:        make(map[core.PlayerID]uint64),
	}
}

func (c *CommanderSubsystem) Name() string { return Commander }

// PlannedActions returns and clears the actions planned so far.
func (c *CommanderSubsystem) PlannedActions() []core.PlayerAction {
	out := c.planned
	c.planned = nil
	return out
}

// Run plans the next moves of every AI player.
func (c *CommanderSubsystem) Run(_ time.Time, snap *sim.WorldState) ([]sim.Effect, error) {
	if c.tables == nil {
		return nil, nil
	}
	for _, p := range activePlayers(snap) {
		if p.AI {
			c.plan(snap, p)
		}
	}
	return nil, nil
}

func (c *CommanderSubsystem) plan(snap *sim.WorldState, p *sim.PlayerState) {
	budget := p.Resources
	spend := func(cost core.Resources) bool {
		if !budget.Sub(cost).Covers(core.Uniform(reserve)) {
			return false
		}
		budget = budget.Sub(cost)
		return true
	}

	if len(p.Construction) < c.tables.Start.ConstructionSlots {
		axis, _ := shortfall(p.Resources)
		if id, ok := c.producerOf(axis); ok && spend(c.tables.Buildings[id].Cost) {
			c.issue(p, core.ActionBuild, core.ActionPayload{Building: id})
		}
	}

	if p.Research == nil {
		if id, ok := c.nextTech(p); ok && spend(c.tables.Techs[id].Cost) {
			c.issue(p, core.ActionResearch, core.ActionPayload{Tech: id})
		}
	}

	want := int(c.aggression * p.Population.Current)
	if n := min(want-p.Garrison, p.AvailableUnits()); n > 0 {
		c.issue(p, core.ActionMove, core.ActionPayload{Units: n})
	}

	// Only units already stationed attack; fresh moves wait a round.
	if p.Garrison == 0 || p.Garrison < want || !spend(c.tables.Territory.AttackCost) {
		return
	}
	if target := c.target(snap, p, p.Garrison); target != nil {
		c.issue(p, core.ActionAttack, core.ActionPayload{Target: target.ID, Base: target.Garrison == 0})
	}
}

// target picks the weakest enemy this player can beat. Ties go to the
// lowest id.
func (c *CommanderSubsystem) target(snap *sim.WorldState, p *sim.PlayerState, garrison int) *sim.PlayerState {
	var best *sim.PlayerState
	for _, o := range activePlayers(snap) {
		if o.ID == p.ID || snap.Allied(p.ID, o.ID) || o.Garrison >= garrison {
			continue
		}
		if best == nil || o.Garrison < best.Garrison {
			best = o
		}
	}
	return best
}

func (c *CommanderSubsystem) producerOf(axis core.Resource) (core.BuildingID, bool) {
	for _, id := range c.tables.BuildingIDs() {
		if c.tables.Buildings[id].Produces.Get(axis) > 0 {
			return id, true
		}
	}
	return "", false
}

func (c *CommanderSubsystem) nextTech(p *sim.PlayerState) (core.TechID, bool) {
next:
	for _, id := range c.tables.TechIDs() {
		def := c.tables.Techs[id]
		if p.ResearchedTechs[id] || (def.RequiresUnlock && !p.UnlockedTechs[id]) {
			continue
		}
		for _, req := range def.Requires {
			if !p.ResearchedTechs[req] {
				continue next
			}
		}
		return id, true
	}
	return "", false
}

func (c *CommanderSubsystem) issue(p *sim.PlayerState, t core.ActionType, payload core.ActionPayload) {
	seq := max(c.seq[p.ID], p.LastSequence) + 1
	c.seq[p.ID] = seq
	c.planned = append(c.planned, core.PlayerAction{
		Type:       t,
		ActorID:    p.ID,
		SequenceNo: seq,
		Payload:    payload,
	})
	c.log.Debug("planned", "player", p.ID, "type", t, "seq", seq)
}
