package sim

import (
	"maps"
	"slices"

	"github.com/vovakirdan/quaternion/internal/core"
)

// Clone returns a deep copy of the state.
func (s *WorldState) Clone() *WorldState {
	c := *s
	c.Players = make(map[core.PlayerID]*PlayerState, len(s.Players))
	for id, p := range s.Players {
		c.Players[id] = p.Clone()
	}
	c.PlayerOrder = slices.Clone(s.PlayerOrder)
	c.WinConditions = make([]WinConditionTracker, len(s.WinConditions))
	for i, t := range s.WinConditions {
		t.PerPlayer = maps.Clone(t.PerPlayer)
		c.WinConditions[i] = t
	}
	c.Alliances = slices.Clone(s.Alliances)
	c.Tiles = slices.Clone(s.Tiles)
	c.Offers = slices.Clone(s.Offers)
	c.PendingClaims = slices.Clone(s.PendingClaims)
	c.Events = slices.Clone(s.Events)
	c.Narrative = slices.Clone(s.Narrative)
	if s.Endgame != nil {
		eg := *s.Endgame
		eg.FinalResources = maps.Clone(s.Endgame.FinalResources)
		c.Endgame = &eg
	}
	return &c
}

// Clone returns a deep copy of the player.
func (p *PlayerState) Clone() *PlayerState {
	c := *p
	c.Buildings = maps.Clone(p.Buildings)
	c.Construction = slices.Clone(p.Construction)
	if p.Research != nil {
		r := *p.Research
		c.Research = &r
	}
	c.ResearchedTechs = maps.Clone(p.ResearchedTechs)
	c.UnlockedTechs = maps.Clone(p.UnlockedTechs)
	return &c
}
