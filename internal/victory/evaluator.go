// Package victory decides when and how a match ends.
package victory

import (
	"fmt"
	"math"

	"github.com/vovakirdan/quaternion/internal/config"
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/sim"
)

// progressEpsilon absorbs floating-point drift when timed progress is
// accumulated tick by tick.
const progressEpsilon = 1e-6

// Evaluator updates win-condition progress after every tick and detects
// the terminal state. Tracks are checked in a fixed order (elimination,
// equilibrium, technological, territorial, moral, alternative) and players
// in ascending id order, so simultaneous qualifications always resolve the
// same way.
type Evaluator struct {
	cfg config.VictoryConfig
}

// New creates an evaluator for the given thresholds.
func New(cfg config.VictoryConfig) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Evaluate advances progress by dt seconds and returns the endgame if the
// match has just ended. It returns nil while the match continues and after
// it has already been concluded.
func (e *Evaluator) Evaluate(s *sim.WorldState, dt float64) *sim.EndgameScenario {
	if s.GameOver {
		return nil
	}

	e.updateEquilibrium(s, dt)
	e.updateTechnological(s)
	e.updateTerritorial(s, dt)
	e.updateMoral(s)

	for _, check := range []func(*sim.WorldState) *sim.EndgameScenario{
		e.checkElimination,
		e.checkTracker(sim.TrackEquilibrium, "held a balanced economy"),
		e.checkTracker(sim.TrackTechnological, "completed the terminal technology"),
		e.checkTracker(sim.TrackTerritorial, "held the contested point"),
		e.checkTracker(sim.TrackMoral, "became a moral beacon"),
		e.checkAlternative,
	} {
		if sc := check(s); sc != nil {
			return sc
		}
	}
	return nil
}

func (e *Evaluator) updateEquilibrium(s *sim.WorldState, dt float64) {
	eq := e.cfg.Equilibrium
	e.update(s, sim.TrackEquilibrium, func(p *sim.PlayerState, prev float64) float64 {
		r := p.Resources
		if r.Imbalance() <= eq.Band && r.Mean() >= eq.MinMean {
			return prev + dt
		}
		return 0
	})
}

func (e *Evaluator) updateTechnological(s *sim.WorldState) {
	terminal := e.cfg.Technological.Tech
	e.update(s, sim.TrackTechnological, func(p *sim.PlayerState, _ float64) float64 {
		if p.ResearchedTechs[terminal] {
			return 1
		}
		return 0
	})
}

func (e *Evaluator) updateTerritorial(s *sim.WorldState, dt float64) {
	e.update(s, sim.TrackTerritorial, func(p *sim.PlayerState, prev float64) float64 {
		if s.Controller == p.ID {
			return prev + dt
		}
		return 0
	})
}

// updateMoral reports alignment as progress once the player has enough
// qualifying ethical events.
func (e *Evaluator) updateMoral(s *sim.WorldState) {
	e.update(s, sim.TrackMoral, func(p *sim.PlayerState, _ float64) float64 {
		if p.EthicalEvents < e.cfg.Moral.Events {
			return 0
		}
		return math.Max(0, p.MoralAlignment)
	})
}

// update recomputes per-player progress for one tracker and refreshes its
// leader. Eliminated players keep no progress.
func (e *Evaluator) update(s *sim.WorldState, track sim.Track, next func(p *sim.PlayerState, prev float64) float64) {
	t := s.Tracker(track)
	if t == nil {
		return
	}
	if t.PerPlayer == nil {
		t.PerPlayer = make(map[core.PlayerID]float64)
	}
	t.Progress, t.Leader = 0, ""
	for _, id := range s.PlayerOrder {
		p := s.Players[id]
		if p.Eliminated {
			delete(t.PerPlayer, id)
			continue
		}
		v := next(p, t.PerPlayer[id])
		t.PerPlayer[id] = v
		if v > t.Progress {
			t.Progress, t.Leader = v, id
		}
	}
}

func (e *Evaluator) checkElimination(s *sim.WorldState) *sim.EndgameScenario {
	for _, id := range s.PlayerOrder {
		p := s.Players[id]
		if !p.Eliminated {
			continue
		}
		winner := p.LastAttacker
		if survivors := survivors(s); len(survivors) == 1 {
			winner = survivors[0]
		}
		return &sim.EndgameScenario{
			Outcome: sim.OutcomeDefeat,
			Track:   sim.TrackElimination,
			Winner:  winner,
			Loser:   id,
			Reason:  fmt.Sprintf("base of %s destroyed", id),
		}
	}
	return nil
}

func (e *Evaluator) checkTracker(track sim.Track, reason string) func(*sim.WorldState) *sim.EndgameScenario {
	return func(s *sim.WorldState) *sim.EndgameScenario {
		t := s.Tracker(track)
		if t == nil {
			return nil
		}
		for _, id := range s.PlayerOrder {
			v, ok := t.PerPlayer[id]
			if !ok || v+progressEpsilon < t.Threshold {
				continue
			}
			return &sim.EndgameScenario{
				Outcome: sim.OutcomeVictory,
				Track:   track,
				Winner:  id,
				Reason:  fmt.Sprintf("%s %s", id, reason),
			}
		}
		return nil
	}
}

func (e *Evaluator) checkAlternative(s *sim.WorldState) *sim.EndgameScenario {
	for _, id := range s.PlayerOrder {
		if s.Players[id].Eliminated {
			continue
		}
		for _, c := range s.PendingClaims {
			if c.PlayerID != id {
				continue
			}
			return &sim.EndgameScenario{
				Outcome: sim.OutcomeVictory,
				Track:   sim.TrackAlternative,
				Winner:  id,
				ClaimID: c.ClaimID,
				Reason:  fmt.Sprintf("%s fulfilled %s", id, c.Condition),
			}
		}
	}
	return nil
}

func survivors(s *sim.WorldState) []core.PlayerID {
	var out []core.PlayerID
	for _, id := range s.PlayerOrder {
		if !s.Players[id].Eliminated {
			out = append(out, id)
		}
	}
	return out
}
