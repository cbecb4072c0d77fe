package orchestrator

import "time"

// Gate enforces a subsystem's cooldown against the wall clock.
type Gate struct {
	Cooldown     time.Duration
	NextEligible time.Time
}

// NewGate creates a gate that first opens one cooldown after start.
func NewGate(cooldown time.Duration, start time.Time) Gate {
	return Gate{Cooldown: cooldown, NextEligible: start.Add(cooldown)}
}

// Due reports whether the gate is open at now.
func (g *Gate) Due(now time.Time) bool {
	return !now.Before(g.NextEligible)
}

// Advance closes the gate until one cooldown after now. The next eligible
// time never moves backwards.
func (g *Gate) Advance(now time.Time) {
	if next := now.Add(g.Cooldown); next.After(g.NextEligible) {
		g.NextEligible = next
	}
}
