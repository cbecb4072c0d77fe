package sim

import (
	"fmt"

	"github.com/vovakirdan/quaternion/internal/core"
)

// Balance returns a player's current resources.
func (w *World) Balance(id core.PlayerID) (core.Resources, error) {
	p := w.state.Players[id]
	if p == nil {
		return core.Resources{}, fmt.Errorf("%w: %s", ErrUnknownPlayer, id)
	}
	return p.Resources, nil
}

// Debit removes cost from a player's balance. It fails with ErrUnaffordable
// and leaves the balance untouched if any axis would go negative.
func (w *World) Debit(id core.PlayerID, cost core.Resources) error {
	p := w.state.Players[id]
	if p == nil {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, id)
	}
	return w.debit(p, cost)
}

// Credit adds amount to a player's balance.
func (w *World) Credit(id core.PlayerID, amount core.Resources) error {
	p := w.state.Players[id]
	if p == nil {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, id)
	}
	if !amount.NonNegative() {
		return fmt.Errorf("%w: negative credit %v", ErrInvalidAction, amount)
	}
	p.Resources = p.Resources.Add(amount)
	return nil
}

// ShiftMoral moves a player's alignment within the configured bound.
func (w *World) ShiftMoral(id core.PlayerID, delta float64, ethical bool) error {
	p := w.state.Players[id]
	if p == nil {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, id)
	}
	w.shiftMoral(p, delta, ethical)
	return nil
}

func (w *World) debit(p *PlayerState, cost core.Resources) error {
	if !cost.NonNegative() {
		return fmt.Errorf("%w: negative cost %v", ErrInvalidAction, cost)
	}
	if !p.Resources.Covers(cost) {
		return fmt.Errorf("%w: need %v, have %v", ErrUnaffordable, cost, p.Resources)
	}
	p.Resources = p.Resources.Sub(cost)
	return nil
}

func (w *World) shiftMoral(p *PlayerState, delta float64, ethical bool) {
	bound := w.tables.Victory.Moral.Bound
	p.MoralAlignment = core.ClampF(p.MoralAlignment+delta, -bound, bound)
	if ethical {
		p.EthicalEvents++
	}
}
