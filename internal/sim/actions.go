package sim

import (
	"fmt"
	"math"
	"sort"

	"github.com/vovakirdan/quaternion/internal/core"
)

type queuedAction struct {
	batch  uint64
	action core.PlayerAction
}

// Enqueue buffers an action until the next tick boundary. It is safe to
// call from any goroutine.
func (w *World) Enqueue(a core.PlayerAction) {
	w.mu.Lock()
	w.queue = append(w.queue, queuedAction{batch: w.batch, action: a})
	w.mu.Unlock()
}

// SealBatch closes the current receipt batch. Actions enqueued after this
// call sort after every action already queued. Once a world has been
// sealed, ticks only apply sealed batches; the open batch waits for the
// next seal.
func (w *World) SealBatch() {
	w.mu.Lock()
	w.batch++
	w.sealing = true
	w.mu.Unlock()
}

// Pending returns the number of queued actions.
func (w *World) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// drainActions applies the queued actions of every sealed batch ordered by
// receipt batch, then sequence number, then actor. A world that was never
// sealed drains everything.
func (w *World) drainActions() {
	w.mu.Lock()
	var q, open []queuedAction
	for _, qa := range w.queue {
		if w.sealing && qa.batch >= w.batch {
			open = append(open, qa)
			continue
		}
		q = append(q, qa)
	}
	w.queue = open
	w.mu.Unlock()

	sort.SliceStable(q, func(i, j int) bool {
		a, b := q[i], q[j]
		if a.batch != b.batch {
			return a.batch < b.batch
		}
		if a.action.SequenceNo != b.action.SequenceNo {
			return a.action.SequenceNo < b.action.SequenceNo
		}
		return a.action.ActorID < b.action.ActorID
	})

	for _, qa := range q {
		if err := w.applyAction(qa.action); err != nil {
			w.reject(qa.action, err)
		}
	}
}

func (w *World) reject(a core.PlayerAction, err error) {
	w.rejections = append(w.rejections, Rejection{
		Tick:   w.state.Tick,
		Action: a,
		Reason: err.Error(),
		Err:    err,
	})
	w.log.Debug("action rejected", "tick", w.state.Tick, "actor", a.ActorID, "type", a.Type, "err", err)
}

// applyAction validates and applies one action. Every check runs before the
// first mutation so a rejected action leaves the world untouched.
func (w *World) applyAction(a core.PlayerAction) error {
	p := w.state.Players[a.ActorID]
	if p == nil {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, a.ActorID)
	}
	if p.Eliminated {
		return ErrEliminated
	}
	if a.SequenceNo <= p.LastSequence {
		return fmt.Errorf("%w: %d <= %d", ErrStaleSequence, a.SequenceNo, p.LastSequence)
	}

	var err error
	switch a.Type {
	case core.ActionBuild:
		err = w.build(p, a.Payload.Building)
	case core.ActionResearch:
		err = w.research(p, a.Payload.Tech)
	case core.ActionMove:
		err = w.move(p, a.Payload.Units)
	case core.ActionAttack:
		err = w.attack(p, a.Payload.Target, a.Payload.Base)
	case core.ActionAcceptOffer:
		if w.state.OfferByID(a.Payload.OfferID) >= 0 {
			err = w.acceptOffer(p, a.Payload.OfferID)
		} else {
			err = w.delegate(a)
		}
	case core.ActionAllocate:
		err = w.delegate(a)
	default:
		err = fmt.Errorf("%w: unknown type %q", ErrInvalidAction, a.Type)
	}
	if err != nil {
		return err
	}
	p.LastSequence = a.SequenceNo
	return nil
}

func (w *World) delegate(a core.PlayerAction) error {
	h, ok := w.handlers[a.Type]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, a.Type)
	}
	return h(a)
}

func (w *World) build(p *PlayerState, id core.BuildingID) error {
	def, ok := w.tables.Buildings[id]
	if !ok {
		return fmt.Errorf("%w: unknown building %q", ErrInvalidAction, id)
	}
	if len(p.Construction) >= w.tables.Start.ConstructionSlots {
		return fmt.Errorf("%w: %d buildings under construction", ErrQueueFull, len(p.Construction))
	}
	if err := w.debit(p, def.Cost); err != nil {
		return err
	}
	p.Construction = append(p.Construction, BuildJob{Building: id, Remaining: def.BuildTime})
	return nil
}

func (w *World) research(p *PlayerState, id core.TechID) error {
	def, ok := w.tables.Techs[id]
	if !ok {
		return fmt.Errorf("%w: unknown tech %q", ErrInvalidAction, id)
	}
	if p.ResearchedTechs[id] {
		return fmt.Errorf("%w: %s already researched", ErrInvalidAction, id)
	}
	if p.Research != nil {
		return fmt.Errorf("%w: researching %s", ErrQueueFull, p.Research.Tech)
	}
	for _, req := range def.Requires {
		if !p.ResearchedTechs[req] {
			return fmt.Errorf("%w: %s requires %s", ErrPrerequisite, id, req)
		}
	}
	if def.RequiresUnlock && !p.UnlockedTechs[id] {
		return fmt.Errorf("%w: %s is locked", ErrPrerequisite, id)
	}
	if err := w.debit(p, def.Cost); err != nil {
		return err
	}
	p.Research = &ResearchJob{Tech: id, Remaining: def.ResearchTime}
	return nil
}

// move stations units at the contested point, or recalls them when units
// is negative.
func (w *World) move(p *PlayerState, units int) error {
	switch {
	case units == 0:
		return fmt.Errorf("%w: move of zero units", ErrInvalidAction)
	case units > 0 && units > p.AvailableUnits():
		return fmt.Errorf("%w: %d requested, %d available", ErrInsufficientUnits, units, p.AvailableUnits())
	case units < 0 && -units > p.Garrison:
		return fmt.Errorf("%w: recall %d, %d stationed", ErrInsufficientUnits, -units, p.Garrison)
	}
	p.Garrison += units
	return nil
}

func (w *World) attack(p *PlayerState, targetID core.PlayerID, base bool) error {
	s := w.state
	target := s.Players[targetID]
	switch {
	case target == nil:
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, targetID)
	case target.ID == p.ID:
		return fmt.Errorf("%w: cannot attack yourself", ErrInvalidAction)
	case target.Eliminated:
		return fmt.Errorf("%w: %s", ErrEliminated, targetID)
	case s.Allied(p.ID, target.ID):
		return fmt.Errorf("%w: %s", ErrAllied, targetID)
	case p.Garrison == 0:
		return fmt.Errorf("%w: no garrison", ErrInsufficientUnits)
	case base && target.Garrison > 0:
		return fmt.Errorf("%w: %s still has %d defenders", ErrInvalidAction, targetID, target.Garrison)
	}
	cfg := w.tables.Territory
	if err := w.debit(p, cfg.AttackCost); err != nil {
		return err
	}

	damage := float64(p.Garrison) * cfg.AttackPower * (0.9 + 0.2*w.rng.Float64())
	if base {
		target.BaseHP = math.Max(0, target.BaseHP-damage)
		if target.BaseHP == 0 {
			target.Eliminated = true
			target.Garrison = 0
		}
	} else {
		killed := min(target.Garrison, int(math.Ceil(damage/cfg.UnitHP)))
		target.Garrison -= killed
		target.Population.Current = math.Max(0, target.Population.Current-float64(killed))
	}
	target.LastAttacker = p.ID
	p.Attacks++
	s.Hostility += cfg.HostilityPerAttack
	return nil
}

func (w *World) acceptOffer(p *PlayerState, offerID string) error {
	s := w.state
	idx := s.OfferByID(offerID)
	o := s.Offers[idx]
	if o.PlayerID != p.ID {
		return fmt.Errorf("%w: offer %s belongs to %s", ErrInvalidAction, offerID, o.PlayerID)
	}
	if o.ExpiresAt <= s.GameTime {
		return fmt.Errorf("%w: %s", ErrExpired, offerID)
	}
	if err := w.debit(p, o.Give); err != nil {
		return err
	}
	p.Resources = p.Resources.Add(o.Get)
	w.shiftMoral(p, o.Moral, o.Moral > 0)
	s.Offers = append(s.Offers[:idx], s.Offers[idx+1:]...)
	return nil
}
