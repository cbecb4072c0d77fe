package sim

import (
	"fmt"

	"github.com/vovakirdan/quaternion/internal/core"
)

// Dropped is an effect that failed validation.
type Dropped struct {
	Effect Effect
	Err    error
}

// ApplyEffects validates and applies a batch of effects in order. Each
// effect is applied whole or not at all; invalid effects are returned in
// dropped and never partially applied.
func (w *World) ApplyEffects(effects []Effect) (applied []Effect, dropped []Dropped) {
	for _, e := range effects {
		var err error
		switch {
		case w.closed:
			err = ErrClosed
		case w.state.GameOver:
			err = ErrMatchOver
		default:
			err = w.applyEffect(e)
		}
		if err != nil {
			dropped = append(dropped, Dropped{Effect: e, Err: err})
			w.log.Debug("effect dropped", "kind", e.Kind(), "source", e.Origin(), "err", err)
			continue
		}
		applied = append(applied, e)
	}
	if len(applied) > 0 {
		w.updateInstability()
	}
	return applied, dropped
}

func (w *World) applyEffect(e Effect) error {
	switch e := e.(type) {
	case AllianceFormed:
		return w.applyAlliance(e)
	case WorldEvent:
		return w.applyWorldEvent(e)
	case TileDiscovered:
		return w.applyTile(e)
	case OfferCreated:
		return w.applyOffer(e)
	case TechUnlocked:
		return w.applyUnlock(e)
	case NarrativeBeat:
		if e.Text == "" {
			return fmt.Errorf("%w: empty narrative", ErrInvalidEffect)
		}
		w.state.Narrative = appendCapped(w.state.Narrative, e.Text, maxNarrative)
		return nil
	case ResourceDelta:
		p, err := w.activePlayer(e.PlayerID)
		if err != nil {
			return err
		}
		next := p.Resources.Add(e.Delta)
		if !next.NonNegative() {
			return fmt.Errorf("%w: %s would go negative: %v", ErrUnaffordable, e.PlayerID, next)
		}
		p.Resources = next
		return nil
	case MoralShift:
		p, err := w.activePlayer(e.PlayerID)
		if err != nil {
			return err
		}
		w.shiftMoral(p, e.Delta, e.Ethical)
		return nil
	case VictoryClaim:
		return w.applyClaim(e)
	default:
		return fmt.Errorf("%w: unknown effect %T", ErrInvalidEffect, e)
	}
}

func (w *World) activePlayer(id core.PlayerID) (*PlayerState, error) {
	p := w.state.Players[id]
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlayer, id)
	}
	if p.Eliminated {
		return nil, fmt.Errorf("%w: %s", ErrEliminated, id)
	}
	return p, nil
}

func (w *World) applyAlliance(e AllianceFormed) error {
	if e.A == e.B {
		return fmt.Errorf("%w: alliance with self", ErrInvalidEffect)
	}
	if _, err := w.activePlayer(e.A); err != nil {
		return err
	}
	if _, err := w.activePlayer(e.B); err != nil {
		return err
	}
	if w.state.Allied(e.A, e.B) {
		return fmt.Errorf("%w: %s and %s already allied", ErrInvalidEffect, e.A, e.B)
	}
	a, b := e.A, e.B
	if b < a {
		a, b = b, a
	}
	w.state.Alliances = append(w.state.Alliances, Alliance{A: a, B: b, Since: w.state.GameTime})
	return nil
}

func (w *World) applyWorldEvent(e WorldEvent) error {
	if e.Severity < 0 {
		return fmt.Errorf("%w: negative severity", ErrInvalidEffect)
	}
	s := w.state
	ids := make([]core.PlayerID, 0, len(e.Deltas))
	for _, id := range s.PlayerOrder {
		delta, ok := e.Deltas[id]
		if !ok {
			continue
		}
		p, err := w.activePlayer(id)
		if err != nil {
			return err
		}
		if !p.Resources.Add(delta).NonNegative() {
			return fmt.Errorf("%w: event %s overdraws %s", ErrUnaffordable, e.ID, id)
		}
		ids = append(ids, id)
	}
	if len(ids) != len(e.Deltas) {
		return fmt.Errorf("%w: event %s targets unknown players", ErrUnknownPlayer, e.ID)
	}

	for _, id := range ids {
		s.Players[id].Resources = s.Players[id].Resources.Add(e.Deltas[id])
	}
	if e.Hostile {
		s.Hostility += e.Severity
	}
	s.Events = appendCapped(s.Events, EventRecord{
		ID:       e.ID,
		Kind:     e.Name,
		Severity: e.Severity,
		Hostile:  e.Hostile,
		At:       s.GameTime,
	}, maxEventRecords)
	return nil
}

func (w *World) applyTile(e TileDiscovered) error {
	s := w.state
	t := e.Tile
	if !s.Config.Bounds().Contains(t.Pos) {
		return fmt.Errorf("%w: tile %v out of bounds", ErrInvalidEffect, t.Pos)
	}
	if !t.Cache.NonNegative() {
		return fmt.Errorf("%w: negative cache", ErrInvalidEffect)
	}
	p, err := w.activePlayer(t.DiscoveredBy)
	if err != nil {
		return err
	}
	for _, known := range s.Tiles {
		if known.Pos == t.Pos {
			return fmt.Errorf("%w: tile %v already discovered", ErrInvalidEffect, t.Pos)
		}
	}
	s.Tiles = append(s.Tiles, t)
	p.Resources = p.Resources.Add(t.Cache)
	return nil
}

func (w *World) applyOffer(e OfferCreated) error {
	o := e.Offer
	if o.ID == "" {
		return fmt.Errorf("%w: offer without id", ErrInvalidEffect)
	}
	if _, err := w.activePlayer(o.PlayerID); err != nil {
		return err
	}
	if o.Source == MarketSource {
		return nil
	}
	if !o.Give.NonNegative() || !o.Get.NonNegative() {
		return fmt.Errorf("%w: offer %s has negative terms", ErrInvalidEffect, o.ID)
	}
	if o.ExpiresAt <= w.state.GameTime {
		return fmt.Errorf("%w: offer %s", ErrExpired, o.ID)
	}
	if w.state.OfferByID(o.ID) >= 0 {
		return fmt.Errorf("%w: duplicate offer %s", ErrInvalidEffect, o.ID)
	}
	w.state.Offers = append(w.state.Offers, o)
	return nil
}

func (w *World) applyUnlock(e TechUnlocked) error {
	p, err := w.activePlayer(e.PlayerID)
	if err != nil {
		return err
	}
	def, ok := w.tables.Techs[e.Tech]
	if !ok {
		return fmt.Errorf("%w: unknown tech %q", ErrInvalidEffect, e.Tech)
	}
	if !def.RequiresUnlock {
		return fmt.Errorf("%w: %s is not gated", ErrInvalidEffect, e.Tech)
	}
	if p.UnlockedTechs[e.Tech] {
		return fmt.Errorf("%w: %s already unlocked for %s", ErrInvalidEffect, e.Tech, e.PlayerID)
	}
	p.UnlockedTechs[e.Tech] = true
	return nil
}

func (w *World) applyClaim(e VictoryClaim) error {
	if e.ClaimID == "" {
		return fmt.Errorf("%w: claim without id", ErrInvalidEffect)
	}
	if _, err := w.activePlayer(e.PlayerID); err != nil {
		return err
	}
	for _, c := range w.state.PendingClaims {
		if c.ClaimID == e.ClaimID && c.PlayerID == e.PlayerID {
			return fmt.Errorf("%w: claim %s already pending", ErrInvalidEffect, e.ClaimID)
		}
	}
	w.state.PendingClaims = append(w.state.PendingClaims, e.Claim)
	return nil
}

func appendCapped[T any](s []T, v T, limit int) []T {
	s = append(s, v)
	if len(s) > limit {
		s = append(s[:0:0], s[len(s)-limit:]...)
	}
	return s
}
