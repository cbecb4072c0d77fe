package sim

import (
	"github.com/vovakirdan/quaternion/internal/core"
)

// EffectKind discriminates the Effect union.
type EffectKind string

const (
	KindAllianceFormed EffectKind = "alliance_formed"
	KindWorldEvent     EffectKind = "world_event"
	KindTileDiscovered EffectKind = "tile_discovered"
	KindOfferCreated   EffectKind = "offer_created"
	KindTechUnlocked   EffectKind = "tech_unlocked"
	KindNarrativeBeat  EffectKind = "narrative_beat"
	KindResourceDelta  EffectKind = "resource_delta"
	KindMoralShift     EffectKind = "moral_shift"
	KindVictoryClaim   EffectKind = "victory_claim"
)

// Effect is a proposed change to the world produced by a subsystem or the
// economy. Effects are validated and applied in batches by
// World.ApplyEffects; an effect that fails validation is dropped whole.
type Effect interface {
	Kind() EffectKind
	Origin() string
	isEffect()
}

// Meta carries the fields common to every effect.
type Meta struct {
	Source string `json:"source"`
}

// Origin returns the name of the subsystem that produced the effect.
func (m Meta) Origin() string { return m.Source }

func (Meta) isEffect() {}

// AllianceFormed binds two players.
type AllianceFormed struct {
	Meta
	A      core.PlayerID `json:"a"`
	B      core.PlayerID `json:"b"`
	Reason string        `json:"reason"`
}

// WorldEvent is an environmental event. Hostile events raise world
// hostility by their severity.
type WorldEvent struct {
	Meta
	ID       string                           `json:"id"`
	Name     string                           `json:"name"`
	Severity float64                          `json:"severity"`
	Hostile  bool                             `json:"hostile"`
	Deltas   map[core.PlayerID]core.Resources `json:"deltas,omitempty"`
}

// TileDiscovered reveals a tile and grants its cache to the discoverer.
type TileDiscovered struct {
	Meta
	Tile Tile `json:"tile"`
}

// OfferCreated proposes a trade. Market offers are held by the economy and
// only announced here; every other source is stored in the world.
type OfferCreated struct {
	Meta
	Offer Offer `json:"offer"`
}

// TechUnlocked makes a gated technology researchable for a player.
type TechUnlocked struct {
	Meta
	PlayerID core.PlayerID `json:"player_id"`
	Tech     core.TechID   `json:"tech"`
}

// NarrativeBeat is a line of story text.
type NarrativeBeat struct {
	Meta
	PlayerID core.PlayerID `json:"player_id,omitempty"`
	Text     string        `json:"text"`
}

// ResourceDelta changes a balance. A delta that would drive any axis
// negative is rejected rather than clamped.
type ResourceDelta struct {
	Meta
	PlayerID core.PlayerID  `json:"player_id"`
	Delta    core.Resources `json:"delta"`
	Reason   string         `json:"reason"`
}

// MoralShift moves a player's alignment. Ethical shifts also count toward
// the moral victory's event requirement.
type MoralShift struct {
	Meta
	PlayerID core.PlayerID `json:"player_id"`
	Delta    float64       `json:"delta"`
	Ethical  bool          `json:"ethical"`
	Reason   string        `json:"reason"`
}

// VictoryClaim queues an alternative victory for the evaluator.
type VictoryClaim struct {
	Meta
	Claim
}

func (AllianceFormed) Kind() EffectKind { return KindAllianceFormed }
func (WorldEvent) Kind() EffectKind     { return KindWorldEvent }
func (TileDiscovered) Kind() EffectKind { return KindTileDiscovered }
func (OfferCreated) Kind() EffectKind   { return KindOfferCreated }
func (TechUnlocked) Kind() EffectKind   { return KindTechUnlocked }
func (NarrativeBeat) Kind() EffectKind  { return KindNarrativeBeat }
func (ResourceDelta) Kind() EffectKind  { return KindResourceDelta }
func (MoralShift) Kind() EffectKind     { return KindMoralShift }
func (VictoryClaim) Kind() EffectKind   { return KindVictoryClaim }

// MarketSource is the Offer.Source used by the economy's black market.
const MarketSource = "market"
