package ai

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/registry"
	"github.com/vovakirdan/quaternion/internal/sim"
)

func init() {
	registry.Register(DungeonMaster, "Dungeon Master", func(env registry.Env) registry.Subsystem {
		return NewDungeonMaster(env)
	})
}

type tileKind struct {
	Kind  string
	Cache core.Resources
	Text  string
}

var tileKinds = map[string][]tileKind{
	"continental": {
		{Kind: "ruins", Cache: core.Resources{Data: 25}, Text: "ruins of a forgotten archive"},
		{Kind: "grove", Cache: core.Resources{Biomass: 25}, Text: "an untouched grove"},
		{Kind: "vein", Cache: core.Resources{Ore: 25}, Text: "a surface ore vein"},
	},
	"archipelago": {
		{Kind: "reef", Cache: core.Resources{Biomass: 30}, Text: "a living reef"},
		{Kind: "wreck", Cache: core.Resources{Ore: 15, Data: 10}, Text: "a drowned freighter"},
		{Kind: "geyser", Cache: core.Resources{Energy: 25}, Text: "a thermal geyser"},
	},
	"highlands": {
		{Kind: "cavern", Cache: core.Resources{Ore: 35}, Text: "a crystal cavern"},
		{Kind: "observatory", Cache: core.Resources{Data: 20}, Text: "an abandoned observatory"},
		{Kind: "spring", Cache: core.Resources{Biomass: 15, Energy: 10}, Text: "a hot spring"},
	},
	"wasteland": {
		{Kind: "crater", Cache: core.Resources{Ore: 20, Energy: 10}, Text: "a fresh impact crater"},
		{Kind: "bunker", Cache: core.Resources{Data: 30}, Text: "a sealed bunker"},
		{Kind: "oasis", Cache: core.Resources{Biomass: 30}, Text: "a hidden oasis"},
	},
}

// DungeonMasterSubsystem paces exploration. Each activation reveals a tile
// for the player who most needs a lift and narrates the find. When the
// world is unstable the caches grow to pull players back from the brink.
type DungeonMasterSubsystem struct {
	rng   *rand.Rand
	log   *log.Logger
	kinds []tileKind
	turn  int
}

// NewDungeonMaster creates the narrative tile generator.
func NewDungeonMaster(env registry.Env) *DungeonMasterSubsystem {
	kinds, ok := tileKinds[env.MapType]
	if !ok {
		kinds = tileKinds["continental"]
	}
	return &DungeonMasterSubsystem{
		rng:   env.Rand(DungeonMaster),
		log:   env.Log,
		kinds: kinds,
	}
}

func (d *DungeonMasterSubsystem) Name() string { return DungeonMaster }

// Run reveals one tile. Players take turns except that anyone trailing the
// leader's win progress jumps the queue.
func (d *DungeonMasterSubsystem) Run(_ time.Time, snap *sim.WorldState) ([]sim.Effect, error) {
	players := activePlayers(snap)
	if len(players) == 0 {
		return nil, nil
	}
	target := players[d.turn%len(players)]
	d.turn++
	if lagger := trailing(snap, players); lagger != nil {
		target = lagger
	}

	pos, ok := d.freeTile(snap)
	if !ok {
		return nil, nil
	}
	kind := pick(d.rng, d.kinds)
	boost := 1 + min(snap.Instability, 2)

	d.log.Debug("tile revealed", "player", target.ID, "kind", kind.Kind, "pos", pos)
	return []sim.Effect{
		sim.TileDiscovered{
			Meta: meta(DungeonMaster),
			Tile: sim.Tile{
				Pos:          pos,
				Kind:         kind.Kind,
				Cache:        kind.Cache.Scale(boost),
				DiscoveredBy: target.ID,
			},
		},
		sim.NarrativeBeat{
			Meta:     meta(DungeonMaster),
			PlayerID: target.ID,
			Text:     fmt.Sprintf("Scouts of %s stumble upon %s.", target.ID, kind.Text),
		},
	}, nil
}

// freeTile picks an undiscovered position, giving up after a few tries on
// a crowded map.
func (d *DungeonMasterSubsystem) freeTile(snap *sim.WorldState) (core.Point, bool) {
	bounds := snap.Config.Bounds()
	taken := make(map[core.Point]bool, len(snap.Tiles)+1)
	for _, t := range snap.Tiles {
		taken[t.Pos] = true
	}
	taken[snap.ContestedPoint] = true
	for range 16 {
		p := core.Point{X: d.rng.Intn(bounds.W), Y: d.rng.Intn(bounds.H)}
		if !taken[p] {
			return p, true
		}
	}
	return core.Point{}, false
}

// trailing returns the player furthest behind the leader of any track, if
// they are behind by more than half the threshold.
func trailing(snap *sim.WorldState, players []*sim.PlayerState) *sim.PlayerState {
	var worst *sim.PlayerState
	var gap float64
	for _, tr := range snap.WinConditions {
		if tr.Threshold <= 0 || tr.Progress < tr.Threshold/2 {
			continue
		}
		for _, p := range players {
			if g := tr.Progress - tr.PerPlayer[p.ID]; g > tr.Threshold/2 && g > gap {
				worst, gap = p, g
			}
		}
	}
	return worst
}
