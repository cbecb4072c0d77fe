package sim

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
	"sort"

	"github.com/vovakirdan/quaternion/internal/core"
)

// Digest returns a hex SHA-256 over the canonical encoding of the world
// state. Two worlds with the same seed, tables, and action stream produce
// the same digest at every tick.
func (w *World) Digest() string {
	return w.state.Digest()
}

// Digest hashes the state. Maps are walked in sorted key order and floats
// are hashed by their IEEE-754 bits.
func (s *WorldState) Digest() string {
	d := digestWriter{h: sha256.New()}

	d.u64(uint64(s.Config.Seed))
	d.str(string(s.Config.Mode))
	d.u64(s.Tick)
	d.f64(s.GameTime)
	d.f64(s.Instability)
	d.f64(s.Hostility)

	d.u64(uint64(len(s.PlayerOrder)))
	for _, id := range s.PlayerOrder {
		p := s.Players[id]
		if p == nil {
			// Absent players hash as their id alone.
			d.flag(false)
			d.str(string(id))
			continue
		}
		d.flag(true)
		d.player(p)
	}

	for _, t := range s.WinConditions {
		d.str(string(t.Track))
		d.f64(t.Progress)
		d.str(string(t.Leader))
		for _, id := range s.PlayerOrder {
			d.f64(t.PerPlayer[id])
		}
	}

	d.i64(int64(s.ContestedPoint.X))
	d.i64(int64(s.ContestedPoint.Y))
	d.str(string(s.Controller))

	d.u64(uint64(len(s.Alliances)))
	for _, a := range s.Alliances {
		d.str(string(a.A))
		d.str(string(a.B))
		d.f64(a.Since)
	}
	d.u64(uint64(len(s.Tiles)))
	for _, t := range s.Tiles {
		d.i64(int64(t.Pos.X))
		d.i64(int64(t.Pos.Y))
		d.str(t.Kind)
		d.resources(t.Cache)
		d.str(string(t.DiscoveredBy))
	}
	d.u64(uint64(len(s.Offers)))
	for _, o := range s.Offers {
		d.str(o.ID)
		d.str(o.Source)
		d.str(string(o.PlayerID))
		d.resources(o.Give)
		d.resources(o.Get)
		d.f64(o.Moral)
		d.f64(o.ExpiresAt)
	}
	d.u64(uint64(len(s.PendingClaims)))
	for _, c := range s.PendingClaims {
		d.str(c.ClaimID)
		d.str(string(c.PlayerID))
		d.str(c.Condition)
	}
	d.u64(uint64(len(s.Events)))
	for _, e := range s.Events {
		d.str(e.ID)
		d.str(e.Kind)
		d.f64(e.Severity)
		d.flag(e.Hostile)
		d.f64(e.At)
	}
	d.u64(uint64(len(s.Narrative)))
	for _, n := range s.Narrative {
		d.str(n)
	}

	d.flag(s.GameOver)
	d.str(string(s.Winner))
	if s.Endgame != nil {
		d.str(string(s.Endgame.Outcome))
		d.str(string(s.Endgame.Track))
		d.str(s.Endgame.ClaimID)
	}
	return hex.EncodeToString(d.h.Sum(nil))
}

type digestWriter struct {
	h   hash.Hash
	tmp [8]byte
}

func (d *digestWriter) u64(v uint64) {
	binary.LittleEndian.PutUint64(d.tmp[:], v)
	d.h.Write(d.tmp[:])
}

func (d *digestWriter) i64(v int64) { d.u64(uint64(v)) }

func (d *digestWriter) f64(v float64) { d.u64(math.Float64bits(v)) }

func (d *digestWriter) flag(v bool) {
	if v {
		d.u64(1)
	} else {
		d.u64(0)
	}
}

// str writes a length-prefixed string so adjacent fields cannot collide.
func (d *digestWriter) str(s string) {
	d.u64(uint64(len(s)))
	d.h.Write([]byte(s))
}

func (d *digestWriter) resources(r core.Resources) {
	for _, res := range core.AllResources {
		d.f64(r.Get(res))
	}
}

func (d *digestWriter) player(p *PlayerState) {
	d.str(string(p.ID))
	d.flag(p.AI)
	d.resources(p.Resources)
	d.f64(p.Population.Current)
	d.f64(p.Population.Max)

	buildings := make([]string, 0, len(p.Buildings))
	for id := range p.Buildings {
		buildings = append(buildings, string(id))
	}
	sort.Strings(buildings)
	d.u64(uint64(len(buildings)))
	for _, id := range buildings {
		d.str(id)
		d.u64(uint64(p.Buildings[core.BuildingID(id)]))
	}

	d.u64(uint64(len(p.Construction)))
	for _, job := range p.Construction {
		d.str(string(job.Building))
		d.f64(job.Remaining)
	}
	if p.Research != nil {
		d.str(string(p.Research.Tech))
		d.f64(p.Research.Remaining)
	} else {
		d.str("")
	}

	d.techSet(p.ResearchedTechs)
	d.techSet(p.UnlockedTechs)

	d.f64(p.MoralAlignment)
	d.u64(uint64(p.EthicalEvents))
	d.i64(int64(p.Garrison))
	d.f64(p.BaseHP)
	d.u64(uint64(p.Attacks))
	d.str(string(p.LastAttacker))
	d.u64(p.LastSequence)
	d.flag(p.Eliminated)
}

func (d *digestWriter) techSet(set map[core.TechID]bool) {
	ids := make([]string, 0, len(set))
	for id, ok := range set {
		if ok {
			ids = append(ids, string(id))
		}
	}
	sort.Strings(ids)
	d.u64(uint64(len(ids)))
	for _, id := range ids {
		d.str(id)
	}
}
