package sim

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/vovakirdan/quaternion/internal/config"
	"github.com/vovakirdan/quaternion/internal/core"
)

// ActionHandler applies an action type the world does not handle itself,
// such as economy decisions. It runs inside the tick and must return an
// error without mutating anything when the action is rejected.
type ActionHandler func(a core.PlayerAction) error

// Rejection records an action that failed validation.
type Rejection struct {
	Tick   uint64            `json:"tick"`
	Action core.PlayerAction `json:"action"`
	Reason string            `json:"reason"`
	Err    error             `json:"-"`
}

// Option configures a World.
type Option func(*World)

// WithLogger sets the logger used for dropped effects and rejections.
func WithLogger(l *log.Logger) Option {
	return func(w *World) { w.log = l }
}

// World owns the authoritative WorldState. Tick, ApplyEffects, and the
// ledger methods must be called from a single goroutine; Enqueue is safe
// for concurrent use.
type World struct {
	mu      sync.Mutex // guards queue, batch and sealing
	queue   []queuedAction
	batch   uint64
	sealing bool

	state      *WorldState
	tables     *config.Tables
	rng        *rand.Rand
	handlers   map[core.ActionType]ActionHandler
	rejections []Rejection
	closed     bool
	log        *log.Logger
}

// New creates a world for the given match. Players are added with
// AddPlayer.
func New(cfg core.MatchConfig, tables *config.Tables, opts ...Option) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if tables == nil {
		return nil, fmt.Errorf("sim: tables are required")
	}

	v := tables.Victory
	w := &World{
		tables:   tables,
		rng:      rand.New(rand.NewSource(core.DeriveSeed(cfg.Seed, "world"))),
		handlers: make(map[core.ActionType]ActionHandler),
		log:      log.New(io.Discard),
		state: &WorldState{
			Config:         cfg,
			Players:        make(map[core.PlayerID]*PlayerState),
			ContestedPoint: cfg.Bounds().Center(),
			WinConditions: []WinConditionTracker{
				newTracker(TrackEquilibrium, v.Equilibrium.Seconds),
				newTracker(TrackTechnological, 1),
				newTracker(TrackTerritorial, v.Territorial.Seconds),
				newTracker(TrackMoral, v.Moral.Alignment),
			},
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func newTracker(track Track, threshold float64) WinConditionTracker {
	return WinConditionTracker{
		Track:     track,
		Threshold: threshold,
		PerPlayer: make(map[core.PlayerID]float64),
	}
}

// Handle registers the handler for an action type the world delegates.
func (w *World) Handle(t core.ActionType, h ActionHandler) {
	w.handlers[t] = h
}

// Tables returns the balance tables the world was created with.
func (w *World) Tables() *config.Tables {
	return w.tables
}

// AddPlayer seats a new player with the starting kit.
func (w *World) AddPlayer(id core.PlayerID, ai bool) error {
	if w.closed {
		return ErrClosed
	}
	if w.state.GameOver {
		return ErrMatchOver
	}
	if id == "" {
		return fmt.Errorf("%w: empty player id", ErrUnknownPlayer)
	}
	if _, ok := w.state.Players[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePlayer, id)
	}

	start := w.tables.Start
	p := &PlayerState{
		ID:              id,
		AI:              ai,
		Resources:       start.Resources,
		Population:      Population{Current: start.Population, Max: start.PopulationMax},
		Buildings:       make(map[core.BuildingID]int),
		ResearchedTechs: make(map[core.TechID]bool),
		UnlockedTechs:   make(map[core.TechID]bool),
		BaseHP:          start.BaseHP,
	}
	grant := func(counts map[core.BuildingID]int) {
		for bid, n := range counts {
			p.Buildings[bid] += n
			p.Population.Max += float64(n) * w.tables.Buildings[bid].Housing
		}
	}
	grant(start.Buildings)
	if ai {
		grant(start.AIBuildings)
	} else if w.state.Config.Mode == core.ModeCampaign {
		p.Resources = p.Resources.Add(start.CampaignBonus)
	}

	w.state.Players[id] = p
	w.state.PlayerOrder = append(w.state.PlayerOrder, id)
	sort.Slice(w.state.PlayerOrder, func(i, j int) bool {
		return w.state.PlayerOrder[i] < w.state.PlayerOrder[j]
	})
	w.updateInstability()
	return nil
}

// Tick advances the simulation by dt seconds. Queued actions are applied
// first, in order, then production, construction, research, population,
// territory, and instability are integrated.
func (w *World) Tick(dt float64) error {
	if w.closed {
		return ErrClosed
	}
	s := w.state
	if s.GameOver {
		return ErrMatchOver
	}
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return fmt.Errorf("sim: invalid timestep %v", dt)
	}

	s.Tick++
	w.drainActions()

	for _, id := range s.PlayerOrder {
		p := s.Players[id]
		if p.Eliminated {
			continue
		}
		w.advanceConstruction(p, dt)
		w.advanceResearch(p, dt)
		w.produce(p, dt)
		w.grow(p, dt)
	}

	s.GameTime += dt
	w.expireOffers()
	w.updateControl()
	if hl := w.tables.Instability.HostilityHalfLife; hl > 0 {
		s.Hostility *= math.Exp(-math.Ln2 * dt / hl)
	}
	w.updateInstability()

	return w.checkInvariants()
}

func (w *World) advanceConstruction(p *PlayerState, dt float64) {
	kept := p.Construction[:0]
	for _, job := range p.Construction {
		job.Remaining -= dt
		if job.Remaining > 0 {
			kept = append(kept, job)
			continue
		}
		p.Buildings[job.Building]++
		p.Population.Max += w.tables.Buildings[job.Building].Housing
	}
	p.Construction = kept
}

func (w *World) advanceResearch(p *PlayerState, dt float64) {
	if p.Research == nil {
		return
	}
	p.Research.Remaining -= dt
	if p.Research.Remaining <= 0 {
		p.ResearchedTechs[p.Research.Tech] = true
		p.Research = nil
	}
}

// ProductionRate returns a player's output per second including tech
// bonuses.
func (w *World) ProductionRate(p *PlayerState) core.Resources {
	var rate core.Resources
	for _, bid := range w.tables.BuildingIDs() {
		if n := p.Buildings[bid]; n > 0 {
			rate = rate.Add(w.tables.Buildings[bid].Produces.Scale(float64(n)))
		}
	}
	mult := core.Uniform(1)
	for _, tid := range w.tables.TechIDs() {
		if p.ResearchedTechs[tid] {
			mult = mult.Add(w.tables.Techs[tid].Bonus)
		}
	}
	return rate.Mul(mult)
}

func (w *World) produce(p *PlayerState, dt float64) {
	gain := w.ProductionRate(p).Scale(dt)
	loss := p.Resources.Mul(w.tables.Decay).Scale(dt)
	p.Resources = p.Resources.Add(gain).Sub(loss).Positive()
}

func (w *World) expireOffers() {
	s := w.state
	kept := s.Offers[:0]
	for _, o := range s.Offers {
		if o.ExpiresAt > s.GameTime {
			kept = append(kept, o)
		}
	}
	s.Offers = kept
}

// updateControl hands the contested point to the player with the strictly
// largest garrison. Ties leave it uncontrolled.
func (w *World) updateControl() {
	s := w.state
	var leader core.PlayerID
	best, tied := 0, false
	for _, id := range s.PlayerOrder {
		p := s.Players[id]
		if p.Eliminated || p.Garrison == 0 {
			continue
		}
		switch {
		case p.Garrison > best:
			leader, best, tied = id, p.Garrison, false
		case p.Garrison == best:
			tied = true
		}
	}
	if tied {
		leader = ""
	}
	s.Controller = leader
}

// updateInstability recomputes instability from the mean resource
// imbalance of active players and the current hostility.
func (w *World) updateInstability() {
	s := w.state
	var sum float64
	var n int
	for _, id := range s.PlayerOrder {
		p := s.Players[id]
		if p.Eliminated {
			continue
		}
		sum += p.Resources.Imbalance()
		n++
	}
	var imbalance float64
	if n > 0 {
		imbalance = sum / float64(n)
	}
	cfg := w.tables.Instability
	s.Instability = cfg.ImbalanceWeight*imbalance + cfg.HostilityWeight*s.Hostility
}

func (w *World) checkInvariants() error {
	for _, id := range w.state.PlayerOrder {
		p := w.state.Players[id]
		if !p.Resources.NonNegative() {
			return fmt.Errorf("%w: %s has negative resources %v", ErrInvariant, id, p.Resources)
		}
		if p.Garrison < 0 || p.BaseHP < 0 {
			return fmt.Errorf("%w: %s garrison=%d base=%.1f", ErrInvariant, id, p.Garrison, p.BaseHP)
		}
	}
	return nil
}

// Conclude records the end of the match. It succeeds exactly once.
func (w *World) Conclude(sc EndgameScenario) error {
	s := w.state
	if s.GameOver {
		return ErrMatchOver
	}
	sc.Tick = s.Tick
	sc.Elapsed = s.GameTime
	if sc.FinalResources == nil {
		sc.FinalResources = make(map[core.PlayerID]core.Resources, len(s.Players))
		for id, p := range s.Players {
			sc.FinalResources[id] = p.Resources
		}
	}
	s.GameOver = true
	s.Winner = sc.Winner
	s.Endgame = &sc
	return nil
}

// State returns the live world state. It is only for code running inside
// the tick pipeline; everything else uses Snapshot.
func (w *World) State() *WorldState {
	return w.state
}

// Snapshot returns a deep copy of the world state.
func (w *World) Snapshot() *WorldState {
	return w.state.Clone()
}

// DrainRejections returns and clears the rejections recorded since the
// last call.
func (w *World) DrainRejections() []Rejection {
	r := w.rejections
	w.rejections = nil
	return r
}

// Close marks the world closed. Further ticks fail with ErrClosed.
func (w *World) Close() {
	w.closed = true
}

// grow adds population up to the cap. Growth is paid in biomass and stalls
// while the player cannot afford it.
func (w *World) grow(p *PlayerState, dt float64) {
	growth := math.Min(p.Population.Max-p.Population.Current, w.tables.Population.GrowthPerSecond*dt)
	if growth <= 0 {
		return
	}
	cost := core.Resources{Biomass: growth * w.tables.Population.BiomassPerUnit}
	if err := w.debit(p, cost); err != nil {
		return
	}
	p.Population.Current += growth
}
