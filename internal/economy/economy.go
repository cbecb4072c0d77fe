// Package economy runs the resource puzzle and advisory economy: periodic
// shocks, allocation puzzles, a black market with hidden risk, and an
// advisor. It generates on a wall-clock schedule seeded from the match
// seed, and every change it makes to a balance goes through a Ledger.
package economy

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/vovakirdan/quaternion/internal/config"
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/orchestrator"
	"github.com/vovakirdan/quaternion/internal/sim"
)

// Source is the effect origin used for everything the economy proposes.
const Source = "economy"

var (
	ErrNotInitialized  = errors.New("economy: not initialized")
	ErrUnknown         = errors.New("economy: unknown record")
	ErrExpired         = errors.New("economy: record expired")
	ErrAlreadyResolved = errors.New("economy: record already resolved")
	ErrNotOwner        = errors.New("economy: record belongs to another player")
	ErrUnknownOption   = errors.New("economy: unknown option")
)

// Ledger is the balance authority the economy debits and credits. Debit
// must fail without mutating when the balance does not cover the cost.
type Ledger interface {
	Debit(id core.PlayerID, cost core.Resources) error
	Credit(id core.PlayerID, amount core.Resources) error
	ShiftMoral(id core.PlayerID, delta float64, ethical bool) error
}

// Option configures an Economy.
type Option func(*Economy)

// WithLogger sets the economy logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Economy) { e.log = l }
}

// WithPuzzleFrequency multiplies how often puzzles are generated.
func WithPuzzleFrequency(f float64) Option {
	return func(e *Economy) {
		if f > 0 {
			e.puzzleFreq = f
		}
	}
}

// WithDifficulty scales shock severity and market risk.
func WithDifficulty(d config.Difficulty) Option {
	return func(e *Economy) { e.diff = d }
}

// Economy owns the ephemeral economy records of one match.
type Economy struct {
	cfg        config.EconomyConfig
	band       float64
	ledger     Ledger
	diff       config.Difficulty
	puzzleFreq float64
	log        *log.Logger

	rng         *rand.Rand
	initialized bool
	now         time.Time

	shockGate   orchestrator.Gate
	puzzleGate  orchestrator.Gate
	marketGate  orchestrator.Gate
	advisorGate orchestrator.Gate

	events  []*ResourceEvent
	puzzles []*AllocationPuzzle
	offers  []*MarketOffer
	advice  map[core.PlayerID]AdvisorResponse
}

// New creates an economy. It does nothing until Initialize is called.
func New(tables *config.Tables, ledger Ledger, opts ...Option) *Economy {
	e := &Economy{
		cfg:        tables.Economy,
		band:       tables.Victory.Equilibrium.Band,
		ledger:     ledger,
		diff:       config.Difficulty{Name: "normal", CooldownScale: 1, SeverityScale: 1, RiskScale: 1},
		puzzleFreq: 1,
		log:        log.New(io.Discard),
		advice:     make(map[core.PlayerID]AdvisorResponse),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Initialize seeds the random stream and starts every schedule at start.
func (e *Economy) Initialize(seed int64, start time.Time) {
	e.rng = rand.New(rand.NewSource(core.DeriveSeed(seed, Source)))
	e.now = start
	e.shockGate = orchestrator.NewGate(seconds(e.cfg.Shock.Every), start)
	e.puzzleGate = orchestrator.NewGate(seconds(e.cfg.Puzzle.Every/e.puzzleFreq), start)
	e.marketGate = orchestrator.NewGate(seconds(e.cfg.Market.Every), start)
	e.advisorGate = orchestrator.NewGate(seconds(e.cfg.Advisor.Every), start)
	e.initialized = true
}

// Due reports whether any schedule is open at now.
func (e *Economy) Due(now time.Time) bool {
	if !e.initialized {
		return false
	}
	return e.shockGate.Due(now) || e.puzzleGate.Due(now) || e.marketGate.Due(now) || e.advisorGate.Due(now)
}

// Advance moves the economy clock to now and expires every record whose
// time is up. The host calls it every frame, whether or not a schedule is
// due, so stale records can neither be listed nor resolved.
func (e *Economy) Advance(now time.Time) {
	if !e.initialized {
		return
	}
	if now.After(e.now) {
		e.now = now
	}
	e.expire()
}

// Update advances the clock and runs every schedule that is due. It
// returns the effects to apply: shock deltas and market announcements.
func (e *Economy) Update(now time.Time, snap *sim.WorldState) []sim.Effect {
	if !e.initialized {
		return nil
	}
	e.Advance(now)

	var out []sim.Effect
	if e.shockGate.Due(now) {
		e.shockGate.Advance(now)
		out = append(out, e.shock(snap)...)
	}
	if e.puzzleGate.Due(now) {
		e.puzzleGate.Advance(now)
		e.makePuzzles(snap)
	}
	if e.marketGate.Due(now) {
		e.marketGate.Advance(now)
		out = append(out, e.makeOffers(snap)...)
	}
	if e.advisorGate.Due(now) {
		e.advisorGate.Advance(now)
		e.advise(snap)
	}
	return out
}

func (e *Economy) newID() string {
	id, err := uuid.NewRandomFromReader(e.rng)
	if err != nil {
		panic(err)
	}
	return id.String()
}

func (e *Economy) expire() {
	for _, ev := range e.events {
		if ev.Status == StatusOpen && !e.now.Before(ev.ExpiresAt) {
			ev.Status = StatusExpired
		}
	}
	for _, p := range e.puzzles {
		if p.Status == StatusOpen && !e.now.Before(p.ExpiresAt) {
			p.Status = StatusExpired
			e.log.Debug("puzzle expired", "id", p.ID, "player", p.PlayerID)
		}
	}
	for _, o := range e.offers {
		if o.Status == StatusOpen && !e.now.Before(o.ExpiresAt) {
			o.Status = StatusExpired
		}
	}
}

var shockNames = map[core.Resource][2]string{
	core.Ore:     {"Ore Shortage", "Ore Glut"},
	core.Energy:  {"Brownout", "Energy Surplus"},
	core.Biomass: {"Famine", "Bumper Harvest"},
	core.Data:    {"Data Corruption", "Data Windfall"},
}

// shock hits every active player on one axis. One in four shocks is a
// boom; booms are flat so players on empty axes recover.
func (e *Economy) shock(snap *sim.WorldState) []sim.Effect {
	axis := core.AllResources[e.rng.Intn(len(core.AllResources))]
	boom := e.rng.Float64() < 0.25
	frac := -core.ClampF(e.cfg.Shock.Magnitude*e.severity(), 0, 0.5)
	name := shockNames[axis][0]
	if boom {
		frac = -frac
		name = shockNames[axis][1]
	}

	ev := &ResourceEvent{
		ID:        e.newID(),
		Name:      name,
		Axis:      axis,
		Fraction:  frac,
		StartedAt: e.now,
		ExpiresAt: e.now.Add(seconds(e.cfg.Shock.Duration)),
		Status:    StatusOpen,
	}
	e.events = append(e.events, ev)
	e.log.Debug("shock", "name", name, "axis", axis, "fraction", frac)

	var out []sim.Effect
	for _, id := range snap.PlayerOrder {
		p := snap.Players[id]
		if p.Eliminated {
			continue
		}
		amount := p.Resources.Get(axis) * frac
		if boom {
			amount = 100 * frac
		}
		if amount == 0 {
			continue
		}
		out = append(out, sim.ResourceDelta{
			Meta:     sim.Meta{Source: Source},
			PlayerID: id,
			Delta:    core.Resources{}.With(axis, amount),
			Reason:   name,
		})
	}
	return out
}

func (e *Economy) severity() float64 {
	if e.diff.SeverityScale > 0 {
		return e.diff.SeverityScale
	}
	return 1
}

func (e *Economy) makePuzzles(snap *sim.WorldState) {
	for _, id := range snap.Humans() {
		p := snap.Players[id]
		if p.Eliminated {
			continue
		}
		surplus, _ := p.Resources.Max()
		deficit, _ := p.Resources.Min()
		if surplus == deficit {
			deficit = core.AllResources[(int(surplus)+1)%len(core.AllResources)]
		}
		pz := &AllocationPuzzle{
			ID:       e.newID(),
			PlayerID: id,
			Prompt:   fmt.Sprintf("Your %s reserves are thin while %s piles up.", deficit, surplus),
			Options: []AllocationOption{
				{
					ID:     "trade",
					Label:  fmt.Sprintf("Convert %s into %s", surplus, deficit),
					Cost:   core.Resources{}.With(surplus, 30),
					Reward: core.Resources{}.With(deficit, 35),
				},
				{
					ID:      "aid",
					Label:   fmt.Sprintf("Share %s with the settlements", surplus),
					Cost:    core.Resources{}.With(surplus, 40),
					Moral:   6,
					Ethical: true,
				},
				{
					ID:     "exploit",
					Label:  fmt.Sprintf("Strip the %s reserve", deficit),
					Reward: core.Resources{}.With(deficit, 25),
					Moral:  -8,
				},
			},
			ExpiresAt: e.now.Add(seconds(e.cfg.Puzzle.Duration)),
			Status:    StatusOpen,
		}
		e.puzzles = append(e.puzzles, pz)
		e.log.Debug("puzzle", "id", pz.ID, "player", id)
	}
}

func (e *Economy) makeOffers(snap *sim.WorldState) []sim.Effect {
	var out []sim.Effect
	for _, id := range snap.Humans() {
		p := snap.Players[id]
		if p.Eliminated || e.openOffers(id) >= e.cfg.Market.MaxOpen {
			continue
		}
		give := core.AllResources[e.rng.Intn(len(core.AllResources))]
		get := core.AllResources[(int(give)+1+e.rng.Intn(len(core.AllResources)-1))%len(core.AllResources)]
		amount := float64(20 + 10*e.rng.Intn(4))
		o := &MarketOffer{
			ID:        e.newID(),
			PlayerID:  id,
			Cost:      core.Resources{}.With(give, amount),
			Reward:    core.Resources{}.With(get, amount*2),
			Risk:      core.ClampF(e.cfg.Market.Risk*e.risk(), 0, 0.95),
			Penalty:   e.cfg.Market.Penalty,
			ExpiresAt: e.now.Add(seconds(e.cfg.Market.Duration)),
			Status:    StatusOpen,
		}
		e.offers = append(e.offers, o)
		out = append(out, sim.OfferCreated{
			Meta: sim.Meta{Source: Source},
			Offer: sim.Offer{
				ID:       o.ID,
				Source:   sim.MarketSource,
				PlayerID: id,
				Give:     o.Cost,
				Get:      o.Reward,
				Moral:    -o.Penalty,
			},
		})
	}
	return out
}

func (e *Economy) risk() float64 {
	if e.diff.RiskScale > 0 {
		return e.diff.RiskScale
	}
	return 1
}

func (e *Economy) openOffers(id core.PlayerID) int {
	n := 0
	for _, o := range e.offers {
		if o.PlayerID == id && o.Status == StatusOpen {
			n++
		}
	}
	return n
}

// ActiveEvents returns the shocks that have not expired, oldest first.
func (e *Economy) ActiveEvents() []ResourceEvent {
	var out []ResourceEvent
	for _, ev := range e.events {
		if ev.Status == StatusOpen {
			out = append(out, *ev)
		}
	}
	return out
}

// ActivePuzzles returns the open puzzles, oldest first.
func (e *Economy) ActivePuzzles() []AllocationPuzzle {
	var out []AllocationPuzzle
	for _, p := range e.puzzles {
		if p.Status == StatusOpen {
			cp := *p
			cp.Options = append([]AllocationOption(nil), p.Options...)
			out = append(out, cp)
		}
	}
	return out
}

// MarketOffers returns the open black-market offers, oldest first.
func (e *Economy) MarketOffers() []MarketOffer {
	var out []MarketOffer
	for _, o := range e.offers {
		if o.Status == StatusOpen {
			out = append(out, *o)
		}
	}
	return out
}

// Advice returns the latest advisor response for a player.
func (e *Economy) Advice(id core.PlayerID) (AdvisorResponse, bool) {
	a, ok := e.advice[id]
	return a, ok
}

// Puzzle returns a puzzle by id in any status.
func (e *Economy) Puzzle(id string) (AllocationPuzzle, bool) {
	for _, p := range e.puzzles {
		if p.ID == id {
			return *p, true
		}
	}
	return AllocationPuzzle{}, false
}

// Offer returns a market offer by id in any status.
func (e *Economy) Offer(id string) (MarketOffer, bool) {
	for _, o := range e.offers {
		if o.ID == id {
			return *o, true
		}
	}
	return MarketOffer{}, false
}
