package economy

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/vovakirdan/quaternion/internal/config"
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/sim"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func at(sec float64) time.Time {
	return epoch.Add(seconds(sec))
}

func setup(t *testing.T, opts ...Option) (*Economy, *sim.World) {
	t.Helper()
	tables, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}
	return setupWith(t, tables, opts...)
}

func setupWith(t *testing.T, tables *config.Tables, opts ...Option) (*Economy, *sim.World) {
	t.Helper()
	w, err := sim.New(core.DefaultMatchConfig(), tables)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.AddPlayer("player-1", false); err != nil {
		t.Fatal(err)
	}
	if err := w.AddPlayer("ai-1", true); err != nil {
		t.Fatal(err)
	}
	e := New(tables, w, opts...)
	e.Initialize(42, epoch)
	return e, w
}

func balance(t *testing.T, w *sim.World, id core.PlayerID) core.Resources {
	t.Helper()
	r, err := w.Balance(id)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestUninitializedEconomyIsInert(t *testing.T) {
	tables, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}
	w, _ := sim.New(core.DefaultMatchConfig(), tables)
	e := New(tables, w)
	if e.Due(at(1000)) {
		t.Fatal("Due before Initialize")
	}
	if got := e.Update(at(1000), w.Snapshot()); got != nil {
		t.Fatalf("Update before Initialize = %v", got)
	}
	if _, err := e.ExecuteAllocationDecision("player-1", "x", "trade"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("err = %v", err)
	}
}

func TestShocksHitEveryActivePlayer(t *testing.T) {
	e, w := setup(t)
	if e.Due(at(29)) {
		t.Fatal("due before the advisor's first interval")
	}
	if effects := e.Update(at(29), w.Snapshot()); len(effects) != 0 {
		t.Fatalf("effects before any schedule opened: %v", effects)
	}

	effects := e.Update(at(50), w.Snapshot())
	var deltas []sim.ResourceDelta
	for _, eff := range effects {
		if d, ok := eff.(sim.ResourceDelta); ok {
			deltas = append(deltas, d)
		}
	}
	if len(deltas) != 2 {
		t.Fatalf("shock deltas = %d, want one per player", len(deltas))
	}
	for _, d := range deltas {
		if d.Origin() != Source || d.Delta.IsZero() {
			t.Fatalf("delta = %+v", d)
		}
	}
	if _, dropped := w.ApplyEffects(effects); len(dropped) != 0 {
		t.Fatalf("dropped: %v", dropped[0].Err)
	}
	if got := len(e.ActiveEvents()); got != 1 {
		t.Fatalf("active events = %d", got)
	}

	e.Update(at(80), w.Snapshot())
	if got := len(e.ActiveEvents()); got != 0 {
		t.Fatalf("active events after expiry = %d", got)
	}
}

func TestAllocationPuzzle(t *testing.T) {
	e, w := setup(t)
	e.Update(at(70), w.Snapshot())

	puzzles := e.ActivePuzzles()
	if len(puzzles) != 1 || puzzles[0].PlayerID != "player-1" {
		t.Fatalf("puzzles = %+v, want one for the human", puzzles)
	}
	pz := puzzles[0]

	t.Run("rejections", func(t *testing.T) {
		tests := []struct {
			name   string
			player core.PlayerID
			puzzle string
			option string
			want   error
		}{
			{"unknown puzzle", "player-1", "nope", "trade", ErrUnknown},
			{"wrong owner", "ai-1", pz.ID, "trade", ErrNotOwner},
			{"unknown option", "player-1", pz.ID, "gamble", ErrUnknownOption},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := e.ExecuteAllocationDecision(tt.player, tt.puzzle, tt.option); !errors.Is(err, tt.want) {
					t.Fatalf("err = %v, want %v", err, tt.want)
				}
			})
		}
	})

	t.Run("unaffordable leaves everything untouched", func(t *testing.T) {
		w.State().Players["player-1"].Resources = core.Resources{Energy: 5}
		_, err := e.ExecuteAllocationDecision("player-1", pz.ID, "trade")
		if !errors.Is(err, sim.ErrUnaffordable) {
			t.Fatalf("err = %v", err)
		}
		if got := balance(t, w, "player-1"); got != (core.Resources{Energy: 5}) {
			t.Fatalf("balance = %v", got)
		}
		if p, _ := e.Puzzle(pz.ID); p.Status != StatusOpen {
			t.Fatalf("status = %s", p.Status)
		}
		w.State().Players["player-1"].Resources = core.Uniform(150)
	})

	res, err := e.ExecuteAllocationDecision("player-1", pz.ID, "trade")
	if err != nil {
		t.Fatal(err)
	}
	if res.Paid != (core.Resources{Ore: 30}) || res.Received != (core.Resources{Energy: 35}) {
		t.Fatalf("result = %+v", res)
	}
	if got := balance(t, w, "player-1"); got != (core.Resources{Ore: 120, Energy: 185, Biomass: 150, Data: 150}) {
		t.Fatalf("balance = %v", got)
	}
	if _, err := e.ExecuteAllocationDecision("player-1", pz.ID, "aid"); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("second decision err = %v", err)
	}
	if len(e.ActivePuzzles()) != 0 {
		t.Fatal("resolved puzzle still active")
	}
}

func TestEthicalOptionShiftsMorals(t *testing.T) {
	e, w := setup(t)
	e.Update(at(70), w.Snapshot())
	pz := e.ActivePuzzles()[0]

	if _, err := e.ExecuteAllocationDecision("player-1", pz.ID, "aid"); err != nil {
		t.Fatal(err)
	}
	p := w.Snapshot().Player("player-1")
	if p.MoralAlignment != 6 || p.EthicalEvents != 1 {
		t.Fatalf("moral = %v events = %d", p.MoralAlignment, p.EthicalEvents)
	}
}

func TestPuzzleExpires(t *testing.T) {
	e, w := setup(t)
	e.Update(at(70), w.Snapshot())
	pz := e.ActivePuzzles()[0]

	e.Update(at(115), w.Snapshot())
	if _, err := e.ExecuteAllocationDecision("player-1", pz.ID, "trade"); !errors.Is(err, ErrExpired) {
		t.Fatalf("err = %v", err)
	}
	if got, _ := e.Puzzle(pz.ID); got.Status != StatusExpired {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestAdvanceExpiresWithoutSchedules(t *testing.T) {
	e, w := setup(t)
	e.Update(at(40), w.Snapshot())
	e.Update(at(70), w.Snapshot())
	pz := e.ActivePuzzles()[0]
	offer := e.MarketOffers()[0]
	e.Advance(at(118))
	if len(e.ActivePuzzles()) != 0 {
		t.Fatal("puzzle past its deadline is still listed")
	}
	if _, err := e.ExecuteAllocationDecision("player-1", pz.ID, "exploit"); !errors.Is(err, ErrExpired) {
		t.Fatalf("err = %v, want ErrExpired", err)
	}
	if got, _ := e.Offer(offer.ID); got.Status != StatusExpired {
		t.Fatalf("offer status = %s, want expired", got.Status)
	}

	e.Advance(at(10))
	if got, _ := e.Puzzle(pz.ID); got.Status != StatusExpired {
		t.Fatal("the clock must not move backwards")
	}
}

func TestPuzzleFrequency(t *testing.T) {
	e, w := setup(t, WithPuzzleFrequency(2))
	e.Update(at(35), w.Snapshot())
	if len(e.ActivePuzzles()) != 1 {
		t.Fatal("doubled frequency should produce a puzzle at 35s")
	}
}

func TestMarketOffers(t *testing.T) {
	tables, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}
	tables.Economy.Market.Duration = 1000
	e, w := setupWith(t, tables)

	effects := e.Update(at(40), w.Snapshot())
	var announced []sim.OfferCreated
	for _, eff := range effects {
		if oc, ok := eff.(sim.OfferCreated); ok {
			announced = append(announced, oc)
		}
	}
	if len(announced) != 1 || announced[0].Offer.Source != sim.MarketSource {
		t.Fatalf("announcements = %+v", announced)
	}
	if _, dropped := w.ApplyEffects(effects); len(dropped) != 0 {
		t.Fatalf("dropped: %v", dropped[0].Err)
	}
	if len(w.Snapshot().Offers) != 0 {
		t.Fatal("market offer stored in the world")
	}

	for _, sec := range []float64{80, 120, 160} {
		e.Update(at(sec), w.Snapshot())
	}
	if got := len(e.MarketOffers()); got != tables.Economy.Market.MaxOpen {
		t.Fatalf("open offers = %d, want cap %d", got, tables.Economy.Market.MaxOpen)
	}
}

func TestAcceptMarketOffer(t *testing.T) {
	tests := []struct {
		name    string
		risk    float64
		penalty bool
	}{
		{"clean deal", 0, false},
		{"deal goes wrong", 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, w := setup(t)
			e.Update(at(40), w.Snapshot())
			e.offers[0].Risk = tt.risk
			o := e.MarketOffers()[0]
			before := balance(t, w, "player-1")

			res, err := e.AcceptMarketOffer("player-1", o.ID)
			if err != nil {
				t.Fatal(err)
			}
			if res.Penalty != tt.penalty {
				t.Fatalf("penalty = %v", res.Penalty)
			}
			want := before.Sub(o.Cost)
			if !tt.penalty {
				want = want.Add(o.Reward)
			}
			if got := balance(t, w, "player-1"); got != want {
				t.Fatalf("balance = %v, want %v", got, want)
			}
			moral := w.Snapshot().Player("player-1").MoralAlignment
			if tt.penalty && moral != -o.Penalty {
				t.Fatalf("moral = %v, want %v", moral, -o.Penalty)
			}
			if !tt.penalty && moral != 0 {
				t.Fatalf("moral = %v on a clean deal", moral)
			}

			if _, err := e.AcceptMarketOffer("player-1", o.ID); !errors.Is(err, ErrAlreadyResolved) {
				t.Fatalf("second accept err = %v", err)
			}
		})
	}
}

func TestAdvisor(t *testing.T) {
	e, w := setup(t)
	if _, ok := e.Advice("player-1"); ok {
		t.Fatal("advice before the first interval")
	}
	e.Update(at(30), w.Snapshot())
	a, ok := e.Advice("player-1")
	if !ok || a.Posture != PostureBalanced {
		t.Fatalf("advice = %+v", a)
	}
	if _, ok := e.Advice("ai-1"); ok {
		t.Fatal("AI players are not advised")
	}

	tests := []struct {
		name string
		r    core.Resources
		want Posture
	}{
		{"balanced", core.Uniform(100), PostureBalanced},
		{"skewed", core.Resources{Ore: 150, Energy: 100, Biomass: 120, Data: 120}, PostureSkewed},
		{"critical", core.Resources{Ore: 400, Energy: 50, Biomass: 100, Data: 100}, PostureCritical},
		{"starved", core.Resources{Ore: 100, Energy: 5, Biomass: 100, Data: 100}, PostureStarved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.assess("player-1", tt.r).Posture; got != tt.want {
				t.Fatalf("posture = %s, want %s (imbalance %.2f)", got, tt.want, tt.r.Imbalance())
			}
		})
	}
}

func TestEconomyIsDeterministic(t *testing.T) {
	run := func() ([]sim.Effect, []AllocationPuzzle, []MarketOffer) {
		e, w := setup(t)
		var effects []sim.Effect
		for sec := 0.0; sec <= 300; sec += 10 {
			effects = append(effects, e.Update(at(sec), w.Snapshot())...)
		}
		return effects, e.ActivePuzzles(), e.MarketOffers()
	}
	e1, p1, o1 := run()
	e2, p2, o2 := run()
	if !reflect.DeepEqual(e1, e2) || !reflect.DeepEqual(p1, p2) || !reflect.DeepEqual(o1, o2) {
		t.Fatal("same seed produced different economies")
	}
}
