package tui

import (
	"testing"
	"time"

	"github.com/vovakirdan/quaternion/internal/config"
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/economy"
	"github.com/vovakirdan/quaternion/internal/sim"
)

func defaultTables(t *testing.T) *config.Tables {
	t.Helper()
	tb, err := config.Default()
	if err != nil {
		t.Fatalf("default tables: %v", err)
	}
	return tb
}

func TestBuildAction(t *testing.T) {
	tables := defaultTables(t)

	tests := []struct {
		key  string
		want core.BuildingID
		ok   bool
	}{
		{"1", "archive", true},
		{"2", "barracks", true},
		{"4", "extractor", true},
		{"5", "reactor", true},
		{"9", "", false},
		{"a", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			a, ok := buildAction(tables, buildIndex(tt.key))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && (a.Type != core.ActionBuild || a.Payload.Building != tt.want) {
				t.Errorf("action = %+v, want build %s", a, tt.want)
			}
		})
	}
}

func TestResearchAction(t *testing.T) {
	tables := defaultTables(t)

	tests := []struct {
		name   string
		player *sim.PlayerState
		want   core.TechID
		ok     bool
	}{
		{
			name:   "fresh player starts the first ready tech",
			player: &sim.PlayerState{ResearchedTechs: map[core.TechID]bool{}},
			want:   "hydroponics",
			ok:     true,
		},
		{
			name:   "prerequisites open the next tier",
			player: &sim.PlayerState{ResearchedTechs: map[core.TechID]bool{"hydroponics": true}},
			want:   "neural_mesh",
			ok:     true,
		},
		{
			name: "unlocked techs become eligible",
			player: &sim.PlayerState{
				ResearchedTechs: map[core.TechID]bool{"survey": true},
				UnlockedTechs:   map[core.TechID]bool{"deep_core": true},
			},
			want: "deep_core",
			ok:   true,
		},
		{
			name: "busy lab",
			player: &sim.PlayerState{
				ResearchedTechs: map[core.TechID]bool{},
				Research:        &sim.ResearchJob{Tech: "survey", Remaining: 3},
			},
		},
		{name: "no player"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, ok := researchAction(tables, tt.player)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && a.Payload.Tech != tt.want {
				t.Errorf("tech = %s, want %s", a.Payload.Tech, tt.want)
			}
		})
	}
}

func TestAttackAction(t *testing.T) {
	state := func(alliances ...sim.Alliance) *sim.WorldState {
		return &sim.WorldState{
			PlayerOrder: []core.PlayerID{"ai-1", "ai-2", "player-1"},
			Players: map[core.PlayerID]*sim.PlayerState{
				"ai-1":     {ID: "ai-1", Eliminated: true},
				"ai-2":     {ID: "ai-2", Garrison: 3},
				"player-1": {ID: "player-1"},
			},
			Alliances: alliances,
		}
	}

	a, ok := attackAction(state(), "player-1")
	if !ok || a.Payload.Target != "ai-2" || a.Payload.Base {
		t.Fatalf("attack = %+v %v, want garrison of ai-2", a, ok)
	}

	s := state()
	s.Players["ai-2"].Garrison = 0
	if a, _ := attackAction(s, "player-1"); !a.Payload.Base {
		t.Errorf("undefended rival should be attacked at the base")
	}

	if _, ok := attackAction(state(sim.Alliance{A: "ai-2", B: "player-1"}), "player-1"); ok {
		t.Errorf("allies must not be attacked")
	}
	if _, ok := attackAction(nil, "player-1"); ok {
		t.Errorf("no state, no target")
	}
}

func TestOptionAction(t *testing.T) {
	puzzles := []economy.AllocationPuzzle{
		{ID: "pz-other", PlayerID: "ai-1", Status: economy.StatusOpen, Options: []economy.AllocationOption{{ID: "trade"}}},
		{ID: "pz-1", PlayerID: "player-1", Status: economy.StatusOpen, Options: []economy.AllocationOption{
			{ID: "trade"}, {ID: "aid"}, {ID: "exploit"},
		}},
	}

	tests := []struct {
		key    string
		option string
		ok     bool
	}{
		{"z", "trade", true},
		{"x", "aid", true},
		{"c", "exploit", true},
		{"q", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			a, ok := optionAction(puzzles, "player-1", optionIndex(tt.key))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && (a.Payload.PuzzleID != "pz-1" || a.Payload.OptionID != tt.option) {
				t.Errorf("payload = %+v", a.Payload)
			}
		})
	}

	if _, ok := optionAction(puzzles, "player-2", 0); ok {
		t.Errorf("player without a puzzle has nothing to answer")
	}
}

func TestAcceptAction(t *testing.T) {
	market := []economy.MarketOffer{
		{ID: "mk-1", PlayerID: "player-1", Status: economy.StatusOpen},
	}
	state := &sim.WorldState{
		GameTime: 10,
		Offers: []sim.Offer{
			{ID: "expired", PlayerID: "player-1", ExpiresAt: 5},
			{ID: "other", PlayerID: "ai-1", ExpiresAt: 50},
		},
	}

	a, ok := acceptAction(state, market, "player-1")
	if !ok || a.Payload.OfferID != "mk-1" {
		t.Fatalf("accept = %+v %v, want market offer", a, ok)
	}

	state.Offers = append(state.Offers, sim.Offer{ID: "of-1", PlayerID: "player-1", ExpiresAt: 20})
	if a, _ := acceptAction(state, market, "player-1"); a.Payload.OfferID != "of-1" {
		t.Errorf("world offer should win, got %s", a.Payload.OfferID)
	}

	if _, ok := acceptAction(state, nil, "ai-2"); ok {
		t.Errorf("no offers, nothing to accept")
	}
}

func TestFrameDelta(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC)
	tests := []struct {
		name string
		last time.Time
		want float64
	}{
		{"first frame", time.Time{}, 0},
		{"quarter second", now.Add(-250 * time.Millisecond), 0.25},
		{"clock went backwards", now.Add(time.Second), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := frameDelta(tt.last, now); got != tt.want {
				t.Errorf("frameDelta = %v, want %v", got, tt.want)
			}
		})
	}
}
