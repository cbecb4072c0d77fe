package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/scheduler"
	"github.com/vovakirdan/quaternion/internal/sim"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func scenario(track sim.Track, winner core.PlayerID, elapsed float64) sim.EndgameScenario {
	return sim.EndgameScenario{
		Outcome: sim.OutcomeVictory,
		Track:   track,
		Winner:  winner,
		Reason:  "test",
		FinalResources: map[core.PlayerID]core.Resources{
			"player-1": {Ore: 100, Energy: 90, Biomass: 80, Data: 70},
			"ai-1":     {Ore: 10, Energy: 20, Biomass: 30, Data: 40},
		},
		Elapsed: elapsed,
		Tick:    uint64(elapsed * 60),
	}
}

func TestStoreOpenClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "deep", "test.db")

	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestSaveAndLoadMatchResult(t *testing.T) {
	store := openStore(t)
	cfg := core.DefaultMatchConfig()
	cfg.Seed = 42

	id, err := store.SaveMatchResult("m-1", cfg, scenario(sim.TrackEquilibrium, "player-1", 612.5))
	if err != nil {
		t.Fatalf("SaveMatchResult() failed: %v", err)
	}
	if id == 0 {
		t.Fatal("no row id returned")
	}

	got, err := store.MatchByID("m-1")
	if err != nil {
		t.Fatalf("MatchByID() failed: %v", err)
	}
	if got == nil {
		t.Fatal("stored match not found")
	}
	if got.Seed != 42 || got.Mode != core.ModeSingle || got.Track != sim.TrackEquilibrium || got.Winner != "player-1" {
		t.Errorf("result = %+v", got)
	}
	if got.Loser != "" || got.ClaimID != "" {
		t.Errorf("empty fields came back as %q / %q", got.Loser, got.ClaimID)
	}
	if got.Tick != 36750 || got.Elapsed != 612.5 {
		t.Errorf("tick/elapsed = %d / %v", got.Tick, got.Elapsed)
	}
	if r := got.FinalResources["player-1"]; r.Ore != 100 || r.Data != 70 {
		t.Errorf("final resources = %+v", got.FinalResources)
	}
	if len(got.FinalResources) != 2 {
		t.Errorf("players stored = %d", len(got.FinalResources))
	}

	if _, err := store.SaveMatchResult("m-1", cfg, scenario(sim.TrackMoral, "player-1", 1)); err == nil {
		t.Error("duplicate match id accepted")
	}
	if missing, err := store.MatchByID("nope"); err != nil || missing != nil {
		t.Errorf("MatchByID(missing) = %v, %v", missing, err)
	}
}

func TestRecentAndByTrack(t *testing.T) {
	store := openStore(t)
	cfg := core.DefaultMatchConfig()

	saves := []struct {
		id    string
		track sim.Track
	}{
		{"a", sim.TrackEquilibrium},
		{"b", sim.TrackElimination},
		{"c", sim.TrackEquilibrium},
		{"d", sim.TrackMoral},
	}
	for _, s := range saves {
		if _, err := store.SaveMatchResult(s.id, cfg, scenario(s.track, "player-1", 100)); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name  string
		query func() ([]MatchResult, error)
		want  []string
	}{
		{"recent", func() ([]MatchResult, error) { return store.RecentResults(3) }, []string{"d", "c", "b"}},
		{"by track", func() ([]MatchResult, error) { return store.ResultsByTrack(sim.TrackEquilibrium, 10) }, []string{"c", "a"}},
		{"empty track", func() ([]MatchResult, error) { return store.ResultsByTrack(sim.TrackTerritorial, 10) }, nil},
		{"player", func() ([]MatchResult, error) { return store.PlayerHistory("ai-1", 2) }, []string{"d", "c"}},
		{"unknown player", func() ([]MatchResult, error) { return store.PlayerHistory("ghost", 10) }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.query()
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d results, want %v", len(got), tt.want)
			}
			for i := range got {
				if got[i].MatchID != tt.want[i] {
					t.Fatalf("result %d = %s, want %s", i, got[i].MatchID, tt.want[i])
				}
			}
		})
	}
}

func TestTelemetry(t *testing.T) {
	store := openStore(t)

	if rec, err := store.TelemetryFor("m-1"); err != nil || rec != nil {
		t.Fatalf("TelemetryFor(missing) = %v, %v", rec, err)
	}

	tel := scheduler.Telemetry{
		FPS:           59.8,
		TickTime:      2 * time.Millisecond,
		RenderTime:    time.Millisecond,
		Ticks:         3600,
		Frames:        3590,
		DroppedTicks:  4,
		ClampedFrames: 1,
		Quality:       0.9,
		State:         "halted",
	}
	if err := store.SaveTelemetry("m-1", tel); err != nil {
		t.Fatal(err)
	}
	tel.Frames = 3600
	if err := store.SaveTelemetry("m-1", tel); err != nil {
		t.Fatalf("second save: %v", err)
	}

	rec, err := store.TelemetryFor("m-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Telemetry != tel {
		t.Errorf("telemetry = %+v, want %+v", rec.Telemetry, tel)
	}
}

func TestAllTrackStats(t *testing.T) {
	store := openStore(t)
	cfg := core.DefaultMatchConfig()

	store.SaveMatchResult("a", cfg, scenario(sim.TrackMoral, "player-1", 100))
	store.SaveMatchResult("b", cfg, scenario(sim.TrackMoral, "player-1", 300))
	store.SaveMatchResult("c", cfg, scenario(sim.TrackElimination, "ai-1", 50))

	stats, err := store.AllTrackStats()
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats[0].Track != sim.TrackElimination || stats[0].Matches != 1 {
		t.Errorf("first = %+v", stats[0])
	}
	if stats[1].Track != sim.TrackMoral || stats[1].Matches != 2 || stats[1].AvgElapsed != 200 {
		t.Errorf("second = %+v", stats[1])
	}
}
