package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/vovakirdan/quaternion/internal/config"
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/replay"
)

// withFlags restores the global flags touched by a test.
func withFlags(t *testing.T) {
	t.Helper()
	seed, difficulty, mode, replayPath, noSave := flagSeed, flagDifficulty, flagMode, flagReplayPath, flagNoSave
	t.Cleanup(func() {
		flagSeed, flagDifficulty, flagMode, flagReplayPath, flagNoSave = seed, difficulty, mode, replayPath, noSave
	})
}

func TestMatchConfig(t *testing.T) {
	tests := []struct {
		name       string
		mode       string
		difficulty string
		wantErr    bool
		wantPlayer bool
	}{
		{name: "single seats the player", mode: "single", difficulty: "normal", wantPlayer: true},
		{name: "theater has no player", mode: "theater", difficulty: "hard"},
		{name: "unknown difficulty", mode: "single", difficulty: "nightmare", wantErr: true},
		{name: "unknown mode", mode: "coop", difficulty: "normal", wantErr: true},
		{name: "multiplayer is served, not run", mode: "multiplayer", difficulty: "normal", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withFlags(t)
			flagSeed, flagMode, flagDifficulty = 0, tt.mode, tt.difficulty

			cfg, err := flagMatchConfig()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if cfg.Seed == 0 {
				t.Error("seed 0 should be replaced by a time based seed")
			}
			if (cfg.PlayerID != "") != tt.wantPlayer {
				t.Errorf("player = %q", cfg.PlayerID)
			}
		})
	}
}

func TestMatchConfigMultiplayerUsesRoom(t *testing.T) {
	withFlags(t)
	flagDifficulty = "normal"

	cfg, err := matchConfig(core.ModeMultiplayer)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RoomID != flagRoomID || cfg.PlayerID != "" {
		t.Errorf("room = %q player = %q", cfg.RoomID, cfg.PlayerID)
	}
}

func TestRunHeadlessRecordsVerifiableReplay(t *testing.T) {
	withFlags(t)
	flagSeed, flagMode, flagDifficulty = 42, "theater", "normal"
	flagReplayPath = filepath.Join(t.TempDir(), "match.jsonl.zst")
	flagNoSave = true

	cfg, err := flagMatchConfig()
	if err != nil {
		t.Fatal(err)
	}
	tables, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}

	oldFrames := flagFrames
	flagFrames = 300
	t.Cleanup(func() { flagFrames = oldFrames })

	out, err := runHeadless(context.Background(), cfg, tables, 1.0/60, newLogger("test", false))
	if err != nil {
		t.Fatal(err)
	}
	if out.Frames == 0 || out.Digest == "" || out.Seed != 42 {
		t.Fatalf("output = %+v", out)
	}

	rep, err := replay.Verify(context.Background(), flagReplayPath)
	if err != nil {
		t.Fatal(err)
	}
	if !rep.OK() {
		t.Fatalf("replay diverged: %s", rep.Divergence)
	}
	if rep.MatchID != out.MatchID || rep.Frames != out.Frames {
		t.Errorf("report = %+v, want match %s with %d frames", rep, out.MatchID, out.Frames)
	}
}
