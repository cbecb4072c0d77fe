package core

import (
	"errors"
	"testing"
)

func TestMatchConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*MatchConfig)
		wantErr bool
	}{
		{"default", func(*MatchConfig) {}, false},
		{"map too small", func(c *MatchConfig) { c.MapWidth = 4 }, true},
		{"map too tall", func(c *MatchConfig) { c.MapHeight = MaxMapSize + 1 }, true},
		{"unknown map type", func(c *MatchConfig) { c.MapType = "lunar" }, true},
		{"unknown mode", func(c *MatchConfig) { c.Mode = "coop" }, true},
		{"missing difficulty", func(c *MatchConfig) { c.AIDifficulty = "" }, true},
		{"multiplayer without room", func(c *MatchConfig) { c.Mode = ModeMultiplayer }, true},
		{"multiplayer with room", func(c *MatchConfig) {
			c.Mode = ModeMultiplayer
			c.RoomID = "lobby"
			c.PlayerID = ""
		}, false},
		{"single without player", func(c *MatchConfig) { c.PlayerID = "" }, true},
		{"theater without player", func(c *MatchConfig) {
			c.Mode = ModeTheater
			c.PlayerID = ""
		}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultMatchConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("Validate() = %v, expected ErrInvalidConfig", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() = %v, expected nil", err)
			}
		})
	}
}

func TestDeriveSeed(t *testing.T) {
	a := DeriveSeed(42, "ecosystem")
	if a != DeriveSeed(42, "ecosystem") {
		t.Error("DeriveSeed should be deterministic")
	}
	if a == DeriveSeed(42, "diplomacy") {
		t.Error("different streams should get different seeds")
	}
	if a == DeriveSeed(43, "ecosystem") {
		t.Error("different match seeds should get different seeds")
	}
}

func TestActionTypeValid(t *testing.T) {
	for _, at := range ActionTypes {
		if !at.Valid() {
			t.Errorf("%q should be valid", at)
		}
	}
	if ActionType("dance").Valid() {
		t.Error("unknown action type should be invalid")
	}
}
