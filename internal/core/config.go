package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig is returned when a MatchConfig fails validation.
var ErrInvalidConfig = errors.New("invalid match config")

// PlayerID identifies a participant. Players are always processed in
// ascending PlayerID order.
type PlayerID string

// BuildingID names a building kind from the tables.
type BuildingID string

// TechID names a technology from the tables.
type TechID string

// Mode selects how a match is populated and driven.
type Mode string

const (
	ModeSingle      Mode = "single"      // one human against the AI
	ModeMultiplayer Mode = "multiplayer" // humans join a shared room
	ModeCampaign    Mode = "campaign"    // single player with a scripted head start
	ModePuzzle      Mode = "puzzle"      // allocation puzzles arrive twice as often
	ModeTheater     Mode = "theater"     // AI against AI, no human input
)

// Modes lists every supported mode.
var Modes = []Mode{ModeSingle, ModeMultiplayer, ModeCampaign, ModePuzzle, ModeTheater}

// ParseMode converts a mode name to a Mode.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if strings.EqualFold(s, string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, s)
}

// HasLocalPlayer reports whether the mode seats the configured PlayerID.
func (m Mode) HasLocalPlayer() bool {
	return m == ModeSingle || m == ModeCampaign || m == ModePuzzle
}

// MapTypes lists the recognised terrain generators.
var MapTypes = []string{"continental", "archipelago", "highlands", "wasteland"}

// Map size limits in tiles.
const (
	MinMapSize = 16
	MaxMapSize = 1024
)

// MatchConfig is the immutable setup of one match.
type MatchConfig struct {
	Seed         int64    `json:"seed"`
	MapWidth     int      `json:"map_width"`
	MapHeight    int      `json:"map_height"`
	MapType      string   `json:"map_type"`
	AIDifficulty string   `json:"ai_difficulty"`
	Mode         Mode     `json:"mode"`
	RoomID       string   `json:"room_id,omitempty"`
	PlayerID     PlayerID `json:"player_id,omitempty"`
}

// DefaultMatchConfig returns a single-player setup on a medium map.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		Seed:         1,
		MapWidth:     64,
		MapHeight:    48,
		MapType:      "continental",
		AIDifficulty: "normal",
		Mode:         ModeSingle,
		PlayerID:     "player-1",
	}
}

// Bounds returns the playable map area.
func (c MatchConfig) Bounds() Rect {
	return NewRect(0, 0, c.MapWidth, c.MapHeight)
}

// Validate checks the structural fields. Difficulty names are checked by
// the config package, which owns the presets.
func (c MatchConfig) Validate() error {
	if c.MapWidth < MinMapSize || c.MapWidth > MaxMapSize {
		return fmt.Errorf("%w: map width %d outside [%d, %d]", ErrInvalidConfig, c.MapWidth, MinMapSize, MaxMapSize)
	}
	if c.MapHeight < MinMapSize || c.MapHeight > MaxMapSize {
		return fmt.Errorf("%w: map height %d outside [%d, %d]", ErrInvalidConfig, c.MapHeight, MinMapSize, MaxMapSize)
	}
	if !validMapType(c.MapType) {
		return fmt.Errorf("%w: unknown map type %q", ErrInvalidConfig, c.MapType)
	}
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.AIDifficulty == "" {
		return fmt.Errorf("%w: ai difficulty is required", ErrInvalidConfig)
	}
	if c.Mode == ModeMultiplayer && c.RoomID == "" {
		return fmt.Errorf("%w: multiplayer requires a room id", ErrInvalidConfig)
	}
	if c.Mode.HasLocalPlayer() && c.PlayerID == "" {
		return fmt.Errorf("%w: mode %s requires a player id", ErrInvalidConfig, c.Mode)
	}
	return nil
}

func validMapType(t string) bool {
	for _, mt := range MapTypes {
		if mt == t {
			return true
		}
	}
	return false
}
