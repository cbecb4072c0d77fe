package match

import (
	"github.com/vovakirdan/quaternion/internal/core"
)

// TickRecord is the digest of the world after one tick.
type TickRecord struct {
	Tick   uint64 `json:"tick"`
	Digest string `json:"digest"`
}

// Frame is everything that entered the match during one host frame. A
// match rebuilt from the same config and fed the same frames in order
// reproduces every tick digest.
type Frame struct {
	Frame     uint64              `json:"frame"`
	WallDelta float64             `json:"wall_delta"`
	Paused    bool                `json:"paused,omitempty"`
	Joins     []core.PlayerID     `json:"joins,omitempty"`
	Actions   []core.PlayerAction `json:"actions,omitempty"`
	Ticks     []TickRecord        `json:"ticks,omitempty"`
}

// FrameRecorder receives every completed frame.
type FrameRecorder interface {
	RecordFrame(f Frame) error
}
