package sim

import "errors"

var (
	ErrClosed            = errors.New("sim: world closed")
	ErrMatchOver         = errors.New("sim: match is over")
	ErrUnknownPlayer     = errors.New("sim: unknown player")
	ErrDuplicatePlayer   = errors.New("sim: player already joined")
	ErrUnaffordable      = errors.New("sim: unaffordable")
	ErrPrerequisite      = errors.New("sim: prerequisite not met")
	ErrQueueFull         = errors.New("sim: queue full")
	ErrInsufficientUnits = errors.New("sim: insufficient units")
	ErrAllied            = errors.New("sim: target is an ally")
	ErrStaleSequence     = errors.New("sim: stale sequence number")
	ErrEliminated        = errors.New("sim: player eliminated")
	ErrExpired           = errors.New("sim: offer expired")
	ErrInvalidAction     = errors.New("sim: invalid action")
	ErrInvalidEffect     = errors.New("sim: invalid effect")
	ErrNoHandler         = errors.New("sim: no handler for action")
	ErrInvariant         = errors.New("sim: invariant violated")
)
