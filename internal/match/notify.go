package match

import (
	"sync"

	"github.com/vovakirdan/quaternion/internal/economy"
	"github.com/vovakirdan/quaternion/internal/sim"
)

// NotificationKind discriminates Notification.
type NotificationKind string

const (
	NotifyEffect    NotificationKind = "effect"
	NotifyRejection NotificationKind = "rejection"
	NotifyDecision  NotificationKind = "decision"
	NotifyEndgame   NotificationKind = "endgame"
	NotifyError     NotificationKind = "error"
)

// Notification is one fire-and-forget event for presentation layers.
// Exactly one payload field is set, matching Kind.
type Notification struct {
	Kind      NotificationKind     `json:"kind"`
	Tick      uint64               `json:"tick"`
	Effect    sim.Effect           `json:"effect,omitempty"`
	Rejection *sim.Rejection       `json:"rejection,omitempty"`
	Decision  *economy.Result      `json:"decision,omitempty"`
	Endgame   *sim.EndgameScenario `json:"endgame,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// notifier is a bounded queue that drops the oldest entry when full, so a
// slow consumer never stalls the frame.
type notifier struct {
	mu      sync.Mutex
	ch      chan Notification
	dropped uint64
}

func newNotifier(size int) *notifier {
	if size < 1 {
		size = 1
	}
	return &notifier{ch: make(chan Notification, size)}
}

func (n *notifier) publish(note Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for {
		select {
		case n.ch <- note:
			return
		default:
		}
		select {
		case <-n.ch:
			n.dropped++
		default:
		}
	}
}

func (n *notifier) droppedCount() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dropped
}
