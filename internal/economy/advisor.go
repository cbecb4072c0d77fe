package economy

import (
	"fmt"

	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/sim"
)

// starvedBelow is the balance under which an axis counts as starved.
const starvedBelow = 20.0

// advise records a fresh response for every active human. Responses only
// describe the economy; they change nothing.
func (e *Economy) advise(snap *sim.WorldState) {
	for _, id := range snap.Humans() {
		p := snap.Players[id]
		if p.Eliminated {
			continue
		}
		e.advice[id] = e.assess(id, p.Resources)
	}
}

func (e *Economy) assess(id core.PlayerID, r core.Resources) AdvisorResponse {
	weak, lo := r.Min()
	strong, _ := r.Max()
	imb := r.Imbalance()

	var posture Posture
	var msg string
	switch {
	case lo < starvedBelow:
		posture = PostureStarved
		msg = fmt.Sprintf("%s is nearly gone. Build for it before anything else.", weak)
	case imb <= e.band:
		posture = PostureBalanced
		msg = "The four axes are in balance. Hold the line."
	case imb <= 2*e.band:
		posture = PostureSkewed
		msg = fmt.Sprintf("You lean on %s. Shift investment toward %s.", strong, weak)
	default:
		posture = PostureCritical
		msg = fmt.Sprintf("%s dwarfs %s. Equilibrium is slipping away.", strong, weak)
	}
	return AdvisorResponse{
		ID:        e.newID(),
		PlayerID:  id,
		At:        e.now,
		Posture:   posture,
		Weakest:   weak,
		Strongest: strong,
		Imbalance: imb,
		Message:   msg,
	}
}
