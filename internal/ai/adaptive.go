package ai

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/registry"
	"github.com/vovakirdan/quaternion/internal/sim"
)

func init() {
	registry.Register(Adaptive, "Adaptive Learning", func(env registry.Env) registry.Subsystem {
		return NewAdaptive(env)
	})
}

const (
	profileAlpha = 0.3  // Weight of the newest observation
	mirrorGrant  = 12.0 // Base grant per activation, scaled by difficulty
)

// Profile is what the adaptive subsystem has learned about one player.
type Profile struct {
	Share   core.Resources // Smoothed share of holdings per axis
	Attacks int            // Attacks seen so far
	Samples int
}

// Favoured returns the axis the player leans on most.
func (p Profile) Favoured() core.Resource {
	res, _ := p.Share.Max()
	return res
}

// AdaptiveSubsystem watches how human players invest and feeds the AI
// players a counterweight on the same axis. Aggressive humans teach the AI
// to stock energy for retaliation.
type AdaptiveSubsystem struct {
	log      *log.Logger
	strength float64
	profiles map[core.PlayerID]*Profile
}

// NewAdaptive creates the adaptive learning subsystem.
func NewAdaptive(env registry.Env) *AdaptiveSubsystem {
	strength := env.Difficulty.Mirroring
	if strength <= 0 {
		strength = 1
	}
	return &AdaptiveSubsystem{
		log:      env.Log,
		strength: strength,
		profiles: make(map[core.PlayerID]*Profile),
	}
}

func (a *AdaptiveSubsystem) Name() string { return Adaptive }

// Profile returns the learned profile for a player.
func (a *AdaptiveSubsystem) Profile(id core.PlayerID) (Profile, bool) {
	p, ok := a.profiles[id]
	if !ok {
		return Profile{}, false
	}
	return *p, true
}

// Run updates the profiles of human players, then grants each AI player the
// mirrored investment.
func (a *AdaptiveSubsystem) Run(_ time.Time, snap *sim.WorldState) ([]sim.Effect, error) {
	var learned []*Profile
	newAttacks := 0
	for _, p := range activePlayers(snap) {
		if p.AI {
			continue
		}
		prof := a.observe(p)
		learned = append(learned, prof)
		newAttacks += p.Attacks - prof.Attacks
		prof.Attacks = p.Attacks
	}
	if len(learned) == 0 {
		return nil, nil
	}

	var favour core.Resources
	for _, prof := range learned {
		favour = favour.Add(core.Resources{}.With(prof.Favoured(), 1))
	}
	axis, _ := favour.Max()
	grant := core.Resources{}.With(axis, mirrorGrant*a.strength)
	if newAttacks > 0 {
		grant.Energy += float64(newAttacks) * 5 * a.strength
	}

	var out []sim.Effect
	for _, p := range activePlayers(snap) {
		if !p.AI {
			continue
		}
		out = append(out, sim.ResourceDelta{
			Meta:     meta(Adaptive),
			PlayerID: p.ID,
			Delta:    grant,
			Reason:   fmt.Sprintf("mirroring %s", axis),
		})
	}
	if len(out) > 0 {
		a.log.Debug("mirroring", "axis", axis, "attacks", newAttacks, "grant", grant)
	}
	return out, nil
}

func (a *AdaptiveSubsystem) observe(p *sim.PlayerState) *Profile {
	prof, ok := a.profiles[p.ID]
	if !ok {
		prof = &Profile{Share: core.Uniform(0.25)}
		a.profiles[p.ID] = prof
	}
	if total := p.Resources.Total(); total > 0 {
		share := p.Resources.Scale(1 / total)
		prof.Share = prof.Share.Scale(1 - profileAlpha).Add(share.Scale(profileAlpha))
	}
	prof.Samples++
	return prof
}
