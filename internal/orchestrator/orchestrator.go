// Package orchestrator runs the AI subsystems on their wall-clock
// cadences. Each poll takes one snapshot, lets every due subsystem read it,
// and hands the collected effects to the world as a single batch.
package orchestrator

import (
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/registry"
	"github.com/vovakirdan/quaternion/internal/sim"
)

// Scheduled is a subsystem paired with its cooldown gate.
type Scheduled struct {
	sub      registry.Subsystem
	gate     Gate
	runs     int
	failures int
	last     time.Time
}

// Name returns the subsystem name.
func (s *Scheduled) Name() string { return s.sub.Name() }

// NextEligible returns the earliest wall time the subsystem may run again.
func (s *Scheduled) NextEligible() time.Time { return s.gate.NextEligible }

// Runs returns how many times the subsystem has been invoked.
func (s *Scheduled) Runs() int { return s.runs }

// Failures returns how many invocations returned an error or panicked.
func (s *Scheduled) Failures() int { return s.failures }

// MaybeRun invokes the subsystem if its gate is open at now. The gate is
// advanced whether or not the run succeeds. A panic is recovered and
// reported as an error.
func (s *Scheduled) MaybeRun(now time.Time, snap *sim.WorldState) (effects []sim.Effect, ran bool, err error) {
	if !s.gate.Due(now) {
		return nil, false, nil
	}
	s.gate.Advance(now)
	s.runs++
	s.last = now

	defer func() {
		if r := recover(); r != nil {
			effects = nil
			err = fmt.Errorf("orchestrator: %s panicked: %v\n%s", s.sub.Name(), r, debug.Stack())
		}
		if err != nil {
			s.failures++
		}
	}()
	effects, err = s.sub.Run(now, snap)
	return effects, true, err
}

// Status summarises a scheduled subsystem for diagnostics.
type Status struct {
	Name         string    `json:"name"`
	Cooldown     string    `json:"cooldown"`
	NextEligible time.Time `json:"next_eligible"`
	Runs         int       `json:"runs"`
	Failures     int       `json:"failures"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// Orchestrator polls a fixed set of subsystems in name order.
type Orchestrator struct {
	slots []*Scheduled
	log   *log.Logger
}

// New creates an empty orchestrator.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{log: log.New(io.Discard)}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// FromRegistry builds an orchestrator from registered subsystems. Cooldowns
// come from the tables, scaled by difficulty; every gate first opens one
// cooldown after start.
func FromRegistry(env registry.Env, names []string, start time.Time, opts ...Option) (*Orchestrator, error) {
	o := New(opts...)
	for _, name := range names {
		sub, err := registry.Create(name, env)
		if err != nil {
			return nil, err
		}
		cd := env.Tables.Subsystems[name].CooldownDuration()
		if env.Difficulty.CooldownScale > 0 {
			cd = time.Duration(float64(cd) * env.Difficulty.CooldownScale)
		}
		if cd <= 0 {
			return nil, fmt.Errorf("orchestrator: %s has no cooldown", name)
		}
		o.Add(sub, cd, start)
	}
	return o, nil
}

// Add schedules a subsystem. Subsystems run in the order they were added.
func (o *Orchestrator) Add(sub registry.Subsystem, cooldown time.Duration, start time.Time) {
	o.slots = append(o.slots, &Scheduled{sub: sub, gate: NewGate(cooldown, start)})
}

// Due reports whether any subsystem is eligible at now.
func (o *Orchestrator) Due(now time.Time) bool {
	for _, s := range o.slots {
		if s.gate.Due(now) {
			return true
		}
	}
	return false
}

// Collect runs every due subsystem against one snapshot and returns their
// effects in subsystem order. snapshot is only called when at least one
// subsystem is due. Failing subsystems are logged and skipped.
func (o *Orchestrator) Collect(now time.Time, snapshot func() *sim.WorldState) []sim.Effect {
	if !o.Due(now) {
		return nil
	}
	snap := snapshot()

	var out []sim.Effect
	for _, s := range o.slots {
		effects, ran, err := s.MaybeRun(now, snap)
		if !ran {
			continue
		}
		if err != nil {
			o.log.Warn("subsystem failed", "subsystem", s.Name(), "err", err)
			continue
		}
		o.log.Debug("subsystem ran", "subsystem", s.Name(), "effects", len(effects), "next", s.NextEligible())
		out = append(out, effects...)
	}
	return out
}

// PlannedActions drains the actions queued by every planner subsystem.
func (o *Orchestrator) PlannedActions() []core.PlayerAction {
	var out []core.PlayerAction
	for _, s := range o.slots {
		if p, ok := s.sub.(registry.Planner); ok {
			out = append(out, p.PlannedActions()...)
		}
	}
	return out
}

// Status reports every scheduled subsystem.
func (o *Orchestrator) Status() []Status {
	out := make([]Status, len(o.slots))
	for i, s := range o.slots {
		out[i] = Status{
			Name:         s.Name(),
			Cooldown:     s.gate.Cooldown.String(),
			NextEligible: s.gate.NextEligible,
			Runs:         s.runs,
			Failures:     s.failures,
		}
	}
	return out
}
