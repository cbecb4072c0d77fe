package orchestrator

import (
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/quaternion/internal/config"
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/sim"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// recorder records every run and returns whatever it is told to.
type recorder struct {
	name    string
	runs    []time.Time
	effects []sim.Effect
	err     error
	panics  bool
	seen    []*sim.WorldState
}

func (p *recorder) Name() string { return p.name }

func (p *recorder) Run(now time.Time, snap *sim.WorldState) ([]sim.Effect, error) {
	p.runs = append(p.runs, now)
	p.seen = append(p.seen, snap)
	if p.panics {
		panic("boom")
	}
	return p.effects, p.err
}

func TestGateNeverMovesBackwards(t *testing.T) {
	g := NewGate(10*time.Second, epoch)
	if g.Due(epoch.Add(9 * time.Second)) {
		t.Fatal("gate open before first cooldown")
	}
	if !g.Due(epoch.Add(10 * time.Second)) {
		t.Fatal("gate closed at first cooldown")
	}

	g.Advance(epoch.Add(30 * time.Second))
	want := epoch.Add(40 * time.Second)
	if !g.NextEligible.Equal(want) {
		t.Fatalf("NextEligible = %v, want %v", g.NextEligible, want)
	}
	g.Advance(epoch.Add(5 * time.Second))
	if !g.NextEligible.Equal(want) {
		t.Fatalf("NextEligible moved backwards to %v", g.NextEligible)
	}
}

func TestCooldownPolledEveryFrame(t *testing.T) {
	o := New()
	p := &recorder{name: "watched"}
	o.Add(p, 60*time.Second, epoch)

	snap := &sim.WorldState{}
	for elapsed := time.Duration(0); elapsed <= 120*time.Second; elapsed += 16 * time.Millisecond {
		o.Collect(epoch.Add(elapsed), func() *sim.WorldState { return snap })
	}

	if len(p.runs) != 2 {
		t.Fatalf("runs = %d, want 2 (%v)", len(p.runs), p.runs)
	}
	if got := p.runs[0].Sub(epoch); got != 60*time.Second {
		t.Errorf("first run at %v, want 60s", got)
	}
	if gap := p.runs[1].Sub(p.runs[0]); gap < 60*time.Second {
		t.Errorf("runs %v apart, want at least the cooldown", gap)
	}
}

func TestCollectSharesOneSnapshot(t *testing.T) {
	o := New()
	a := &recorder{name: "a", effects: []sim.Effect{sim.NarrativeBeat{Meta: sim.Meta{Source: "a"}, Text: "one"}}}
	b := &recorder{name: "b", effects: []sim.Effect{sim.NarrativeBeat{Meta: sim.Meta{Source: "b"}, Text: "two"}}}
	o.Add(a, time.Second, epoch)
	o.Add(b, time.Second, epoch)

	calls := 0
	effects := o.Collect(epoch.Add(time.Second), func() *sim.WorldState {
		calls++
		return &sim.WorldState{}
	})
	if calls != 1 {
		t.Fatalf("snapshot taken %d times, want 1", calls)
	}
	if a.seen[0] != b.seen[0] {
		t.Fatal("subsystems saw different snapshots")
	}
	if len(effects) != 2 || effects[0].Origin() != "a" || effects[1].Origin() != "b" {
		t.Fatalf("effects = %v", effects)
	}
}

func TestCollectSkipsSnapshotWhenIdle(t *testing.T) {
	o := New()
	o.Add(&recorder{name: "idle"}, time.Minute, epoch)
	o.Collect(epoch.Add(time.Second), func() *sim.WorldState {
		t.Fatal("snapshot taken with nothing due")
		return nil
	})
}

func TestFailuresAreIsolated(t *testing.T) {
	tests := []struct {
		name  string
		fault *recorder
	}{
		{"error", &recorder{name: "fault", err: errors.New("bad roll")}},
		{"panic", &recorder{name: "fault", panics: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New()
			ok := &recorder{name: "ok", effects: []sim.Effect{sim.NarrativeBeat{Text: "fine"}}}
			o.Add(tt.fault, 10*time.Second, epoch)
			o.Add(ok, 10*time.Second, epoch)

			now := epoch.Add(10 * time.Second)
			effects := o.Collect(now, func() *sim.WorldState { return &sim.WorldState{} })
			if len(effects) != 1 {
				t.Fatalf("effects = %d, want the healthy subsystem's 1", len(effects))
			}

			// The failed subsystem still waits out its cooldown.
			o.Collect(now.Add(time.Second), func() *sim.WorldState { return &sim.WorldState{} })
			if len(tt.fault.runs) != 1 {
				t.Fatalf("failed subsystem ran %d times, want 1", len(tt.fault.runs))
			}
			st := o.Status()
			if st[0].Failures != 1 || st[0].Runs != 1 {
				t.Fatalf("status = %+v", st[0])
			}
			if !st[0].NextEligible.Equal(now.Add(10 * time.Second)) {
				t.Fatalf("next eligible = %v", st[0].NextEligible)
			}
		})
	}
}

func TestCollectedBatchApplies(t *testing.T) {
	tables, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}
	w, err := sim.New(core.DefaultMatchConfig(), tables)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.AddPlayer("player-1", false); err != nil {
		t.Fatal(err)
	}

	o := New()
	o.Add(&recorder{name: "gift", effects: []sim.Effect{
		sim.ResourceDelta{Meta: sim.Meta{Source: "gift"}, PlayerID: "player-1", Delta: core.Resources{Ore: 5}},
		sim.ResourceDelta{Meta: sim.Meta{Source: "gift"}, PlayerID: "player-1", Delta: core.Resources{Ore: -1000}},
	}}, time.Second, epoch)

	calls := 0
	snapshot := func() *sim.WorldState {
		calls++
		return w.Snapshot()
	}
	if effects := o.Collect(epoch.Add(time.Second/2), snapshot); effects != nil || calls != 0 {
		t.Fatalf("nothing due: effects %v, snapshots %d", effects, calls)
	}

	applied, dropped := w.ApplyEffects(o.Collect(epoch.Add(time.Second), snapshot))
	if calls != 1 {
		t.Fatalf("snapshots = %d, want 1", calls)
	}
	if len(applied) != 1 || len(dropped) != 1 {
		t.Fatalf("applied %d dropped %d, want 1/1", len(applied), len(dropped))
	}
	if !errors.Is(dropped[0].Err, sim.ErrUnaffordable) {
		t.Fatalf("dropped err = %v", dropped[0].Err)
	}
	if ore := w.Snapshot().Player("player-1").Resources.Ore; ore != 155 {
		t.Fatalf("ore = %v, want 155", ore)
	}
}
