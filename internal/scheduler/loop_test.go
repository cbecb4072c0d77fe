package scheduler

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

const h = 1.0 / 60

type recorder struct {
	clock    *FakeClock
	tickCost time.Duration
	initErr  error
	tickErr  func(n int) error

	ticks    int
	renders  []float64
	errs     []error
	cleanups int
}

func (r *recorder) Initialize(context.Context) error { return r.initErr }

func (r *recorder) FixedUpdate(dt float64) error {
	r.ticks++
	if r.clock != nil {
		r.clock.Advance(r.tickCost)
	}
	if r.tickErr != nil {
		return r.tickErr(r.ticks)
	}
	return nil
}

func (r *recorder) Render(alpha float64) { r.renders = append(r.renders, alpha) }
func (r *recorder) Cleanup()             { r.cleanups++ }
func (r *recorder) OnError(err error)    { r.errs = append(r.errs, err) }

func newLoop(t *testing.T, r *recorder, opts ...Option) *Loop {
	t.Helper()
	if r.clock != nil {
		opts = append(opts, WithClock(r.clock))
	}
	l, err := New(DefaultConfig(), r, opts...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := l.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	return l
}

func TestAdvanceRunsWholeTicks(t *testing.T) {
	r := &recorder{}
	l := newLoop(t, r)

	n, err := l.Advance(2.5 * h)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || r.ticks != 2 {
		t.Errorf("ticks = %d, expected 2", n)
	}
	if alpha := l.Interpolation(); math.Abs(alpha-0.5) > 1e-9 {
		t.Errorf("Interpolation() = %v, expected 0.5", alpha)
	}
	if len(r.renders) != 1 {
		t.Errorf("renders = %d, expected one per frame", len(r.renders))
	}

	// The leftover half tick carries into the next frame
	n, _ = l.Advance(0.6 * h)
	if n != 1 {
		t.Errorf("ticks = %d, expected 1", n)
	}
}

func TestFrameSkipDropsBacklog(t *testing.T) {
	r := &recorder{}
	l := newLoop(t, r)

	n, err := l.Advance(10 * h)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("ticks = %d, expected 5", n)
	}
	if l.Interpolation() != 0 {
		t.Errorf("Interpolation() = %v, backlog should be dropped", l.Interpolation())
	}
	tel := l.Telemetry()
	if tel.DroppedTicks < 4 || tel.DroppedTicks > 5 {
		t.Errorf("DroppedTicks = %d, expected 5", tel.DroppedTicks)
	}

	// Nothing is replayed on the next frame
	if n, _ := l.Advance(0); n != 0 {
		t.Errorf("ticks = %d after drop, expected 0", n)
	}
}

func TestLongFrameIsClamped(t *testing.T) {
	r := &recorder{}
	l := newLoop(t, r)

	// A full second is clamped to 0.25s; 5 ticks run and the rest is dropped
	n, err := l.Advance(1.0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("ticks = %d, expected 5", n)
	}
	tel := l.Telemetry()
	if tel.ClampedFrames != 1 {
		t.Errorf("ClampedFrames = %d, expected 1", tel.ClampedFrames)
	}
	if tel.DroppedTicks == 0 {
		t.Error("expected dropped ticks after a clamped frame")
	}
	if l.Interpolation() != 0 {
		t.Errorf("Interpolation() = %v, expected 0", l.Interpolation())
	}
}

func TestPauseResume(t *testing.T) {
	r := &recorder{}
	l := newLoop(t, r)

	l.Advance(0.5 * h)
	l.Pause()
	if !l.Paused() {
		t.Fatal("Paused() = false after Pause")
	}
	if n, _ := l.Advance(0.2); n != 0 {
		t.Errorf("ticks while paused = %d, expected 0", n)
	}
	if len(r.renders) != 2 {
		t.Errorf("renders = %d, paused frames should still render", len(r.renders))
	}

	// The half tick from before the pause is discarded
	l.Resume()
	if l.Interpolation() != 0 {
		t.Errorf("Interpolation() = %v after resume, expected 0", l.Interpolation())
	}
	if n, _ := l.Advance(0.5 * h); n != 0 {
		t.Errorf("ticks = %d, expected 0", n)
	}
	if n, _ := l.Advance(0.5 * h); n != 1 {
		t.Errorf("ticks = %d, expected 1", n)
	}
}

func TestHaltStopsTicking(t *testing.T) {
	r := &recorder{tickErr: func(n int) error {
		if n == 3 {
			return ErrHalt
		}
		return nil
	}}
	l := newLoop(t, r)

	n, err := l.Advance(5 * h)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("ticks = %d, expected 3", n)
	}
	if l.State() != StateHalted {
		t.Errorf("State() = %s, expected halted", l.State())
	}
	if n, _ := l.Advance(5 * h); n != 0 || r.ticks != 3 {
		t.Errorf("ticks after halt = %d (total %d)", n, r.ticks)
	}
	if len(r.errs) != 0 {
		t.Error("halt should not be reported as an error")
	}
}

func TestRepeatedErrorsAreFatal(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	boom := errors.New("boom")
	r := &recorder{clock: clock, tickErr: func(int) error { return boom }}
	l := newLoop(t, r)

	// Four errors are tolerated
	if _, err := l.Advance(4.5 * h); err != nil {
		t.Fatalf("Advance() = %v, expected errors below threshold to be tolerated", err)
	}
	if len(r.errs) != 4 {
		t.Errorf("OnError calls = %d, expected 4", len(r.errs))
	}

	_, err := l.Advance(h)
	if !errors.Is(err, ErrFatalLoop) || !errors.Is(err, boom) {
		t.Fatalf("Advance() = %v, expected ErrFatalLoop wrapping the cause", err)
	}
	if l.State() != StateFailed {
		t.Errorf("State() = %s, expected failed", l.State())
	}
	if _, err := l.Advance(h); !errors.Is(err, ErrFatalLoop) {
		t.Errorf("Advance() after failure = %v", err)
	}
}

func TestErrorsOutsideWindowAreForgotten(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	r := &recorder{clock: clock, tickErr: func(int) error { return errors.New("flaky") }}
	l := newLoop(t, r)

	for i := 0; i < 10; i++ {
		if _, err := l.Advance(h); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		clock.Advance(3 * time.Second)
	}
}

func TestInitializeFailure(t *testing.T) {
	r := &recorder{initErr: errors.New("no tables")}
	l, err := New(DefaultConfig(), r)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Initialize(context.Background()); err == nil {
		t.Fatal("expected Initialize() to fail")
	}
	if _, err := l.Advance(h); err == nil {
		t.Error("Advance() should fail after a failed Initialize")
	}
}

func TestAdvanceBeforeInitialize(t *testing.T) {
	l, _ := New(DefaultConfig(), &recorder{})
	if _, err := l.Advance(h); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Advance() = %v, expected ErrNotInitialized", err)
	}
}

func TestCleanupIsIdempotent(t *testing.T) {
	r := &recorder{}
	l := newLoop(t, r)

	l.Cleanup()
	l.Cleanup()
	if r.cleanups != 1 {
		t.Errorf("Cleanup hook ran %d times, expected 1", r.cleanups)
	}
	if _, err := l.Advance(h); !errors.Is(err, ErrClosed) {
		t.Errorf("Advance() after Cleanup = %v, expected ErrClosed", err)
	}
	select {
	case <-l.Done():
	default:
		t.Error("Done() should be closed")
	}
}

func TestQualityDropsWhenOverBudget(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	r := &recorder{clock: clock, tickCost: 20 * time.Millisecond}
	var signals []float64
	l := newLoop(t, r, WithQualityListener(func(q float64) { signals = append(signals, q) }))

	for i := 0; i < 60; i++ {
		l.Advance(h)
	}
	if q := l.Quality(); q >= 1 {
		t.Errorf("Quality() = %v, expected a drop below 1", q)
	}
	if len(signals) == 0 {
		t.Error("quality listener was never called")
	}

	// Cheap frames recover quality
	r.tickCost = 0
	for i := 0; i < 200; i++ {
		l.Advance(h)
	}
	if q := l.Quality(); q != 1 {
		t.Errorf("Quality() = %v, expected full recovery", q)
	}
}

func TestTelemetryFPS(t *testing.T) {
	l := newLoop(t, &recorder{})
	for i := 0; i < 30; i++ {
		l.Advance(h)
	}
	tel := l.Telemetry()
	if math.Abs(tel.FPS-60) > 0.5 {
		t.Errorf("FPS = %v, expected ~60", tel.FPS)
	}
	if tel.Frames != 30 || tel.Ticks != 30 {
		t.Errorf("frames=%d ticks=%d, expected 30/30", tel.Frames, tel.Ticks)
	}
	if tel.State != "running" {
		t.Errorf("State = %q", tel.State)
	}
}

func TestRunStopsOnCleanup(t *testing.T) {
	r := &recorder{}
	l := newLoop(t, r)

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background(), time.Millisecond) }()

	time.Sleep(20 * time.Millisecond)
	l.Cleanup()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, expected nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after Cleanup")
	}
}

func TestRunStopsOnContext(t *testing.T) {
	l := newLoop(t, &recorder{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := l.Run(ctx, time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() = %v, expected deadline exceeded", err)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFrameSkip = 0
	if _, err := New(cfg, &recorder{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New() = %v, expected ErrInvalidConfig", err)
	}
}

type frameRecorder struct {
	recorder
	deltas []float64
	paused []bool
}

func (f *frameRecorder) BeginFrame(wallDelta float64, paused bool) {
	f.deltas = append(f.deltas, wallDelta)
	f.paused = append(f.paused, paused)
}

func TestFrameHookSeesRawDelta(t *testing.T) {
	f := &frameRecorder{}
	l, err := New(DefaultConfig(), f)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}

	l.Advance(3)
	l.Pause()
	l.Advance(0.5)
	l.Resume()
	l.Advance(-1)

	wantDeltas := []float64{3, 0.5, 0}
	wantPaused := []bool{false, true, false}
	for i := range wantDeltas {
		if f.deltas[i] != wantDeltas[i] || f.paused[i] != wantPaused[i] {
			t.Fatalf("frame %d: delta=%v paused=%v", i, f.deltas[i], f.paused[i])
		}
	}
}
