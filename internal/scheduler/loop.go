// Package scheduler runs a fixed-timestep simulation loop: variable wall
// deltas are accumulated and consumed in constant ticks, with a clamp on
// long frames, a cap on catch-up ticks, and an adaptive quality signal.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	// ErrHalt is returned by FixedUpdate to stop ticking after the current
	// tick, for example when the match has ended.
	ErrHalt = errors.New("scheduler: halt")
	// ErrFatalLoop is returned once tick errors repeat past the threshold.
	ErrFatalLoop = errors.New("scheduler: too many tick errors")
	// ErrNotInitialized is returned by Advance before Initialize succeeds.
	ErrNotInitialized = errors.New("scheduler: not initialized")
	// ErrClosed is returned by Advance after Cleanup.
	ErrClosed = errors.New("scheduler: closed")
	// ErrInvalidConfig is returned by New for unusable parameters.
	ErrInvalidConfig = errors.New("scheduler: invalid config")
)

// Hooks are the callbacks driven by the loop.
type Hooks interface {
	Initialize(ctx context.Context) error
	FixedUpdate(dt float64) error
	Render(alpha float64)
	Cleanup()
	OnError(err error)
}

// FrameHook is optionally implemented by Hooks that need the raw wall
// delta of every frame, before clamping. paused reports whether the frame
// will tick.
type FrameHook interface {
	BeginFrame(wallDelta float64, paused bool)
}

// Config holds the loop parameters. Times are in seconds.
type Config struct {
	FixedTimestep  float64
	MaxDeltaTime   float64
	MaxFrameSkip   int
	FrameBudget    time.Duration
	QualityWindow  int
	ErrorThreshold int
	ErrorWindow    time.Duration
}

// DefaultConfig returns a 60 Hz loop.
func DefaultConfig() Config {
	return Config{
		FixedTimestep:  1.0 / 60,
		MaxDeltaTime:   0.25,
		MaxFrameSkip:   5,
		FrameBudget:    16600 * time.Microsecond,
		QualityWindow:  30,
		ErrorThreshold: 5,
		ErrorWindow:    10 * time.Second,
	}
}

func (c Config) validate() error {
	switch {
	case c.FixedTimestep <= 0:
		return fmt.Errorf("%w: fixed timestep %v", ErrInvalidConfig, c.FixedTimestep)
	case c.MaxDeltaTime < c.FixedTimestep:
		return fmt.Errorf("%w: max delta %v below timestep %v", ErrInvalidConfig, c.MaxDeltaTime, c.FixedTimestep)
	case c.MaxFrameSkip < 1:
		return fmt.Errorf("%w: max frame skip %d", ErrInvalidConfig, c.MaxFrameSkip)
	case c.QualityWindow < 1:
		return fmt.Errorf("%w: quality window %d", ErrInvalidConfig, c.QualityWindow)
	case c.ErrorThreshold < 1:
		return fmt.Errorf("%w: error threshold %d", ErrInvalidConfig, c.ErrorThreshold)
	}
	return nil
}

// State is the lifecycle stage of a Loop.
type State int

const (
	StateNew State = iota
	StateRunning
	StatePaused
	StateHalted
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateHalted:
		return "halted"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Telemetry is a snapshot of loop performance.
type Telemetry struct {
	FPS           float64       `json:"fps"`
	TickTime      time.Duration `json:"tick_time"`   // Average tick work per frame
	RenderTime    time.Duration `json:"render_time"` // Average render work per frame
	Ticks         uint64        `json:"ticks"`
	Frames        uint64        `json:"frames"`
	DroppedTicks  uint64        `json:"dropped_ticks"`
	ClampedFrames uint64        `json:"clamped_frames"`
	Errors        uint64        `json:"errors"`
	Quality       float64       `json:"quality"`
	State         string        `json:"state"`
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock sets the clock used to measure frame costs.
func WithClock(c Clock) Option {
	return func(l *Loop) { l.clock = c }
}

// WithLogger sets the loop logger.
func WithLogger(lg *log.Logger) Option {
	return func(l *Loop) { l.log = lg }
}

// WithQualityListener registers a callback invoked whenever the quality
// signal changes.
func WithQualityListener(fn func(q float64)) Option {
	return func(l *Loop) { l.onQuality = fn }
}

// Loop is a fixed-timestep scheduler. All methods are safe for concurrent
// use; hooks are invoked with the loop lock held and must not call back
// into the loop.
type Loop struct {
	mu    sync.Mutex
	cfg   Config
	hooks Hooks
	clock Clock
	log   *log.Logger

	state       State
	accumulator float64
	fatal       error
	errTimes    []time.Time

	tel         Telemetry
	frameCosts  []time.Duration // Tick+render cost of recent frames
	tickCosts   []time.Duration
	renderCosts []time.Duration
	wallDeltas  []float64
	cursor      int
	quality     float64
	onQuality   func(float64)

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a loop driving hooks.
func New(cfg Config, hooks Hooks, opts ...Option) (*Loop, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if hooks == nil {
		return nil, fmt.Errorf("%w: hooks are required", ErrInvalidConfig)
	}
	l := &Loop{
		cfg:     cfg,
		hooks:   hooks,
		clock:   RealClock{},
		log:     log.New(io.Discard),
		quality: 1,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Initialize runs the Initialize hook. A failure is fatal: the loop stays
// unusable and the error is returned to the caller.
func (l *Loop) Initialize(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateNew {
		return fmt.Errorf("scheduler: initialize in state %s", l.state)
	}
	if err := l.hooks.Initialize(ctx); err != nil {
		l.state = StateFailed
		l.fatal = fmt.Errorf("scheduler: initialize: %w", err)
		return l.fatal
	}
	l.state = StateRunning
	l.log.Debug("loop initialized", "timestep", l.cfg.FixedTimestep, "max_skip", l.cfg.MaxFrameSkip)
	return nil
}

// Advance feeds one frame's wall delta (seconds) into the loop. It runs at
// most MaxFrameSkip ticks; any backlog beyond that is dropped, not carried.
// Render is called once per frame with the interpolation factor. The
// number of ticks executed is returned.
func (l *Loop) Advance(wallDelta float64) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateNew:
		return 0, ErrNotInitialized
	case StateClosed:
		return 0, ErrClosed
	case StateFailed:
		return 0, l.fatal
	case StateHalted:
		return 0, nil
	}

	if wallDelta < 0 || math.IsNaN(wallDelta) {
		wallDelta = 0
	}
	if fh, ok := l.hooks.(FrameHook); ok {
		fh.BeginFrame(wallDelta, l.state == StatePaused)
	}
	if wallDelta > l.cfg.MaxDeltaTime {
		wallDelta = l.cfg.MaxDeltaTime
		l.tel.ClampedFrames++
	}

	start := l.clock.Now()
	ticks := 0
	if l.state == StateRunning {
		l.accumulator += wallDelta
		h := l.cfg.FixedTimestep
		for l.accumulator >= h && ticks < l.cfg.MaxFrameSkip {
			err := l.hooks.FixedUpdate(h)
			l.accumulator -= h
			ticks++
			l.tel.Ticks++
			if errors.Is(err, ErrHalt) {
				l.state = StateHalted
				l.accumulator = 0
				break
			}
			if err != nil {
				if fatal := l.recordError(err); fatal != nil {
					return ticks, fatal
				}
			}
		}
		if l.accumulator >= h {
			l.tel.DroppedTicks += uint64(l.accumulator / h)
			l.accumulator = 0
		}
	}
	tickEnd := l.clock.Now()
	l.hooks.Render(l.interpolation())
	renderEnd := l.clock.Now()

	l.observe(wallDelta, tickEnd.Sub(start), renderEnd.Sub(tickEnd))
	return ticks, nil
}

// recordError reports a tick error and returns a fatal error once the
// threshold is reached within the window.
func (l *Loop) recordError(err error) error {
	l.tel.Errors++
	l.hooks.OnError(err)

	now := l.clock.Now()
	cutoff := now.Add(-l.cfg.ErrorWindow)
	kept := l.errTimes[:0]
	for _, t := range l.errTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.errTimes = append(kept, now)

	if len(l.errTimes) < l.cfg.ErrorThreshold {
		l.log.Warn("tick error", "err", err, "recent", len(l.errTimes))
		return nil
	}
	l.state = StateFailed
	l.fatal = fmt.Errorf("%w: %d within %s: %w", ErrFatalLoop, len(l.errTimes), l.cfg.ErrorWindow, err)
	l.log.Error("loop stopped", "err", l.fatal)
	return l.fatal
}

// observe folds one frame into the rolling telemetry and adjusts quality.
func (l *Loop) observe(wallDelta float64, tickCost, renderCost time.Duration) {
	l.tel.Frames++
	n := l.cfg.QualityWindow
	if len(l.frameCosts) < n {
		l.frameCosts = append(l.frameCosts, tickCost+renderCost)
		l.tickCosts = append(l.tickCosts, tickCost)
		l.renderCosts = append(l.renderCosts, renderCost)
		l.wallDeltas = append(l.wallDeltas, wallDelta)
	} else {
		l.frameCosts[l.cursor] = tickCost + renderCost
		l.tickCosts[l.cursor] = tickCost
		l.renderCosts[l.cursor] = renderCost
		l.wallDeltas[l.cursor] = wallDelta
		l.cursor = (l.cursor + 1) % n
	}

	l.tel.TickTime = mean(l.tickCosts)
	l.tel.RenderTime = mean(l.renderCosts)
	var wall float64
	for _, d := range l.wallDeltas {
		wall += d
	}
	if wall > 0 {
		l.tel.FPS = float64(len(l.wallDeltas)) / wall
	}

	if len(l.frameCosts) < n || l.cfg.FrameBudget <= 0 {
		return
	}
	avg := mean(l.frameCosts)
	q := l.quality
	switch {
	case avg > l.cfg.FrameBudget:
		q = math.Max(0, q-0.1)
	case avg < l.cfg.FrameBudget*3/4:
		q = math.Min(1, q+0.05)
	}
	if q != l.quality {
		l.quality = q
		if l.onQuality != nil {
			l.onQuality(q)
		}
	}
}

func mean(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range ds {
		sum += d
	}
	return sum / time.Duration(len(ds))
}

// Interpolation returns accumulator / timestep, in [0, 1).
func (l *Loop) Interpolation() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.interpolation()
}

func (l *Loop) interpolation() float64 {
	return l.accumulator / l.cfg.FixedTimestep
}

// Pause suspends ticking. Frames still render.
func (l *Loop) Pause() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateRunning {
		l.state = StatePaused
		l.log.Debug("loop paused")
	}
}

// Resume restarts ticking with an empty accumulator, so time spent paused
// is never replayed.
func (l *Loop) Resume() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StatePaused {
		l.state = StateRunning
		l.accumulator = 0
		l.log.Debug("loop resumed")
	}
}

// Paused reports whether the loop is paused.
func (l *Loop) Paused() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == StatePaused
}

// State returns the lifecycle stage.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Quality returns the adaptive quality signal in [0, 1]. Presentation
// layers shed optional work as it falls.
func (l *Loop) Quality() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.quality
}

// Telemetry returns a copy of the current telemetry.
func (l *Loop) Telemetry() Telemetry {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := l.tel
	t.Quality = l.quality
	t.State = l.state.String()
	return t
}

// Cleanup runs the Cleanup hook once and closes the loop. Later calls are
// no-ops.
func (l *Loop) Cleanup() {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.state != StateNew {
			l.hooks.Cleanup()
		}
		l.state = StateClosed
		close(l.done)
		l.log.Debug("loop closed", "ticks", l.tel.Ticks, "frames", l.tel.Frames)
	})
}

// Done is closed by Cleanup.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Run drives the loop from a ticker at the given frame interval until the
// context is cancelled, the loop halts or fails, or Cleanup is called.
func (l *Loop) Run(ctx context.Context, frame time.Duration) error {
	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	last := l.clock.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case <-ticker.C:
			now := l.clock.Now()
			delta := now.Sub(last).Seconds()
			last = now
			if _, err := l.Advance(delta); err != nil {
				if errors.Is(err, ErrClosed) {
					return nil
				}
				return err
			}
			if l.State() == StateHalted {
				return nil
			}
		}
	}
}
