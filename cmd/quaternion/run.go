package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/quaternion/internal/config"
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/match"
	"github.com/vovakirdan/quaternion/internal/replay"
	"github.com/vovakirdan/quaternion/internal/scheduler"
	"github.com/vovakirdan/quaternion/internal/sim"
	"github.com/vovakirdan/quaternion/internal/storage"
)

var (
	flagFrames     int
	flagWallDelta  float64
	flagReplayPath string
	flagNoSave     bool
	flagRealtime   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a headless match and print the endgame",
	Long: `Run a match without a terminal UI. Every frame feeds the same wall
delta into the scheduler, so a run is fully reproducible from its seed.
With --realtime frames follow the wall clock at --fps until the match
ends; such a run is only reproducible from its replay journal.

The endgame is printed as JSON on stdout. With --replay every frame is
recorded to a compressed journal that 'quaternion replay' can verify.

Examples:
  quaternion run --seed 42
  quaternion run --seed 42 --mode theater --frames 20000
  quaternion run --seed 7 --replay ./match.jsonl.zst
  quaternion run --realtime --fps 30`,
	Args: cobra.NoArgs,
	Run:  runRun,
}

func init() {
	runCmd.Flags().IntVar(&flagFrames, "frames", 100000, "Maximum host frames before giving up")
	runCmd.Flags().Float64Var(&flagWallDelta, "delta", 0, "Wall seconds per frame (0 = 1/fps)")
	runCmd.Flags().StringVar(&flagReplayPath, "replay", "", "Record a replay journal to this path")
	runCmd.Flags().BoolVar(&flagNoSave, "no-save", false, "Do not store the result")
	runCmd.Flags().BoolVar(&flagRealtime, "realtime", false, "Pace frames by the wall clock instead of --delta")
}

// runOutput is what run prints.
type runOutput struct {
	MatchID   string               `json:"match_id"`
	Seed      int64                `json:"seed"`
	Frames    int                  `json:"frames"`
	Over      bool                 `json:"over"`
	Digest    string               `json:"digest"`
	Endgame   *sim.EndgameScenario `json:"endgame,omitempty"`
	Telemetry scheduler.Telemetry  `json:"telemetry"`
	Replay    string               `json:"replay,omitempty"`
}

func runRun(cmd *cobra.Command, _ []string) {
	logger := newLogger("quaternion", true)

	cfg, err := flagMatchConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	tables, err := config.Load(flagConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading tables: %v\n", err)
		os.Exit(1)
	}
	delta := flagWallDelta
	if delta <= 0 {
		delta = 1 / float64(flagFPS)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := runHeadless(ctx, cfg, tables, delta, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running match: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing result: %v\n", err)
		os.Exit(1)
	}
}

func runHeadless(ctx context.Context, cfg core.MatchConfig, tables *config.Tables, delta float64, logger *log.Logger) (runOutput, error) {
	out := runOutput{MatchID: uuid.NewString(), Seed: cfg.Seed, Replay: flagReplayPath}

	opts := []match.Option{match.WithLogger(newLogger("match", true))}
	var journal *replay.Writer
	if flagReplayPath != "" {
		w, err := replay.Create(flagReplayPath)
		if err != nil {
			return out, err
		}
		journal = w
		opts = append(opts, match.WithRecorder(journal))
	}

	m, err := match.New(cfg, tables, opts...)
	if err != nil {
		closeJournal(journal, logger)
		return out, err
	}
	defer m.Cleanup()
	if journal != nil {
		if err := journal.WriteHeader(replay.HeaderFor(out.MatchID, m)); err != nil {
			closeJournal(journal, logger)
			return out, err
		}
	}
	if err := m.Initialize(ctx); err != nil {
		closeJournal(journal, logger)
		return out, err
	}
	logger.Info("match started", "match", out.MatchID, "seed", cfg.Seed, "mode", cfg.Mode, "difficulty", cfg.AIDifficulty)

	if flagRealtime {
		frame := time.Duration(delta * float64(time.Second))
		if err := m.Run(ctx, frame); err != nil && !errors.Is(err, context.Canceled) {
			closeJournal(journal, logger)
			return out, err
		}
		out.Frames = int(m.Telemetry().Frames)
	}
	for !flagRealtime && out.Frames < flagFrames && !m.Over() {
		if ctx.Err() != nil {
			logger.Warn("interrupted", "frames", out.Frames)
			break
		}
		if _, err := m.Advance(delta); err != nil {
			closeJournal(journal, logger)
			return out, err
		}
		out.Frames++
	}
	if err := m.RecordError(); err != nil {
		logger.Warn("replay recording failed", "error", err)
	}
	closeJournal(journal, logger)

	out.Over = m.Over()
	out.Digest = m.Digest()
	out.Telemetry = m.Telemetry()
	if end, ok := m.Endgame(); ok {
		out.Endgame = end
		logger.Info("match over", "track", end.Track, "winner", end.Winner, "tick", end.Tick)
		if !flagNoSave {
			saveResult(out.MatchID, m, *end, logger)
		}
	} else {
		logger.Warn("no winner within the frame limit", "frames", out.Frames)
	}
	return out, nil
}

func closeJournal(w *replay.Writer, logger *log.Logger) {
	if w == nil {
		return
	}
	if err := w.Close(); err != nil {
		logger.Warn("could not close replay journal", "error", err)
	}
}

// saveResult stores the endgame and the final telemetry, best effort.
func saveResult(matchID string, m *match.Match, end sim.EndgameScenario, logger *log.Logger) {
	store := openStore(logger)
	if store == nil {
		return
	}
	defer store.Close()
	persist(store, matchID, m, end, logger)
}

func persist(store *storage.Store, matchID string, m *match.Match, end sim.EndgameScenario, logger *log.Logger) {
	if _, err := store.SaveMatchResult(matchID, m.Config(), end); err != nil {
		logger.Warn("could not save result", "match", matchID, "error", err)
		return
	}
	if err := store.SaveTelemetry(matchID, m.Telemetry()); err != nil {
		logger.Warn("could not save telemetry", "match", matchID, "error", err)
	}
}
