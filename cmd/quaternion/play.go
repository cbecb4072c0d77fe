package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vovakirdan/quaternion/internal/config"
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/diag"
	"github.com/vovakirdan/quaternion/internal/match"
	"github.com/vovakirdan/quaternion/internal/platform/tui"
	"github.com/vovakirdan/quaternion/internal/replay"
	"github.com/vovakirdan/quaternion/internal/sim"
)

var flagDumpLog bool

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a match in the terminal",
	Long: `Play a match against the AI in the terminal. The match pauses while
the terminal loses focus.

Controls:
  1-5        - Build (archive, barracks, biodome, extractor, reactor)
  r          - Research the next available tech
  m / M      - Station / recall units at the contested point
  a          - Attack the first rival
  z/x/c      - Answer the open allocation puzzle
  o          - Accept the oldest offer
  p          - Pause
  d          - Diagnostics overlay
  ?          - More keys
  q/Ctrl+C   - Quit

Examples:
  quaternion play
  quaternion play --mode campaign --difficulty easy
  quaternion play --mode theater
  quaternion play --seed 42 --replay ./match.jsonl.zst`,
	Args: cobra.NoArgs,
	Run:  runPlay,
}

func init() {
	playCmd.Flags().StringVar(&flagReplayPath, "replay", "", "Record a replay journal to this path")
	playCmd.Flags().BoolVar(&flagDumpLog, "dump-log", false, "Print the diagnostics log after the match")
}

func runPlay(_ *cobra.Command, _ []string) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: play needs a terminal; use 'quaternion run' for headless matches")
		os.Exit(1)
	}

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

	// Logs only go to the ring while the HUD owns the screen.
	logger := newLogger("quaternion", false)
	matchID := uuid.NewString()

	opts := []match.Option{match.WithLogger(newLogger("match", false))}
	var journal *replay.Writer
	if flagReplayPath != "" {
		if journal, err = replay.Create(flagReplayPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating replay: %v\n", err)
			os.Exit(1)
		}
		opts = append(opts, match.WithRecorder(journal))
	}

	m, err := match.New(cfg, tables, opts...)
	if err == nil && journal != nil {
		err = journal.WriteHeader(replay.HeaderFor(matchID, m))
	}
	if err == nil {
		err = m.Initialize(context.Background())
	}
	if err != nil {
		closeJournal(journal, logger)
		fmt.Fprintf(os.Stderr, "Error creating match: %v\n", err)
		os.Exit(1)
	}

	store := openStore(logger)
	onEnd := func(end sim.EndgameScenario) {
		logger.Info("match over", "track", end.Track, "winner", end.Winner, "tick", end.Tick)
		if store != nil {
			persist(store, matchID, m, end, logger)
		}
	}

	runErr := tui.Run(tui.NewLocalSource(m, onEnd), tables, flagFPS)

	closeJournal(journal, logger)
	if store != nil {
		store.Close()
	}
	if flagDumpLog || runErr != nil {
		for _, line := range diag.Drain() {
			fmt.Fprintln(os.Stderr, line)
		}
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error running match: %v\n", runErr)
		os.Exit(1)
	}
	if end, ok := m.Endgame(); ok {
		fmt.Printf("%s won by %s after %.0fs\n", winnerName(end.Winner), end.Track, end.Elapsed)
	}
}

func winnerName(id core.PlayerID) string {
	if id == "" {
		return "Nobody"
	}
	return string(id)
}
