package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/quaternion/internal/match"
	"github.com/vovakirdan/quaternion/internal/replay"
)

var flagJSON bool

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Verify a recorded journal",
	Long: `Rebuild the match recorded in a journal, feed it every recorded frame
and check that each tick reproduces the recorded digest.

Exits with status 1 at the first divergence.

Examples:
  quaternion replay match.jsonl.zst
  quaternion replay --json match.jsonl.zst`,
	Args: cobra.ExactArgs(1),
	Run:  runReplay,
}

func init() {
	replayCmd.Flags().BoolVar(&flagJSON, "json", false, "Print the report as JSON")
}

func runReplay(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := replay.Verify(ctx, args[0], match.WithLogger(newLogger("replay", false)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error verifying replay: %v\n", err)
		os.Exit(1)
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
			os.Exit(1)
		}
	} else {
		fmt.Fprintf(out, "match    %s\n", rep.MatchID)
		fmt.Fprintf(out, "frames   %d\n", rep.Frames)
		fmt.Fprintf(out, "ticks    %d\n", rep.Ticks)
		if rep.Endgame != nil {
			fmt.Fprintf(out, "endgame  %s winner %s\n", rep.Endgame.Track, winnerName(rep.Endgame.Winner))
		}
		if rep.OK() {
			fmt.Fprintln(out, "result   reproduced")
		} else {
			fmt.Fprintf(out, "result   diverged at %s\n", rep.Divergence)
		}
	}

	if !rep.OK() {
		os.Exit(1)
	}
}
