package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/platform/tui"
	"github.com/vovakirdan/quaternion/internal/sim"
	"github.com/vovakirdan/quaternion/internal/storage"
)

var (
	flagTrack  string
	flagLimit  int
	flagPlain  bool
	flagPlayer string
	flagStats  bool
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Show stored match results",
	Long: `Show the results of finished matches. On a terminal the results open
in a browsable table; otherwise, or with --plain, they are printed.

Examples:
  quaternion results
  quaternion results --plain --track moral
  quaternion results --plain --player player-1
  quaternion results --stats`,
	Args: cobra.NoArgs,
	Run:  runResults,
}

func init() {
	resultsCmd.Flags().StringVar(&flagTrack, "track", "", "Only show wins on this track")
	resultsCmd.Flags().IntVar(&flagLimit, "limit", 20, "Maximum results to print")
	resultsCmd.Flags().BoolVar(&flagPlain, "plain", false, "Print instead of opening the table")
	resultsCmd.Flags().StringVar(&flagPlayer, "player", "", "Only show matches this player took part in")
	resultsCmd.Flags().BoolVar(&flagStats, "stats", false, "Print per-track statistics")
}

func runResults(cmd *cobra.Command, _ []string) {
	store, err := storage.Open(flagDBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening results database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	if flagStats {
		if err := printStats(out, store); err != nil {
			fmt.Fprintf(os.Stderr, "Error retrieving statistics: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fd := int(os.Stdout.Fd())
	if !flagPlain && flagTrack == "" && flagPlayer == "" && term.IsTerminal(fd) {
		width, height := 80, 24
		if w, h, sizeErr := term.GetSize(fd); sizeErr == nil {
			width, height = w, h
		}
		if err := tui.RunResults(store, width, height); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	var results []storage.MatchResult
	switch {
	case flagPlayer != "":
		results, err = store.PlayerHistory(core.PlayerID(flagPlayer), flagLimit)
	case flagTrack != "":
		results, err = store.ResultsByTrack(sim.Track(flagTrack), flagLimit)
	default:
		results, err = store.RecentResults(flagLimit)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error retrieving results: %v\n", err)
		os.Exit(1)
	}
	if len(results) == 0 {
		fmt.Fprintln(out, "No matches recorded yet.")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Run 'quaternion run' or 'quaternion play' to finish one.")
		return
	}
	printResults(out, results)
}

func printResults(w io.Writer, results []storage.MatchResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(tui.ResultColumns, "\t"))
	for _, r := range results {
		fmt.Fprintln(tw, strings.Join(tui.ResultRow(r), "\t"))
	}
	tw.Flush()
}

func printStats(w io.Writer, store *storage.Store) error {
	stats, err := store.AllTrackStats()
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		fmt.Fprintln(w, "No matches recorded yet.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Track\tMatches\tAvg time\tLast played")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%.0fs\t%s\n", s.Track, s.Matches, s.AvgElapsed, s.LastPlayed.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}
