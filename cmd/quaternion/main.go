// quaternion runs deterministic RTS matches: headless, in the terminal, or
// as a shared multiplayer room.
//
// Usage:
//
//	quaternion run              - Run a headless match and print the endgame
//	quaternion play             - Play a match in the terminal
//	quaternion serve            - Host a multiplayer room over SSH and websocket
//	quaternion results          - Show stored match results
//	quaternion replay <file>    - Verify a recorded journal
//	quaternion tables           - Validate and print the data tables
//
// Global flags:
//
//	--seed <value>        - Match seed (0 = random based on time)
//	--fps <rate>          - Host frame rate (default: 60)
//	--db <path>           - Results database (default: ~/.quaternion/results.db)
//	--config <path>       - Data tables YAML
//	--log-level <level>   - debug, info, warn or error
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/quaternion/internal/config"
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/diag"
	"github.com/vovakirdan/quaternion/internal/storage"
)

var (
	// Global flags
	flagSeed       int64
	flagFPS        int
	flagDBPath     string
	flagConfig     string
	flagLogLevel   string
	flagDifficulty string
	flagMapType    string
	flagMode       string
	flagMapWidth   int
	flagMapHeight  int

	logLevel log.Level
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "quaternion",
	Short: "Quaternion - deterministic real-time strategy matches",
	Long: `Quaternion simulates real-time strategy matches on a fixed timestep.
Identical seeds, tables and inputs always produce identical matches.

Available commands:
  run      - Run a headless match and print the endgame
  play     - Play a match in the terminal
  serve    - Host a multiplayer room over SSH and websocket
  results  - Show stored match results
  replay   - Verify a recorded journal
  tables   - Validate and print the data tables

Examples:
  quaternion run --seed 42 --replay match.jsonl.zst
  quaternion play --difficulty hard --map-type highlands
  quaternion serve --ssh :23234 --ws :8080
  quaternion replay match.jsonl.zst`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		level, err := diag.ParseLevel(flagLogLevel)
		if err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
		logLevel = level
		diag.Init(diag.DefaultCapacity)
		return nil
	},
}

func init() {
	defaults := core.DefaultMatchConfig()

	rootCmd.PersistentFlags().Int64Var(&flagSeed, "seed", 0, "Match seed (0 = random based on time)")
	rootCmd.PersistentFlags().IntVar(&flagFPS, "fps", 60, "Host frame rate (frames per second)")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "~/.quaternion/results.db", "Path to results database")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to data tables YAML")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagDifficulty, "difficulty", defaults.AIDifficulty, "AI difficulty preset: easy, normal, hard, brutal")
	rootCmd.PersistentFlags().StringVar(&flagMapType, "map-type", defaults.MapType, "Map type: continental, archipelago, highlands, wasteland")
	rootCmd.PersistentFlags().StringVar(&flagMode, "mode", string(defaults.Mode), "Mode: single, campaign, puzzle, theater")
	rootCmd.PersistentFlags().IntVar(&flagMapWidth, "map-width", defaults.MapWidth, "Map width in tiles")
	rootCmd.PersistentFlags().IntVar(&flagMapHeight, "map-height", defaults.MapHeight, "Map height in tiles")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(resultsCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(tablesCmd)
}

// matchConfig builds the match setup from the global flags.
func matchConfig(mode core.Mode) (core.MatchConfig, error) {
	cfg := core.DefaultMatchConfig()
	cfg.Seed = flagSeed
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	cfg.Mode = mode
	cfg.MapType = flagMapType
	cfg.MapWidth = flagMapWidth
	cfg.MapHeight = flagMapHeight
	cfg.AIDifficulty = flagDifficulty
	if !mode.HasLocalPlayer() {
		cfg.PlayerID = ""
	}
	if mode == core.ModeMultiplayer {
		cfg.RoomID = flagRoomID
	}
	if _, err := config.ParseDifficulty(cfg.AIDifficulty); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// flagMatchConfig parses --mode and builds the match setup.
func flagMatchConfig() (core.MatchConfig, error) {
	mode, err := core.ParseMode(flagMode)
	if err != nil {
		return core.MatchConfig{}, err
	}
	if mode == core.ModeMultiplayer {
		return core.MatchConfig{}, fmt.Errorf("multiplayer matches are hosted with 'quaternion serve'")
	}
	return matchConfig(mode)
}

// newLogger returns a component logger writing to the diagnostics ring,
// and to stderr when echo is set.
func newLogger(prefix string, echo bool) *log.Logger {
	opts := diag.Options{Prefix: prefix, Level: logLevel}
	if echo {
		opts.Echo = os.Stderr
	}
	return diag.NewLogger(opts)
}

// openStore opens the results database. Failure is only a warning; matches
// run without persistence.
func openStore(logger *log.Logger) *storage.Store {
	store, err := storage.Open(flagDBPath)
	if err != nil {
		logger.Warn("could not open results database", "path", flagDBPath, "error", err)
		return nil
	}
	return store
}
