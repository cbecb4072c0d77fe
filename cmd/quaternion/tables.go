package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vovakirdan/quaternion/internal/config"
)

var flagTablesDump bool

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Validate and print the data tables",
	Long: `Load the data tables the way a match would, validate them and print a
summary of buildings and techs. With --dump the resolved tables are
printed as YAML, ready to be edited and passed back with --config.

Examples:
  quaternion tables
  quaternion tables --config ./tables.yaml
  quaternion tables --dump > tables.yaml`,
	Args: cobra.NoArgs,
	Run:  runTables,
}

func init() {
	tablesCmd.Flags().BoolVar(&flagTablesDump, "dump", false, "Print the resolved tables as YAML")
}

func runTables(cmd *cobra.Command, _ []string) {
	tables, err := config.Load(flagConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading tables: %v\n", err)
		os.Exit(1)
	}

	out := cmd.OutOrStdout()
	if flagTablesDump {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(tables); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing tables: %v\n", err)
			os.Exit(1)
		}
		enc.Close()
		return
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Building\tName\tBuild time\tHousing")
	for _, id := range tables.BuildingIDs() {
		b := tables.Buildings[id]
		fmt.Fprintf(tw, "%s\t%s\t%.0fs\t%.0f\n", id, b.Name, b.BuildTime, b.Housing)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "Tech\tName\tResearch time\tRequires\tFlags")
	for _, id := range tables.TechIDs() {
		t := tables.Techs[id]
		requires := "-"
		if len(t.Requires) > 0 {
			parts := make([]string, len(t.Requires))
			for i, r := range t.Requires {
				parts[i] = string(r)
			}
			requires = strings.Join(parts, ",")
		}
		var flags []string
		if t.RequiresUnlock {
			flags = append(flags, "unlock")
		}
		if t.Terminal {
			flags = append(flags, "terminal")
		}
		if len(t.Terrain) > 0 {
			flags = append(flags, strings.Join(t.Terrain, "/"))
		}
		fmt.Fprintf(tw, "%s\t%s\t%.0fs\t%s\t%s\n", id, t.Name, t.ResearchTime, requires, strings.Join(flags, " "))
	}
	tw.Flush()

	fmt.Fprintf(out, "\nsubsystems: %s\n", strings.Join(tables.SubsystemNames(), ", "))
}
