package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vovakirdan/quaternion/internal/core"
)

func TestDefaultTables(t *testing.T) {
	tables, err := Default()
	if err != nil {
		t.Fatalf("Default() failed: %v", err)
	}

	if tables.Scheduler.TickRate != 60 {
		t.Errorf("TickRate = %d, expected 60", tables.Scheduler.TickRate)
	}
	if got := tables.Scheduler.FixedTimestep(); got != 1.0/60 {
		t.Errorf("FixedTimestep() = %v", got)
	}
	if tables.Start.Resources.Ore != 150 {
		t.Errorf("start ore = %v, expected 150", tables.Start.Resources.Ore)
	}
	if tables.Buildings["barracks"].Cost.Ore != 200 {
		t.Errorf("barracks ore cost = %v, expected 200", tables.Buildings["barracks"].Cost.Ore)
	}
	if !tables.Techs[tables.Victory.Technological.Tech].Terminal {
		t.Error("victory tech should be terminal")
	}
	if got := tables.Subsystems["ecosystem"].CooldownDuration().Seconds(); got != 60 {
		t.Errorf("ecosystem cooldown = %vs, expected 60s", got)
	}

	names := tables.SubsystemNames()
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("SubsystemNames() not sorted: %v", names)
		}
	}
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		replace [2]string
	}{
		{"zero tick rate", [2]string{"tick_rate: 60", "tick_rate: 0"}},
		{"negative cost", [2]string{"cost: { ore: 80 }", "cost: { ore: -80 }"}},
		{"unknown resource", [2]string{"produces: { ore: 1.0 }", "produces: { plasma: 1.0 }"}},
		{"risk above one", [2]string{"risk: 0.2", "risk: 1.5"}},
		{"unknown terrain", [2]string{"terrain: [highlands, wasteland]", "terrain: [lunar]"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc := string(DefaultYAML())
			if !strings.Contains(doc, tc.replace[0]) {
				t.Fatalf("fixture %q not found in default tables", tc.replace[0])
			}
			doc = strings.Replace(doc, tc.replace[0], tc.replace[1], 1)

			_, err := Parse([]byte(doc), "test")
			if !errors.Is(err, ErrInvalidTables) {
				t.Errorf("Parse() = %v, expected ErrInvalidTables", err)
			}
		})
	}
}

func TestValidateCrossReferences(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Tables)
	}{
		{"unknown prerequisite", func(tb *Tables) {
			def := tb.Techs["fusion"]
			def.Requires = []core.TechID{"warp"}
			tb.Techs["fusion"] = def
		}},
		{"prerequisite cycle", func(tb *Tables) {
			def := tb.Techs["survey"]
			def.Requires = []core.TechID{"fusion"}
			tb.Techs["survey"] = def
		}},
		{"victory tech not terminal", func(tb *Tables) {
			tb.Victory.Technological.Tech = "survey"
		}},
		{"unknown start building", func(tb *Tables) {
			tb.Start.Buildings["spaceport"] = 1
		}},
		{"alignment beyond bound", func(tb *Tables) {
			tb.Victory.Moral.Alignment = tb.Victory.Moral.Bound + 1
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tables, err := Default()
			if err != nil {
				t.Fatalf("Default() failed: %v", err)
			}
			tc.mutate(tables)
			if err := tables.Validate(); !errors.Is(err, ErrInvalidTables) {
				t.Errorf("Validate() = %v, expected ErrInvalidTables", err)
			}
		})
	}
}

func TestLoadCustomPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tables.yaml")
	doc := strings.Replace(string(DefaultYAML()), "base_hp: 500", "base_hp: 750", 1)
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	tables, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if tables.Start.BaseHP != 750 {
		t.Errorf("BaseHP = %v, expected 750", tables.Start.BaseHP)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing custom path")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	tables, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	c := tables.Clone()
	c.DisableSubsystems()
	c.Start.Buildings["extractor"] = 9

	if len(tables.SubsystemNames()) == 0 {
		t.Error("disabling subsystems on a clone affected the original")
	}
	if tables.Start.Buildings["extractor"] != 1 {
		t.Error("mutating a clone's start buildings affected the original")
	}
	if len(c.SubsystemNames()) != 0 {
		t.Errorf("clone still has enabled subsystems: %v", c.SubsystemNames())
	}
}

func TestParseDifficulty(t *testing.T) {
	for _, name := range DifficultyNames() {
		d, err := ParseDifficulty(name)
		if err != nil {
			t.Errorf("ParseDifficulty(%q) failed: %v", name, err)
		}
		if d.CooldownScale <= 0 {
			t.Errorf("%s: CooldownScale must be positive", name)
		}
	}

	if _, err := ParseDifficulty("nightmare"); err == nil {
		t.Error("expected error for unknown difficulty")
	}

	easy, _ := ParseDifficulty("easy")
	brutal, _ := ParseDifficulty("BRUTAL")
	if brutal.CooldownScale >= easy.CooldownScale {
		t.Error("brutal should run subsystems more often than easy")
	}
}
