// Package config provides the YAML balance tables that drive a match and
// the AI difficulty presets layered on top of them.
package config

import (
	"sort"
	"time"

	"github.com/vovakirdan/quaternion/internal/core"
)

// Tables is the full set of balance data for a match. A loaded Tables value
// is treated as read-only; callers that need a variant make their own copy.
type Tables struct {
	Scheduler   SchedulerConfig                 `yaml:"scheduler"`
	Start       StartConfig                     `yaml:"start"`
	Decay       core.Resources                  `yaml:"decay"`
	Population  PopulationConfig                `yaml:"population"`
	Territory   TerritoryConfig                 `yaml:"territory"`
	Instability InstabilityConfig               `yaml:"instability"`
	Buildings   map[core.BuildingID]BuildingDef `yaml:"buildings"`
	Techs       map[core.TechID]TechDef         `yaml:"techs"`
	Victory     VictoryConfig                   `yaml:"victory"`
	Subsystems  map[string]SubsystemConfig      `yaml:"subsystems"`
	Economy     EconomyConfig                   `yaml:"economy"`
}

// SchedulerConfig defines the fixed-timestep loop parameters.
type SchedulerConfig struct {
	TickRate       int     `yaml:"tick_rate"`       // Simulation ticks per second
	MaxDeltaTime   float64 `yaml:"max_delta_time"`  // Seconds; larger frame deltas are clamped
	MaxFrameSkip   int     `yaml:"max_frame_skip"`  // Ticks per frame before the backlog is dropped
	FrameBudgetMs  float64 `yaml:"frame_budget_ms"` // Target cost of tick+render work per frame
	QualityWindow  int     `yaml:"quality_window"`  // Frames averaged for the quality signal
	ErrorThreshold int     `yaml:"error_threshold"` // Tick errors within ErrorWindow that stop the loop
	ErrorWindow    float64 `yaml:"error_window"`    // Seconds
}

// FixedTimestep returns the tick length in seconds.
func (s SchedulerConfig) FixedTimestep() float64 {
	return 1.0 / float64(s.TickRate)
}

// StartConfig describes the initial state of every player.
type StartConfig struct {
	Resources         core.Resources          `yaml:"resources"`
	Buildings         map[core.BuildingID]int `yaml:"buildings"`
	AIBuildings       map[core.BuildingID]int `yaml:"ai_buildings"` // Extra buildings for AI players
	CampaignBonus     core.Resources          `yaml:"campaign_bonus"`
	Population        float64                 `yaml:"population"`
	PopulationMax     float64                 `yaml:"population_max"`
	BaseHP            float64                 `yaml:"base_hp"`
	ConstructionSlots int                     `yaml:"construction_slots"`
}

// PopulationConfig controls population growth.
type PopulationConfig struct {
	GrowthPerSecond float64 `yaml:"growth_per_second"`
	BiomassPerUnit  float64 `yaml:"biomass_per_unit"` // Paid as the population grows
}

// TerritoryConfig controls the contested point and combat.
type TerritoryConfig struct {
	AttackPower        float64        `yaml:"attack_power"` // Damage per garrisoned unit
	AttackCost         core.Resources `yaml:"attack_cost"`
	UnitHP             float64        `yaml:"unit_hp"`
	HostilityPerAttack float64        `yaml:"hostility_per_attack"`
}

// InstabilityConfig weights the components of world instability.
type InstabilityConfig struct {
	ImbalanceWeight   float64 `yaml:"imbalance_weight"`
	HostilityWeight   float64 `yaml:"hostility_weight"`
	HostilityHalfLife float64 `yaml:"hostility_half_life"` // Seconds
}

// BuildingDef is a constructible building kind.
type BuildingDef struct {
	Name      string         `yaml:"name"`
	Cost      core.Resources `yaml:"cost"`
	BuildTime float64        `yaml:"build_time"` // Seconds
	Produces  core.Resources `yaml:"produces"`   // Per second per building
	Housing   float64        `yaml:"housing"`    // Added to population max
}

// TechDef is a researchable technology.
type TechDef struct {
	Name           string         `yaml:"name"`
	Cost           core.Resources `yaml:"cost"`
	ResearchTime   float64        `yaml:"research_time"` // Seconds
	Requires       []core.TechID  `yaml:"requires"`
	RequiresUnlock bool           `yaml:"requires_unlock"` // Must be unlocked by the tech tree subsystem first
	Terrain        []string       `yaml:"terrain"`         // Map types that can unlock it
	Bonus          core.Resources `yaml:"bonus"`           // Production multiplier increment
	Terminal       bool           `yaml:"terminal"`
}

// AvailableOn reports whether the tech can be unlocked on the map type.
func (t TechDef) AvailableOn(mapType string) bool {
	if len(t.Terrain) == 0 {
		return true
	}
	for _, tt := range t.Terrain {
		if tt == mapType {
			return true
		}
	}
	return false
}

// VictoryConfig holds the win thresholds.
type VictoryConfig struct {
	Equilibrium   EquilibriumConfig `yaml:"equilibrium"`
	Technological struct {
		Tech core.TechID `yaml:"tech"`
	} `yaml:"technological"`
	Territorial struct {
		Seconds float64 `yaml:"seconds"`
	} `yaml:"territorial"`
	Moral MoralConfig `yaml:"moral"`
}

// EquilibriumConfig defines the balanced-economy win.
type EquilibriumConfig struct {
	Band    float64 `yaml:"band"`     // Maximum Resources.Imbalance to count as balanced
	Seconds float64 `yaml:"seconds"`  // Continuous balanced time required
	MinMean float64 `yaml:"min_mean"` // Balanced poverty does not count
}

// MoralConfig defines the moral-alignment win.
type MoralConfig struct {
	Alignment float64 `yaml:"alignment"`
	Events    int     `yaml:"events"`
	Bound     float64 `yaml:"bound"` // Alignment is clamped to [-Bound, Bound]
}

// SubsystemConfig enables an AI subsystem and sets its cadence.
type SubsystemConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Cooldown float64 `yaml:"cooldown"` // Seconds of wall-clock time
}

// CooldownDuration returns the cooldown as a time.Duration.
func (s SubsystemConfig) CooldownDuration() time.Duration {
	return time.Duration(s.Cooldown * float64(time.Second))
}

// EconomyConfig drives shocks, puzzles, the black market, and the advisor.
type EconomyConfig struct {
	Shock struct {
		Every     float64 `yaml:"every"`
		Duration  float64 `yaml:"duration"`
		Magnitude float64 `yaml:"magnitude"` // Fraction of a balance moved by one shock
	} `yaml:"shock"`
	Puzzle struct {
		Every    float64 `yaml:"every"`
		Duration float64 `yaml:"duration"`
	} `yaml:"puzzle"`
	Market struct {
		Every    float64 `yaml:"every"`
		Duration float64 `yaml:"duration"`
		Risk     float64 `yaml:"risk"`
		MaxOpen  int     `yaml:"max_open"`
		Penalty  float64 `yaml:"penalty"` // Moral hit when a deal goes wrong
	} `yaml:"market"`
	Advisor struct {
		Every float64 `yaml:"every"`
	} `yaml:"advisor"`
}

// SubsystemNames returns the enabled subsystems in sorted order.
func (t *Tables) SubsystemNames() []string {
	names := make([]string, 0, len(t.Subsystems))
	for name, sc := range t.Subsystems {
		if sc.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// BuildingIDs returns building ids in sorted order.
func (t *Tables) BuildingIDs() []core.BuildingID {
	ids := make([]core.BuildingID, 0, len(t.Buildings))
	for id := range t.Buildings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// TechIDs returns tech ids in sorted order.
func (t *Tables) TechIDs() []core.TechID {
	ids := make([]core.TechID, 0, len(t.Techs))
	for id := range t.Techs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clone returns a deep copy that can be modified freely.
func (t *Tables) Clone() *Tables {
	c := *t
	c.Start.Buildings = cloneCounts(t.Start.Buildings)
	c.Start.AIBuildings = cloneCounts(t.Start.AIBuildings)
	c.Buildings = make(map[core.BuildingID]BuildingDef, len(t.Buildings))
	for k, v := range t.Buildings {
		c.Buildings[k] = v
	}
	c.Techs = make(map[core.TechID]TechDef, len(t.Techs))
	for k, v := range t.Techs {
		v.Requires = append([]core.TechID(nil), v.Requires...)
		v.Terrain = append([]string(nil), v.Terrain...)
		c.Techs[k] = v
	}
	c.Subsystems = make(map[string]SubsystemConfig, len(t.Subsystems))
	for k, v := range t.Subsystems {
		c.Subsystems[k] = v
	}
	return &c
}

// DisableSubsystems turns every AI subsystem off.
func (t *Tables) DisableSubsystems() {
	for name, sc := range t.Subsystems {
		sc.Enabled = false
		t.Subsystems[name] = sc
	}
}

func cloneCounts(m map[core.BuildingID]int) map[core.BuildingID]int {
	if m == nil {
		return nil
	}
	out := make(map[core.BuildingID]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
