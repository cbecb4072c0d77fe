package config

import (
	"fmt"
	"strings"
)

// Difficulty scales how hard the AI subsystems and the economy push.
type Difficulty struct {
	Name          string
	CooldownScale float64 // Multiplies subsystem cooldowns; lower is more frequent
	SeverityScale float64 // Multiplies world event and shock magnitudes
	RiskScale     float64 // Multiplies black-market risk
	Mirroring     float64 // Strength of the adaptive AI's counter-investment
	Aggression    float64 // Garrison the commander wants before it attacks, as a fraction of population
}

var difficulties = []Difficulty{
	{Name: "easy", CooldownScale: 1.5, SeverityScale: 0.7, RiskScale: 0.5, Mirroring: 0.5, Aggression: 0.9},
	{Name: "normal", CooldownScale: 1.0, SeverityScale: 1.0, RiskScale: 1.0, Mirroring: 1.0, Aggression: 0.6},
	{Name: "hard", CooldownScale: 0.8, SeverityScale: 1.3, RiskScale: 1.3, Mirroring: 1.5, Aggression: 0.4},
	{Name: "brutal", CooldownScale: 0.6, SeverityScale: 1.6, RiskScale: 1.6, Mirroring: 2.0, Aggression: 0.25},
}

// ParseDifficulty returns the preset with the given name.
func ParseDifficulty(name string) (Difficulty, error) {
	for _, d := range difficulties {
		if strings.EqualFold(d.Name, name) {
			return d, nil
		}
	}
	return Difficulty{}, fmt.Errorf("unknown difficulty %q (want one of %s)", name, strings.Join(DifficultyNames(), ", "))
}

// DifficultyNames lists presets from easiest to hardest.
func DifficultyNames() []string {
	names := make([]string, len(difficulties))
	for i, d := range difficulties {
		names[i] = d.Name
	}
	return names
}
