package core

import (
	"fmt"
	"math"
	"strings"
)

// Resource identifies one of the four economic axes.
type Resource int

const (
	Ore Resource = iota
	Energy
	Biomass
	Data
)

// AllResources lists the axes in canonical order. Iteration over resources
// always uses this order so that results are reproducible.
var AllResources = [...]Resource{Ore, Energy, Biomass, Data}

func (r Resource) String() string {
	switch r {
	case Ore:
		return "ore"
	case Energy:
		return "energy"
	case Biomass:
		return "biomass"
	case Data:
		return "data"
	default:
		return fmt.Sprintf("resource(%d)", int(r))
	}
}

// ParseResource converts a resource name to a Resource.
func ParseResource(s string) (Resource, error) {
	for _, r := range AllResources {
		if strings.EqualFold(s, r.String()) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown resource %q", s)
}

// MarshalText encodes the resource by name.
func (r Resource) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a resource name.
func (r *Resource) UnmarshalText(b []byte) error {
	v, err := ParseResource(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Resources is an amount on each of the four axes. It is used for balances,
// costs, rates and deltas alike; only balances are required to stay
// non-negative.
type Resources struct {
	Ore     float64 `json:"ore" yaml:"ore"`
	Energy  float64 `json:"energy" yaml:"energy"`
	Biomass float64 `json:"biomass" yaml:"biomass"`
	Data    float64 `json:"data" yaml:"data"`
}

// Uniform returns Resources with v on every axis.
func Uniform(v float64) Resources {
	return Resources{Ore: v, Energy: v, Biomass: v, Data: v}
}

// Get returns the amount on axis r.
func (r Resources) Get(res Resource) float64 {
	switch res {
	case Ore:
		return r.Ore
	case Energy:
		return r.Energy
	case Biomass:
		return r.Biomass
	case Data:
		return r.Data
	}
	return 0
}

// With returns a copy of r with axis res set to v.
func (r Resources) With(res Resource, v float64) Resources {
	switch res {
	case Ore:
		r.Ore = v
	case Energy:
		r.Energy = v
	case Biomass:
		r.Biomass = v
	case Data:
		r.Data = v
	}
	return r
}

// Add returns r + o.
func (r Resources) Add(o Resources) Resources {
	return Resources{
		Ore:     r.Ore + o.Ore,
		Energy:  r.Energy + o.Energy,
		Biomass: r.Biomass + o.Biomass,
		Data:    r.Data + o.Data,
	}
}

// Sub returns r - o.
func (r Resources) Sub(o Resources) Resources {
	return r.Add(o.Scale(-1))
}

// Scale multiplies every axis by f.
func (r Resources) Scale(f float64) Resources {
	return Resources{Ore: r.Ore * f, Energy: r.Energy * f, Biomass: r.Biomass * f, Data: r.Data * f}
}

// Mul multiplies axis by axis.
func (r Resources) Mul(o Resources) Resources {
	return Resources{
		Ore:     r.Ore * o.Ore,
		Energy:  r.Energy * o.Energy,
		Biomass: r.Biomass * o.Biomass,
		Data:    r.Data * o.Data,
	}
}

// Covers reports whether a balance r can pay cost without going negative.
func (r Resources) Covers(cost Resources) bool {
	return r.Sub(cost).NonNegative()
}

// NonNegative reports whether every axis is >= 0.
func (r Resources) NonNegative() bool {
	return r.Ore >= 0 && r.Energy >= 0 && r.Biomass >= 0 && r.Data >= 0
}

// IsZero reports whether every axis is exactly zero.
func (r Resources) IsZero() bool {
	return r == Resources{}
}

// Positive keeps only the positive parts of r.
func (r Resources) Positive() Resources {
	return Resources{
		Ore:     math.Max(r.Ore, 0),
		Energy:  math.Max(r.Energy, 0),
		Biomass: math.Max(r.Biomass, 0),
		Data:    math.Max(r.Data, 0),
	}
}

// Negative returns the magnitude of the negative parts of r, so that
// r == r.Positive().Sub(r.Negative()).
func (r Resources) Negative() Resources {
	return r.Scale(-1).Positive()
}

// Total is the sum over all axes.
func (r Resources) Total() float64 {
	return r.Ore + r.Energy + r.Biomass + r.Data
}

// Mean is the average over all axes.
func (r Resources) Mean() float64 {
	return r.Total() / float64(len(AllResources))
}

// Min returns the smallest axis and its value.
func (r Resources) Min() (Resource, float64) {
	best, val := Ore, r.Ore
	for _, res := range AllResources[1:] {
		if v := r.Get(res); v < val {
			best, val = res, v
		}
	}
	return best, val
}

// Max returns the largest axis and its value.
func (r Resources) Max() (Resource, float64) {
	best, val := Ore, r.Ore
	for _, res := range AllResources[1:] {
		if v := r.Get(res); v > val {
			best, val = res, v
		}
	}
	return best, val
}

// Imbalance measures how far the axes are from each other:
// (max - min) / (mean + 1). Zero means perfectly balanced. The +1 keeps the
// measure finite for an empty balance.
func (r Resources) Imbalance() float64 {
	_, lo := r.Min()
	_, hi := r.Max()
	return (hi - lo) / (r.Mean() + 1)
}

func (r Resources) String() string {
	return fmt.Sprintf("ore=%.1f energy=%.1f biomass=%.1f data=%.1f", r.Ore, r.Energy, r.Biomass, r.Data)
}
