package config

import (
	"errors"
	"fmt"

	"github.com/vovakirdan/quaternion/internal/core"
)

// Validate performs the cross-reference checks the schema cannot express.
func (t *Tables) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidTables}, args...)...))
	}

	for _, counts := range []map[core.BuildingID]int{t.Start.Buildings, t.Start.AIBuildings} {
		for id := range counts {
			if _, ok := t.Buildings[id]; !ok {
				fail("start references unknown building %q", id)
			}
		}
	}

	for _, id := range t.TechIDs() {
		for _, req := range t.Techs[id].Requires {
			if _, ok := t.Techs[req]; !ok {
				fail("tech %q requires unknown tech %q", id, req)
			}
		}
	}
	if cyc := t.findTechCycle(); cyc != "" {
		fail("tech prerequisites form a cycle through %q", cyc)
	}

	terminal := t.Victory.Technological.Tech
	if def, ok := t.Techs[terminal]; !ok {
		fail("victory tech %q is not defined", terminal)
	} else if !def.Terminal {
		fail("victory tech %q is not marked terminal", terminal)
	}

	if t.Victory.Moral.Alignment > t.Victory.Moral.Bound {
		fail("moral alignment threshold %.1f exceeds bound %.1f", t.Victory.Moral.Alignment, t.Victory.Moral.Bound)
	}
	if t.Start.PopulationMax < t.Start.Population {
		fail("start population %.0f exceeds max %.0f", t.Start.Population, t.Start.PopulationMax)
	}

	return errors.Join(errs...)
}

// findTechCycle returns a tech on a prerequisite cycle, or "" if the graph
// is acyclic.
func (t *Tables) findTechCycle() core.TechID {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[core.TechID]int, len(t.Techs))

	var visit func(id core.TechID) core.TechID
	visit = func(id core.TechID) core.TechID {
		switch state[id] {
		case visiting:
			return id
		case done:
			return ""
		}
		state[id] = visiting
		for _, req := range t.Techs[id].Requires {
			if _, ok := t.Techs[req]; !ok {
				continue
			}
			if cyc := visit(req); cyc != "" {
				return cyc
			}
		}
		state[id] = done
		return ""
	}

	for _, id := range t.TechIDs() {
		if cyc := visit(id); cyc != "" {
			return cyc
		}
	}
	return ""
}
