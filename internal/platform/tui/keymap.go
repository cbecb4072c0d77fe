package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/vovakirdan/quaternion/internal/config"
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/economy"
	"github.com/vovakirdan/quaternion/internal/sim"
)

// moveUnits is how many units one press of move or recall shifts.
const moveUnits = 5

// KeyMap defines the HUD key bindings.
type KeyMap struct {
	Build    key.Binding
	Research key.Binding
	Move     key.Binding
	Recall   key.Binding
	Attack   key.Binding
	Option   key.Binding
	Accept   key.Binding
	Pause    key.Binding
	Diag     key.Binding
	Help     key.Binding
	Quit     key.Binding
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Build, k.Research, k.Move, k.Attack, k.Option, k.Accept, k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Build, k.Research, k.Move, k.Recall, k.Attack},
		{k.Option, k.Accept},
		{k.Pause, k.Diag, k.Help, k.Quit},
	}
}

// DefaultKeyMap returns default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Build: key.NewBinding(
			key.WithKeys("1", "2", "3", "4", "5"),
			key.WithHelp("1-5", "build"),
		),
		Research: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "research"),
		),
		Move: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "station units"),
		),
		Recall: key.NewBinding(
			key.WithKeys("M"),
			key.WithHelp("M", "recall units"),
		),
		Attack: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "attack"),
		),
		Option: key.NewBinding(
			key.WithKeys("z", "x", "c"),
			key.WithHelp("z/x/c", "answer puzzle"),
		),
		Accept: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "accept offer"),
		),
		Pause: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "pause"),
		),
		Diag: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "diagnostics"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more keys"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// buildAction builds the building at index in sorted building order.
func buildAction(tables *config.Tables, index int) (core.PlayerAction, bool) {
	ids := tables.BuildingIDs()
	if index < 0 || index >= len(ids) {
		return core.PlayerAction{}, false
	}
	return core.PlayerAction{
		Type:    core.ActionBuild,
		Payload: core.ActionPayload{Building: ids[index]},
	}, true
}

// buildIndex maps the keys 1-9 to a zero-based index.
func buildIndex(k string) int {
	if len(k) != 1 || k[0] < '1' || k[0] > '9' {
		return -1
	}
	return int(k[0] - '1')
}

// researchAction picks the first tech, in sorted order, that p could start
// now. Affordability is left to the world.
func researchAction(tables *config.Tables, p *sim.PlayerState) (core.PlayerAction, bool) {
	if p == nil || p.Research != nil {
		return core.PlayerAction{}, false
	}
	for _, id := range tables.TechIDs() {
		if p.ResearchedTechs[id] {
			continue
		}
		def := tables.Techs[id]
		if def.RequiresUnlock && !p.UnlockedTechs[id] {
			continue
		}
		ready := true
		for _, req := range def.Requires {
			if !p.ResearchedTechs[req] {
				ready = false
				break
			}
		}
		if ready {
			return core.PlayerAction{
				Type:    core.ActionResearch,
				Payload: core.ActionPayload{Tech: id},
			}, true
		}
	}
	return core.PlayerAction{}, false
}

func moveAction(units int) core.PlayerAction {
	return core.PlayerAction{Type: core.ActionMove, Payload: core.ActionPayload{Units: units}}
}

// attackAction targets the first rival in player order. The base is hit
// once its garrison is gone.
func attackAction(s *sim.WorldState, self core.PlayerID) (core.PlayerAction, bool) {
	if s == nil {
		return core.PlayerAction{}, false
	}
	for _, id := range s.PlayerOrder {
		t := s.Players[id]
		if id == self || t == nil || t.Eliminated || s.Allied(self, id) {
			continue
		}
		return core.PlayerAction{
			Type:    core.ActionAttack,
			Payload: core.ActionPayload{Target: id, Base: t.Garrison == 0},
		}, true
	}
	return core.PlayerAction{}, false
}

// optionAction answers the oldest open puzzle of player with the option at
// index.
func optionAction(puzzles []economy.AllocationPuzzle, player core.PlayerID, index int) (core.PlayerAction, bool) {
	for _, pz := range puzzles {
		if pz.PlayerID != player || pz.Status != economy.StatusOpen {
			continue
		}
		if index < 0 || index >= len(pz.Options) {
			return core.PlayerAction{}, false
		}
		return core.PlayerAction{
			Type:    core.ActionAllocate,
			Payload: core.ActionPayload{PuzzleID: pz.ID, OptionID: pz.Options[index].ID},
		}, true
	}
	return core.PlayerAction{}, false
}

func optionIndex(k string) int {
	switch k {
	case "z":
		return 0
	case "x":
		return 1
	case "c":
		return 2
	}
	return -1
}

// acceptAction accepts the oldest live world offer of player, falling back
// to the oldest market offer.
func acceptAction(s *sim.WorldState, market []economy.MarketOffer, player core.PlayerID) (core.PlayerAction, bool) {
	if s != nil {
		for _, o := range s.Offers {
			if o.PlayerID == player && o.ExpiresAt > s.GameTime {
				return acceptOffer(o.ID), true
			}
		}
	}
	for _, o := range market {
		if o.PlayerID == player && o.Status == economy.StatusOpen {
			return acceptOffer(o.ID), true
		}
	}
	return core.PlayerAction{}, false
}

func acceptOffer(id string) core.PlayerAction {
	return core.PlayerAction{Type: core.ActionAcceptOffer, Payload: core.ActionPayload{OfferID: id}}
}
