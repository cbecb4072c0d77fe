package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/quaternion/internal/config"
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/room"
	"github.com/vovakirdan/quaternion/internal/sim"
)

// Model is the Bubble Tea model for the match HUD. Every TickMsg is one
// host frame: the wall time since the previous tick is fed to the source.
type Model struct {
	source   Source
	tables   *config.Tables
	keys     KeyMap
	help     help.Model
	theme    Theme
	fps      int
	last     time.Time
	view     View
	notice   string
	err      error
	width    int
	height   int
	showDiag bool
	paused   bool // Paused by the player, as opposed to focus loss
	blurred  bool
	quitting bool
}

// NewModel creates a HUD for src.
func NewModel(src Source, tables *config.Tables, fps int) Model {
	if fps < 1 {
		fps = 60
	}
	return Model{
		source: src,
		tables: tables,
		keys:   DefaultKeyMap(),
		help:   help.New(),
		theme:  DefaultTheme(),
		fps:    fps,
		width:  80,
		height: 24,
	}
}

// Init starts the frame loop.
func (m Model) Init() tea.Cmd {
	return frameCmd(m.fps)
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.BlurMsg:
		m.blurred = true
		m.source.Pause()
		return m, nil

	case tea.FocusMsg:
		m.blurred = false
		if !m.paused {
			m.source.Resume()
		}
		return m, nil

	case TickMsg:
		return m.handleTick(time.Time(msg))
	}

	return m, nil
}

// handleTick advances the source by the wall time since the last frame.
func (m Model) handleTick(now time.Time) (tea.Model, tea.Cmd) {
	delta := frameDelta(m.last, now)
	m.last = now

	v, err := m.source.Advance(delta)
	if err != nil {
		m.err = err
		if errors.Is(err, room.ErrClosed) {
			m.quitting = true
			return m, tea.Quit
		}
		// A failed loop stays on screen until the player quits.
		return m, nil
	}
	m.view = v
	return m, frameCmd(m.fps)
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.source.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Diag):
		m.showDiag = !m.showDiag
		return m, nil
	case key.Matches(msg, m.keys.Pause):
		m.paused = !m.paused
		if m.paused {
			m.source.Pause()
		} else if !m.blurred {
			m.source.Resume()
		}
		return m, nil
	}

	if m.view.Endgame != nil {
		return m, nil
	}
	a, ok, what := m.actionFor(msg)
	if what == "" {
		return m, nil
	}
	if !ok {
		m.notice = "nothing to " + what
		return m, nil
	}
	if err := m.source.Submit(a); err != nil {
		m.notice = err.Error()
		return m, nil
	}
	m.notice = ""
	return m, nil
}

// actionFor maps a key to a player action. what names the command for
// feedback and is empty for unbound keys.
func (m Model) actionFor(msg tea.KeyMsg) (a core.PlayerAction, ok bool, what string) {
	player := m.source.Player()
	var self *sim.PlayerState
	if m.view.State != nil {
		self = m.view.State.Player(player)
	}
	k := msg.String()
	switch {
	case key.Matches(msg, m.keys.Build):
		a, ok = buildAction(m.tables, buildIndex(k))
		return a, ok, "build"
	case key.Matches(msg, m.keys.Research):
		a, ok = researchAction(m.tables, self)
		return a, ok, "research"
	case key.Matches(msg, m.keys.Move):
		return moveAction(moveUnits), true, "move"
	case key.Matches(msg, m.keys.Recall):
		return moveAction(-moveUnits), true, "recall"
	case key.Matches(msg, m.keys.Attack):
		a, ok = attackAction(m.view.State, player)
		return a, ok, "attack"
	case key.Matches(msg, m.keys.Option):
		a, ok = optionAction(m.view.Puzzles, player, optionIndex(k))
		return a, ok, "answer"
	case key.Matches(msg, m.keys.Accept):
		a, ok = acceptAction(m.view.State, m.view.Market, player)
		return a, ok, "accept"
	}
	return core.PlayerAction{}, false, ""
}

// View renders the HUD.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	t := m.theme
	v := m.view
	player := m.source.Player()

	var b strings.Builder
	b.WriteString(renderHeader(t, v, player, m.tables.Scheduler.FixedTimestep()))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(t.Warning.Render(fmt.Sprintf("match stopped: %v", m.err)))
		b.WriteString("\n")
	}

	switch {
	case v.Endgame != nil:
		b.WriteString(renderEndgame(t, v.Endgame, player))
	case m.showDiag:
		b.WriteString(renderDiag(t, v))
	case v.State != nil:
		var left, right []string
		if self := v.State.Player(player); self != nil {
			left = append(left, renderPlayer(t, self))
		}
		left = append(left, renderRoster(t, v.State, player))
		right = append(right, renderTracks(t, v.State), renderPrompts(t, v, player))
		if v.Quality >= feedQuality || v.Telemetry == nil {
			right = append(right, renderFeed(t, v.Feed))
		}
		b.WriteString(layout(t, m.width, left, right))
	}

	b.WriteString("\n")
	if m.notice != "" {
		b.WriteString(t.Warning.Render(m.notice))
		b.WriteString("\n")
	}
	b.WriteString(t.Help.Render(m.help.View(m.keys)))

	return lipgloss.NewStyle().MaxWidth(m.width).Render(b.String())
}

// Run starts the Bubble Tea program for src and blocks until it exits.
func Run(src Source, tables *config.Tables, fps int) error {
	model := NewModel(src, tables, fps)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithReportFocus(),
	)

	_, err := p.Run()
	src.Close()
	return err
}
