package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/quaternion/internal/sim"
	"github.com/vovakirdan/quaternion/internal/storage"
)

// Results layout constants
const (
	maxResults = 100
	allTracks  = "all"
)

// ResultLister is the part of the store the results screen reads.
type ResultLister interface {
	RecentResults(limit int) ([]storage.MatchResult, error)
	ResultsByTrack(track sim.Track, limit int) ([]storage.MatchResult, error)
}

// resultTabs lists the filters in display order.
var resultTabs = []string{
	allTracks,
	string(sim.TrackElimination),
	string(sim.TrackEquilibrium),
	string(sim.TrackTechnological),
	string(sim.TrackTerritorial),
	string(sim.TrackMoral),
	string(sim.TrackAlternative),
}

// ResultsKeyMap defines the key bindings for the results screen.
type ResultsKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	NextTab key.Binding
	PrevTab key.Binding
	Quit    key.Binding
}

// ShortHelp returns key bindings for the short help view.
func (k ResultsKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.NextTab, k.PrevTab, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k ResultsKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down}, {k.NextTab, k.PrevTab, k.Quit}}
}

// DefaultResultsKeyMap returns default key bindings.
func DefaultResultsKeyMap() ResultsKeyMap {
	return ResultsKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "scroll down"),
		),
		NextTab: key.NewBinding(
			key.WithKeys("tab", "right", "l"),
			key.WithHelp("tab", "next track"),
		),
		PrevTab: key.NewBinding(
			key.WithKeys("shift+tab", "left", "h"),
			key.WithHelp("S-tab", "prev track"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ResultsModel is the Bubble Tea model for the stored match results.
type ResultsModel struct {
	store    ResultLister
	tab      int
	results  []storage.MatchResult
	loadErr  error
	table    table.Model
	help     help.Model
	keys     ResultsKeyMap
	width    int
	height   int
	quitting bool
}

// NewResultsModel creates a results screen.
func NewResultsModel(store ResultLister, width, height int) ResultsModel {
	m := ResultsModel{
		store:  store,
		keys:   DefaultResultsKeyMap(),
		help:   help.New(),
		width:  width,
		height: height,
	}
	m.table = m.createTable()
	m.load()
	return m
}

// ResultColumns are the column titles shared with plain output.
var ResultColumns = []string{"Match", "Track", "Winner", "Loser", "Mode", "Tick", "Time", "Played"}

// ResultRow formats one result for display.
func ResultRow(r storage.MatchResult) []string {
	winner := string(r.Winner)
	if winner == "" {
		winner = "-"
	}
	loser := string(r.Loser)
	if loser == "" {
		loser = "-"
	}
	id := r.MatchID
	if len(id) > 8 {
		id = id[:8]
	}
	return []string{
		id,
		string(r.Track),
		winner,
		loser,
		string(r.Mode),
		fmt.Sprint(r.Tick),
		fmt.Sprintf("%.0fs", r.Elapsed),
		r.CreatedAt.Format("Jan 02 15:04"),
	}
}

func (m *ResultsModel) createTable() table.Model {
	widths := []int{8, 14, 10, 10, 12, 7, 7, 12}
	columns := make([]table.Column, len(ResultColumns))
	for i, title := range ResultColumns {
		columns[i] = table.Column{Title: title, Width: widths[i]}
	}

	height := m.height - 8 // Title, tabs and help
	if height < 3 {
		height = 3
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(height),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)
	return t
}

// load reads the results for the current tab.
func (m *ResultsModel) load() {
	m.results, m.loadErr = nil, nil
	if m.store != nil {
		if tab := resultTabs[m.tab]; tab == allTracks {
			m.results, m.loadErr = m.store.RecentResults(maxResults)
		} else {
			m.results, m.loadErr = m.store.ResultsByTrack(sim.Track(tab), maxResults)
		}
	}
	rows := make([]table.Row, len(m.results))
	for i, r := range m.results {
		rows[i] = ResultRow(r)
	}
	m.table.SetRows(rows)
	m.table.GotoTop()
}

// Init initializes the results model.
func (m ResultsModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the results screen.
func (m ResultsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.NextTab):
			m.tab = (m.tab + 1) % len(resultTabs)
			m.load()
			return m, nil
		case key.Matches(msg, m.keys.PrevTab):
			m.tab = (m.tab + len(resultTabs) - 1) % len(resultTabs)
			m.load()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table = m.createTable()
		m.load()
		m.help.Width = msg.Width
		return m, nil
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the results screen.
func (m ResultsModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	b.WriteString(title.Render("MATCH RESULTS"))
	b.WriteString("\n\n")

	tabStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1)
	activeTabStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Padding(0, 1)
	tabs := make([]string, len(resultTabs))
	for i, name := range resultTabs {
		if i == m.tab {
			tabs[i] = activeTabStyle.Render(name)
		} else {
			tabs[i] = tabStyle.Render(name)
		}
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
	b.WriteString("\n\n")

	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)
	switch {
	case m.loadErr != nil:
		b.WriteString(panel.Render(fmt.Sprintf("could not load results: %v", m.loadErr)))
	case len(m.results) == 0:
		empty := lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true).
			Padding(1, 4)
		b.WriteString(panel.Render(empty.Render("No matches recorded yet.")))
	default:
		b.WriteString(panel.Render(m.table.View()))
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render(m.help.View(m.keys)))
	return b.String()
}

// Track returns the filter of the current tab, empty for all tracks.
func (m ResultsModel) Track() sim.Track {
	if tab := resultTabs[m.tab]; tab != allTracks {
		return sim.Track(tab)
	}
	return ""
}

// RunResults runs the results screen.
func RunResults(store ResultLister, width, height int) error {
	p := tea.NewProgram(NewResultsModel(store, width, height), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
