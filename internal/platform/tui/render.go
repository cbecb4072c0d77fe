package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/diag"
	"github.com/vovakirdan/quaternion/internal/economy"
	"github.com/vovakirdan/quaternion/internal/sim"
)

// Layout constants
const (
	barWidth       = 20
	diagLogLines   = 6
	minWidthTwoCol = 100 // Below this panels stack vertically
	feedQuality    = 0.5 // Effect feed is hidden below this quality
)

// bar renders a progress bar for frac in [0, 1].
func bar(t Theme, frac float64, width int, lead bool) string {
	frac = core.ClampF(frac, 0, 1)
	full := int(frac*float64(width) + 0.5)
	style := t.BarFull
	if lead {
		style = t.BarLead
	}
	return style.Render(strings.Repeat("█", full)) + t.BarEmpty.Render(strings.Repeat("░", width-full))
}

// renderHeader shows the clock line. The displayed time is interpolated
// between ticks.
func renderHeader(t Theme, v View, player core.PlayerID, step float64) string {
	s := v.State
	title := t.Title.Render("QUATERNION")
	if s == nil {
		return title + "  " + t.Muted.Render("waiting for the first snapshot...")
	}
	clock := s.GameTime + v.Interpolation*step
	who := "spectating"
	if player != "" {
		who = string(player)
	}
	line := fmt.Sprintf("%s  %s  %s %d  %s %.1fs  %s %.2f  %s %.2f",
		title,
		t.Subtitle.Render(fmt.Sprintf("%s · %s", s.Config.Mode, who)),
		t.Label.Render("tick"), s.Tick,
		t.Label.Render("time"), clock,
		t.Label.Render("instability"), s.Instability,
		t.Label.Render("hostility"), s.Hostility,
	)
	if v.Paused {
		line += "  " + t.Paused.Render("PAUSED")
	}
	return line
}

// renderPlayer shows one player's economy in full.
func renderPlayer(t Theme, p *sim.PlayerState) string {
	var b strings.Builder
	b.WriteString(t.PanelTitle.Render(string(p.ID)))
	if p.Eliminated {
		b.WriteString(" " + t.Warning.Render("eliminated"))
	}
	b.WriteString("\n")

	for _, r := range core.AllResources {
		fmt.Fprintf(&b, "%s %s\n",
			t.Label.Render(fmt.Sprintf("%-8s", r)),
			t.AxisStyle(r).Render(fmt.Sprintf("%8.1f", p.Resources.Get(r))),
		)
	}
	fmt.Fprintf(&b, "%s %s\n", t.Label.Render("pop     "),
		t.Value.Render(fmt.Sprintf("%.0f/%.0f", p.Population.Current, p.Population.Max)))
	fmt.Fprintf(&b, "%s %s\n", t.Label.Render("garrison"), t.Value.Render(fmt.Sprint(p.Garrison)))
	fmt.Fprintf(&b, "%s %s\n", t.Label.Render("base hp "), t.Value.Render(fmt.Sprintf("%.0f", p.BaseHP)))
	fmt.Fprintf(&b, "%s %s\n", t.Label.Render("moral   "), t.Value.Render(fmt.Sprintf("%+.1f", p.MoralAlignment)))

	b.WriteString(t.Label.Render("built   ") + " " + renderCounts(p.Buildings) + "\n")
	for _, job := range p.Construction {
		fmt.Fprintf(&b, "%s %s %.1fs\n", t.Label.Render("building"), job.Building, job.Remaining)
	}
	if p.Research != nil {
		fmt.Fprintf(&b, "%s %s %.1fs\n", t.Label.Render("research"), p.Research.Tech, p.Research.Remaining)
	}
	b.WriteString(t.Label.Render("techs   ") + " " + renderTechs(p.ResearchedTechs))
	return b.String()
}

func renderCounts(m map[core.BuildingID]int) string {
	if len(m) == 0 {
		return "-"
	}
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%s×%d", id, m[core.BuildingID(id)])
	}
	return strings.Join(parts, " ")
}

func renderTechs(m map[core.TechID]bool) string {
	var ids []string
	for id, ok := range m {
		if ok {
			ids = append(ids, string(id))
		}
	}
	if len(ids) == 0 {
		return "-"
	}
	sort.Strings(ids)
	return strings.Join(ids, " ")
}

// renderRoster is the compact line per player used next to the seated
// player, and for everyone when spectating.
func renderRoster(t Theme, s *sim.WorldState, skip core.PlayerID) string {
	var b strings.Builder
	b.WriteString(t.PanelTitle.Render("Players"))
	for _, id := range s.PlayerOrder {
		if id == skip {
			continue
		}
		p := s.Players[id]
		if p == nil {
			continue
		}
		status := ""
		if p.Eliminated {
			status = " " + t.Warning.Render("out")
		}
		fmt.Fprintf(&b, "\n%-10s hp %4.0f  gar %3d  %s%s",
			id, p.BaseHP, p.Garrison, t.Muted.Render(p.Resources.String()), status)
	}
	if s.Controller != "" {
		fmt.Fprintf(&b, "\n%s %s", t.Label.Render("contested point held by"), t.Value.Render(string(s.Controller)))
	}
	return b.String()
}

// renderTracks shows progress toward every victory track.
func renderTracks(t Theme, s *sim.WorldState) string {
	var b strings.Builder
	b.WriteString(t.PanelTitle.Render("Victory"))

	best := -1.0
	for _, tr := range s.WinConditions {
		if f := trackFraction(tr); f > best {
			best = f
		}
	}
	for _, tr := range s.WinConditions {
		f := trackFraction(tr)
		leader := string(tr.Leader)
		if leader == "" {
			leader = "-"
		}
		fmt.Fprintf(&b, "\n%-14s %s %3.0f%% %s",
			tr.Track, bar(t, f, barWidth, f == best && f > 0), f*100, t.Muted.Render(leader))
	}
	return b.String()
}

func trackFraction(tr sim.WinConditionTracker) float64 {
	if tr.Threshold <= 0 {
		return 0
	}
	return core.ClampF(tr.Progress/tr.Threshold, 0, 1)
}

// renderPrompts lists the open decisions of player.
func renderPrompts(t Theme, v View, player core.PlayerID) string {
	var lines []string
	keys := []string{"z", "x", "c"}
	for _, pz := range v.Puzzles {
		if pz.PlayerID != player {
			continue
		}
		lines = append(lines, t.Value.Render(pz.Prompt))
		for i, o := range pz.Options {
			if i >= len(keys) {
				break
			}
			lines = append(lines, fmt.Sprintf("  [%s] %s %s", keys[i], o.Label,
				t.Muted.Render(fmt.Sprintf("pay %s", compactResources(o.Cost)))))
		}
		break
	}
	if o, ok := firstOffer(v, player); ok {
		lines = append(lines, fmt.Sprintf("[o] %s", o))
	}
	if v.Advice != nil {
		lines = append(lines, t.Label.Render("advisor: ")+v.Advice.Message)
	}
	if len(lines) == 0 {
		return ""
	}
	return t.PanelTitle.Render("Decisions") + "\n" + strings.Join(lines, "\n")
}

func firstOffer(v View, player core.PlayerID) (string, bool) {
	if v.State != nil {
		for _, o := range v.State.Offers {
			if o.PlayerID == player && o.ExpiresAt > v.State.GameTime {
				return fmt.Sprintf("%s offers %s for %s", o.Source, compactResources(o.Get), compactResources(o.Give)), true
			}
		}
	}
	for _, o := range v.Market {
		if o.PlayerID == player && o.Status == economy.StatusOpen {
			return fmt.Sprintf("market: %s for %s (risky)", compactResources(o.Reward), compactResources(o.Cost)), true
		}
	}
	return "", false
}

// compactResources lists only the non-zero axes.
func compactResources(r core.Resources) string {
	var parts []string
	for _, axis := range core.AllResources {
		if v := r.Get(axis); v != 0 {
			parts = append(parts, fmt.Sprintf("%s %.0f", axis, v))
		}
	}
	if len(parts) == 0 {
		return "nothing"
	}
	return strings.Join(parts, ", ")
}

// renderFeed shows recent effects, newest last.
func renderFeed(t Theme, feed []string) string {
	if len(feed) == 0 {
		return t.PanelTitle.Render("Feed") + "\n" + t.Muted.Render("quiet so far")
	}
	return t.PanelTitle.Render("Feed") + "\n" + strings.Join(feed, "\n")
}

// renderDiag is the diagnostics overlay.
func renderDiag(t Theme, v View) string {
	var b strings.Builder
	b.WriteString(t.OverlayTitle.Render("Diagnostics"))
	b.WriteString("\n")
	if tel := v.Telemetry; tel != nil {
		fmt.Fprintf(&b, "state %s  fps %.1f  quality %.2f\n", tel.State, tel.FPS, tel.Quality)
		fmt.Fprintf(&b, "tick %s  render %s\n", tel.TickTime, tel.RenderTime)
		fmt.Fprintf(&b, "ticks %d  frames %d  dropped %d  clamped %d  errors %d\n",
			tel.Ticks, tel.Frames, tel.DroppedTicks, tel.ClampedFrames, tel.Errors)
	} else {
		b.WriteString(t.Muted.Render("match runs in the room"))
		b.WriteString("\n")
	}
	for _, st := range v.Subsystems {
		fmt.Fprintf(&b, "%-15s every %-5s runs %3d  failures %d\n", st.Name, st.Cooldown, st.Runs, st.Failures)
	}
	lines := diag.Lines()
	if len(lines) > diagLogLines {
		lines = lines[len(lines)-diagLogLines:]
	}
	for _, l := range lines {
		b.WriteString(t.Muted.Render(l))
		b.WriteString("\n")
	}
	return t.OverlayBorder.Render(strings.TrimRight(b.String(), "\n"))
}

// renderEndgame is the final banner.
func renderEndgame(t Theme, end *sim.EndgameScenario, player core.PlayerID) string {
	headline := t.OverlayTitle.Render("MATCH OVER")
	switch {
	case player == "":
	case end.Winner == player:
		headline = t.Victory.Render("VICTORY")
	default:
		headline = t.Defeat.Render("DEFEAT")
	}
	winner := string(end.Winner)
	if winner == "" {
		winner = "nobody"
	}
	body := fmt.Sprintf("%s\n\n%s by %s after %.1fs (tick %d)\n%s\n\n%s",
		headline, winner, end.Track, end.Elapsed, end.Tick, end.Reason, t.Help.Render("q to quit"))
	return t.OverlayBorder.Render(body)
}

// layout joins the panels side by side on wide terminals.
func layout(t Theme, width int, left, right []string) string {
	render := func(parts []string) []string {
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p != "" {
				out = append(out, t.Panel.Render(p))
			}
		}
		return out
	}
	l, r := render(left), render(right)
	if width < minWidthTwoCol {
		return lipgloss.JoinVertical(lipgloss.Left, append(l, r...)...)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.JoinVertical(lipgloss.Left, l...),
		" ",
		lipgloss.JoinVertical(lipgloss.Left, r...),
	)
}
