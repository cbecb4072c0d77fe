// Package tui hosts a match in the terminal, locally or over SSH. Bubble
// Tea tick messages are the host frames that drive the scheduler.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// TickMsg is one host frame.
type TickMsg time.Time

// frameCmd schedules the next host frame fps times a second.
func frameCmd(fps int) tea.Cmd {
	if fps < 1 {
		fps = 60
	}
	return tea.Tick(time.Second/time.Duration(fps), func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// frameDelta is the wall time in seconds between two frames. The first
// frame has no predecessor and advances nothing.
func frameDelta(last, now time.Time) float64 {
	if last.IsZero() || now.Before(last) {
		return 0
	}
	return now.Sub(last).Seconds()
}
