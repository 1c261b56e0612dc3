// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and its key-driven actions
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Action is a user request from the TUI
type Action int

const (
	ActionSend Action = iota
	ActionCancel
)

// VolumeChangeMsg carries a volume or mute change
type VolumeChangeMsg struct {
	Volume int
	Muted  bool
}

// Controls holds channels for TUI to application communication
type Controls struct {
	Actions chan Action
	Volume  chan VolumeChangeMsg
	Quit    chan struct{}
}

// NewControls creates the control channels
func NewControls() *Controls {
	return &Controls{
		Actions: make(chan Action, 10),
		Volume:  make(chan VolumeChangeMsg, 10),
		Quit:    make(chan struct{}),
	}
}

func (c *Controls) send(a Action) {
	if c == nil {
		return
	}
	select {
	case c.Actions <- a:
	default:
	}
}

func (c *Controls) volume(vol int, muted bool) {
	if c == nil {
		return
	}
	select {
	case c.Volume <- VolumeChangeMsg{Volume: vol, Muted: muted}:
	default:
	}
}

func (c *Controls) quit() {
	if c == nil {
		return
	}
	select {
	case <-c.Quit:
	default:
		close(c.Quit)
	}
}

// NewModel creates a new TUI model
func NewModel(controls *Controls, volume int) Model {
	return Model{
		volume:   volume,
		state:    "idle",
		controls: controls,
	}
}

// Run creates the TUI program; the caller starts it
func Run(controls *Controls, volume int) *tea.Program {
	return tea.NewProgram(NewModel(controls, volume), tea.WithAltScreen())
}
