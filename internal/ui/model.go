// ABOUTME: Bubbletea model for the conversation TUI
// ABOUTME: Holds the transcript, turn state and playback status
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxTranscript = 50

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	boxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// line is one transcript entry
type line struct {
	speaker string
	text    string
}

// Model represents the TUI state
type Model struct {
	// Endpoint
	endpoint  string
	transport string

	// Turn
	state     string
	pending   int
	turns     int
	streaming string

	// Playback
	segments int
	played   int
	failed   int
	volume   int
	muted    bool

	transcript []line
	lastError  string

	controls *Controls

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case UserMsg:
		if msg.Text != "" {
			m.addLine("you", msg.Text)
		}
	case DeltaMsg:
		m.streaming += msg.Text
	case AssistantMsg:
		m.streaming = ""
		m.turns++
		if msg.Text != "" {
			m.addLine(msg.Name, msg.Text)
		}
	case ErrorMsg:
		m.lastError = msg.Err.Error()
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderTranscript())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.renderHelp())

	return boxStyle.Width(max(m.width-2, 20)).Render(b.String())
}

func (m Model) renderHeader() string {
	return titleStyle.Render("Chatterbox") + " " +
		dimStyle.Render(fmt.Sprintf("%s (%s)", m.endpoint, m.transport))
}

func (m Model) renderTranscript() string {
	if len(m.transcript) == 0 && m.streaming == "" {
		return dimStyle.Render("No conversation yet")
	}

	// Keep the newest lines that fit
	lines := m.transcript
	if room := m.height - 8; room > 0 && len(lines) > room {
		lines = lines[len(lines)-room:]
	}

	var b strings.Builder
	for _, l := range lines {
		style := assistantStyle
		if l.speaker == "you" {
			style = userStyle
		}
		fmt.Fprintf(&b, "%s %s\n", style.Render(l.speaker+":"), l.text)
	}
	if m.streaming != "" {
		fmt.Fprintf(&b, "%s %s\n", assistantStyle.Render("..."), m.streaming)
	}

	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderStatus() string {
	muteIcon := ""
	if m.muted {
		muteIcon = " (muted)"
	}

	s := fmt.Sprintf("State: %-10s Turns: %d  Queued inputs: %d\n", m.state, m.turns, m.pending)
	s += fmt.Sprintf("Audio: %d segments, %d played, %d failed\n", m.segments, m.played, m.failed)
	s += fmt.Sprintf("Volume: [%s] %d%%%s", renderBar(m.volume, 100, 10), m.volume, muteIcon)

	if m.lastError != "" {
		s += "\n" + errorStyle.Render("Error: "+truncate(m.lastError, 60))
	}

	return s
}

func (m Model) renderHelp() string {
	return dimStyle.Render("enter:Send  c:Cancel  ↑/↓:Volume  m:Mute  q:Quit")
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.controls.quit()
		return m, tea.Quit
	case "enter":
		m.lastError = ""
		m.controls.send(ActionSend)
	case "c":
		m.controls.send(ActionCancel)
	case "up":
		if m.volume < 100 {
			m.volume = min(m.volume+5, 100)
			m.controls.volume(m.volume, m.muted)
		}
	case "down":
		if m.volume > 0 {
			m.volume = max(m.volume-5, 0)
			m.controls.volume(m.volume, m.muted)
		}
	case "m":
		m.muted = !m.muted
		m.controls.volume(m.volume, m.muted)
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Endpoint != "" {
		m.endpoint = msg.Endpoint
		m.transport = msg.Transport
	}
	if msg.State != "" {
		m.state = msg.State
	}
	if msg.Pending != nil {
		m.pending = *msg.Pending
	}
	if msg.Segments != 0 {
		m.segments = msg.Segments
		m.played = msg.Played
		m.failed = msg.Failed
	}
}

func (m *Model) addLine(speaker, text string) {
	m.transcript = append(m.transcript, line{speaker: speaker, text: text})
	if len(m.transcript) > maxTranscript {
		m.transcript = m.transcript[len(m.transcript)-maxTranscript:]
	}
}

// StatusMsg updates TUI state; zero fields are left unchanged
type StatusMsg struct {
	Endpoint  string
	Transport string
	State     string
	Pending   *int
	Segments  int
	Played    int
	Failed    int
}

// UserMsg carries the transcribed query
type UserMsg struct {
	Text string
}

// DeltaMsg carries a piece of the streaming reply
type DeltaMsg struct {
	Text string
}

// AssistantMsg carries the finished reply
type AssistantMsg struct {
	Name string
	Text string
}

// ErrorMsg reports a failed turn
type ErrorMsg struct {
	Err error
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
