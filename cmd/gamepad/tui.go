package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/giongto35/touchcoop/pkg/player"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	buttonStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("11")).
			Padding(0, 2)
)

// keys maps terminal keys to gamepad buttons.
var keys = map[string]string{
	"up": "UP", "down": "DOWN", "left": "LEFT", "right": "RIGHT",
	"w": "UP", "s": "DOWN", "a": "LEFT", "d": "RIGHT",
	"z": "A", "x": "B", "enter": "START", " ": "SELECT",
}

type (
	joinedMsg struct{ err error }
	hostMsg   []byte
	tickMsg   time.Time
)

type model struct {
	p        *player.Player
	shareURL string
	name     string

	joining   bool
	connected bool
	err       error
	last      string
	presses   int
	host      string
}

func newModel(p *player.Player, shareURL, name string) model {
	return model{p: p, shareURL: shareURL, name: name, joining: true}
}

func (m model) join() tea.Msg {
	return joinedMsg{err: m.p.Join(context.Background(), m.shareURL, m.name)}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.join, tick(), tea.SetWindowTitle("touchcoop gamepad"))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		k := msg.String()
		if k == "q" || k == "ctrl+c" || k == "esc" {
			return m, tea.Quit
		}
		button, ok := keys[k]
		if !ok {
			return m, nil
		}
		m.last = button
		if err := m.p.SendMove(button); err != nil {
			m.err = err
		} else {
			m.err = nil
			m.presses++
		}
	case joinedMsg:
		m.joining = false
		m.err = msg.err
		m.connected = msg.err == nil
	case hostMsg:
		m.host = string(msg)
	case tickMsg:
		if !m.joining {
			m.connected = m.p.IsConnected()
		}
		return m, tick()
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("touchcoop gamepad") + "\n\n")

	switch {
	case m.joining:
		b.WriteString(dimStyle.Render("joining...") + "\n")
	case m.connected:
		b.WriteString(okStyle.Render("connected as "+m.p.Identity()) + "\n")
	default:
		b.WriteString(errorStyle.Render("disconnected") + "\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n")

	if m.last != "" {
		b.WriteString(buttonStyle.Render(m.last) + "\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("%d presses", m.presses)) + "\n")
	}
	if m.host != "" {
		b.WriteString(dimStyle.Render("host: "+m.host) + "\n")
	}

	b.WriteString("\n" + help())
	return b.String()
}

func help() string {
	pairs := [][2]string{{"arrows/wasd", "move"}, {"z", "A"}, {"x", "B"}, {"enter", "start"}, {"space", "select"}, {"q", "quit"}}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, keyStyle.Render(p[0])+" "+dimStyle.Render(p[1]))
	}
	return strings.Join(parts, dimStyle.Render(" • "))
}
