package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUI message types
type PendingMsg struct {
	Binding string
	Depth   int
}
type ResetMsg struct{ Binding string }
type FiredMsg struct {
	Binding string
	Branch  int
	At      time.Time
}
type ProblemMsg struct{ Text string }
type GrabCountMsg struct{ Count int }
type DecisionMsg struct{ Replayed bool }
type tickMsg time.Time

const (
	historySize  = 8
	problemsSize = 4
)

type tuiState int

const (
	tuiStateIdle tuiState = iota
	tuiStatePending
)

type firedEntry struct {
	binding string
	branch  int
	at      time.Time
}

type tuiModel struct {
	state         tuiState
	frame         int
	width, height int
	backend       string
	resetKey      string
	bindings      []string
	pending       string       // binding in progress
	depth         int          // completed steps of the pending binding
	fired         []firedEntry // newest first
	firedTotal    int
	problems      []string // newest first
	grabbed       int      // codes held after the last layout change, -1 if unknown
	hidden        int
	replayed      int
}

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	boldStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	bindingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	firedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
)

func newTUIModel(bindings []string, backend, resetKey string) tuiModel {
	return tuiModel{
		backend:  backend,
		resetKey: resetKey,
		bindings: bindings,
		grabbed:  -1,
	}
}

func NewTUIProgram(bindings []string, backend, resetKey string) *tea.Program {
	return tea.NewProgram(newTUIModel(bindings, backend, resetKey), tea.WithAltScreen())
}

// tuiSink forwards engine progress to a running program.
type tuiSink struct{ p *tea.Program }

func (s tuiSink) ChordPending(binding string, depth int) {
	s.p.Send(PendingMsg{Binding: binding, Depth: depth})
}
func (s tuiSink) ChordReset(binding string) { s.p.Send(ResetMsg{Binding: binding}) }
func (s tuiSink) BindingFired(binding string, branch int) {
	s.p.Send(FiredMsg{Binding: binding, Branch: branch, At: time.Now()})
}
func (s tuiSink) Problem(text string)    { s.p.Send(ProblemMsg{Text: text}) }
func (s tuiSink) GrabCount(n int)        { s.p.Send(GrabCountMsg{Count: n}) }
func (s tuiSink) Decision(replayed bool) { s.p.Send(DecisionMsg{Replayed: replayed}) }

func tuiTick() tea.Cmd {
	return tea.Tick(400*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case PendingMsg:
		m.state = tuiStatePending
		m.pending = msg.Binding
		m.depth = msg.Depth

	case ResetMsg:
		m.state = tuiStateIdle
		m.pending = ""
		m.depth = 0

	case FiredMsg:
		m.state = tuiStateIdle
		m.pending = ""
		m.depth = 0
		m.firedTotal++
		m.fired = prepend(m.fired, firedEntry{msg.Binding, msg.Branch, msg.At}, historySize)

	case ProblemMsg:
		m.problems = prepend(m.problems, msg.Text, problemsSize)

	case GrabCountMsg:
		m.grabbed = msg.Count

	case DecisionMsg:
		if msg.Replayed {
			m.replayed++
		} else {
			m.hidden++
		}
	}
	return m, nil
}

func prepend[T any](list []T, v T, limit int) []T {
	list = append([]T{v}, list...)
	if len(list) > limit {
		list = list[:limit]
	}
	return list
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	const leftWidth = 40
	var left []string

	// Status line
	if m.state == tuiStatePending {
		dot := "●"
		if m.frame%2 == 1 {
			dot = "○"
		}
		left = append(left, activeStyle.Render(fmt.Sprintf("%s PENDING %s (step %d)", dot, m.pending, m.depth)))
	} else {
		left = append(left, dimStyle.Render("○ IDLE"))
	}

	left = append(left, dimStyle.Render("backend: "+m.backend))
	left = append(left, dimStyle.Render(fmt.Sprintf("%d fired, %d hidden, %d replayed", m.firedTotal, m.hidden, m.replayed)))
	if m.grabbed >= 0 {
		left = append(left, dimStyle.Render(fmt.Sprintf("grabs: %d codes", m.grabbed)))
	}
	left = append(left, "")

	left = append(left, titleStyle.Render(fmt.Sprintf("Bindings (%d)", len(m.bindings))))
	for _, name := range m.bindings {
		line := "  " + truncate(name, leftWidth-3)
		if m.state == tuiStatePending && name == m.pending {
			left = append(left, activeStyle.Render(line))
		} else {
			left = append(left, bindingStyle.Render(line))
		}
	}
	left = append(left, "")

	// Help line with version
	left = append(left, boldStyle.Render(m.resetKey)+helpStyle.Render(" abandons a chord"))
	left = append(left, boldStyle.Render("q")+helpStyle.Render(" quits"))
	left = append(left, helpStyle.Render("chordd "+version))

	rightWidth := m.width - leftWidth - 1
	if rightWidth < 20 {
		rightWidth = 20
	}
	wrapWidth := rightWidth - 2
	if wrapWidth < 10 {
		wrapWidth = 10
	}

	var right strings.Builder
	right.WriteString(titleStyle.Render("Recent") + "\n\n")
	if len(m.fired) == 0 {
		right.WriteString(dimStyle.Render("Nothing fired yet") + "\n")
	}
	for _, f := range m.fired {
		right.WriteString(dimStyle.Render(f.at.Format("15:04:05")) + " ")
		right.WriteString(firedStyle.Render(f.binding))
		if f.branch > 0 {
			right.WriteString(dimStyle.Render(fmt.Sprintf(" #%d", f.branch)))
		}
		right.WriteString("\n")
	}

	if len(m.problems) > 0 {
		right.WriteString("\n" + titleStyle.Render("Problems") + "\n\n")
		for _, p := range m.problems {
			for _, line := range wrapText(p, wrapWidth) {
				right.WriteString(warnStyle.Render(line) + "\n")
			}
		}
	}

	leftPanel := lipgloss.NewStyle().
		Width(leftWidth - 1).
		Height(m.height).
		Render(strings.Join(left, "\n"))

	rightPanel := lipgloss.NewStyle().
		Width(rightWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(right.String())

	return lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
