// Package tui is a terminal front end for the advisor built on Bubble Tea.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/frontend"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/rag"
)

type mode int

const (
	modeSelect mode = iota
	modeType
	modeWaiting
)

// answerMsg carries a finished query back into Update.
type answerMsg struct {
	label  string
	answer rag.Answer
}

// Model is the Bubble Tea model.
type Model struct {
	ctx      context.Context
	advisor  frontend.Advisor
	cursor   int
	mode     mode
	input    textinput.Model
	spin     spinner.Model
	viewport viewport.Model
	heading  string
	status   string
	answer   *rag.Answer
	ready    bool
}

// New returns a model that queries advisor under ctx.
func New(ctx context.Context, advisor frontend.Advisor) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Describe the issue and press Enter"
	ti.CharLimit = 2000

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		advisor:  advisor,
		input:    ti,
		spin:     sp,
		viewport: viewport.New(80, 12),
		status:   "Pick an issue with ↑/↓ and press Enter. Esc quits.",
	}
}

// Init starts the spinner ticking.
func (m Model) Init() tea.Cmd { return m.spin.Tick }

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, frame := resultBoxStyle.GetFrameSize()
		m.viewport.Width = max(20, msg.Width-4)
		m.viewport.Height = max(3, msg.Height-len(frontend.Topics)-8-frame)
		return m, nil

	case answerMsg:
		m.mode = modeSelect
		m.heading = "Generated Advice for " + msg.label
		m.answer = &msg.answer
		m.status = fmt.Sprintf("%s (%d sources)", msg.answer.Outcome, len(msg.answer.Sources))
		m.viewport.SetContent(msg.answer.Text)
		m.viewport.GotoTop()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.mode {
		case modeWaiting:
			return m, nil
		case modeType:
			return m.updateTyping(msg)
		default:
			return m.updateSelect(msg)
		}
	}
	return m, nil
}

func (m Model) updateSelect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		return m, tea.Quit
	case "up", "k":
		m.cursor = (m.cursor - 1 + len(frontend.Topics)) % len(frontend.Topics)
	case "down", "j":
		m.cursor = (m.cursor + 1) % len(frontend.Topics)
	case "pgdown":
		m.viewport.HalfViewDown()
	case "pgup":
		m.viewport.HalfViewUp()
	case "enter":
		topic := frontend.Topics[m.cursor]
		if topic == frontend.Other {
			m.mode = modeType
			m.status = "Type the issue and press Enter. Esc goes back."
			return m, m.input.Focus()
		}
		return m.submit(topic, "")
	}
	return m, nil
}

func (m Model) updateTyping(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeSelect
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		m.input.Blur()
		return m.submit(frontend.Other, m.input.Value())
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit starts the query in the background, or warns when there is nothing
// to ask.
func (m Model) submit(topic, custom string) (tea.Model, tea.Cmd) {
	query, label := frontend.BuildQuery(topic, custom)
	if query == "" {
		m.mode = modeSelect
		m.status = rag.MsgEmptyQuery
		return m, nil
	}
	m.mode = modeWaiting
	m.status = "Generating advice for " + label + "..."
	ctx, advisor := m.ctx, m.advisor
	return m, tea.Batch(m.spin.Tick, func() tea.Msg {
		return answerMsg{label: label, answer: advisor.Query(ctx, query)}
	})
}

// View renders the selector, the current answer and the status line.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(frontend.Title))
	b.WriteString("\n\n")
	for i, t := range frontend.Topics {
		line := "  " + t
		if i == m.cursor {
			line = selectedStyle.Render("› " + t)
		}
		b.WriteString(line + "\n")
	}
	if m.mode == modeType {
		b.WriteString("\n" + m.input.View() + "\n")
	}
	if m.answer != nil {
		b.WriteString("\n" + headingStyle.Render(m.heading) + "\n")
		b.WriteString(resultBoxStyle.Render(m.viewport.View()) + "\n")
	}
	status := m.status
	if m.mode == modeWaiting {
		status = m.spin.View() + " " + status
	}
	b.WriteString("\n" + statusStyle.Render(status))
	return b.String()
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	headingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
