// Package tui implements the interactive chat transcript view used by
// `libranswer chat --tui`.
//
// Grounded on the teacher's internal/ui/tui.go (bubbletea model/update/view
// for a rich terminal renderer, spinner driven by a processing state
// machine, lipgloss panel styling) and, for the chat-specific shape of the
// model (a scrolling viewport over prior turns plus a textarea for the next
// one), on threeequarter-rag-terminal's internal/ui/chat_view.go. The
// teacher's model renders indexing stage progress; this one renders a
// scrolling question/answer transcript instead, retargeted from a
// search-results browser to a single-session chat REPL. Unlike
// chat_view.go's token-streaming state machine (orchestrator.Chat answers
// in one call, not a stream), this model only has two states: idle
// (waiting for input) and thinking (a turn is in flight).
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/libranswer/libranswer/internal/orchestrator"
	"github.com/libranswer/libranswer/internal/ui"
)

const (
	titleHeight    = 1
	textareaHeight = 3
	helpHeight     = 1
	frameHeight    = titleHeight + textareaHeight + helpHeight + 4
)

// ChatFunc runs one chat turn against sessionID, mirroring
// orchestrator.Orchestrator.Chat's signature so cmd/libranswer can pass the
// method value directly.
type ChatFunc func(ctx context.Context, sessionID, query string) (*orchestrator.Result, error)

type state int

const (
	stateIdle state = iota
	stateThinking
)

type turn struct {
	question string
	answer   *orchestrator.Result
	err      error
}

// Model is the bubbletea model for the chat transcript view.
type Model struct {
	chatFn    ChatFunc
	sessionID string
	ctx       context.Context

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model
	styles   ui.Styles

	width, height int
	state         state
	turns         []turn
	quitting      bool
}

type responseMsg struct {
	turn turn
}

// New builds a chat transcript model bound to one session. sessionTitle is
// shown in the title bar (the profile name, typically).
func New(ctx context.Context, chatFn ChatFunc, sessionID string) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask a question about your library..."
	ta.Focus()
	ta.CharLimit = 4000
	ta.ShowLineNumbers = false
	ta.SetHeight(textareaHeight)

	vp := viewport.New(80, 20)
	vp.SetContent("")

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ui.ColorLime))

	return Model{
		chatFn:    chatFn,
		sessionID: sessionID,
		ctx:       ctx,
		viewport:  vp,
		textarea:  ta,
		spinner:   sp,
		styles:    ui.DefaultStyles(),
		width:     80,
		height:    24,
	}
}

// Run drives the model to completion on the current terminal.
func Run(ctx context.Context, chatFn ChatFunc, sessionID string) error {
	m := New(ctx, chatFn, sessionID)
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.textarea.SetWidth(msg.Width - 4)
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = max(msg.Height-frameHeight, 3)
		m.renderTranscript()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			if m.state != stateIdle {
				return m, nil
			}
			question := strings.TrimSpace(m.textarea.Value())
			if question == "" {
				return m, nil
			}
			m.textarea.Reset()
			m.state = stateThinking
			return m, tea.Batch(m.runChat(question), m.spinner.Tick)
		}

	case responseMsg:
		m.state = stateIdle
		m.turns = append(m.turns, msg.turn)
		m.renderTranscript()
		m.viewport.GotoBottom()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	if m.state == stateIdle {
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		cmds = append(cmds, cmd)
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.Header.Render(fmt.Sprintf("libranswer chat  (session %s)", m.sessionID)))
	b.WriteString("\n\n")
	b.WriteString(m.styles.Panel.Width(m.viewport.Width).Render(m.viewport.View()))
	b.WriteString("\n")
	b.WriteString(m.textarea.View())
	b.WriteString("\n")

	status := "Enter: send  ·  ctrl+c: quit"
	if m.state == stateThinking {
		status = m.spinner.View() + " thinking..."
	}
	b.WriteString(m.styles.Dim.Render(status))
	return b.String()
}

func (m Model) runChat(question string) tea.Cmd {
	return func() tea.Msg {
		result, err := m.chatFn(m.ctx, m.sessionID, question)
		return responseMsg{turn: turn{question: question, answer: result, err: err}}
	}
}

func (m *Model) renderTranscript() {
	var b strings.Builder
	for _, t := range m.turns {
		b.WriteString(m.styles.Active.Render("You: ") + t.question)
		b.WriteString("\n\n")
		if t.err != nil {
			b.WriteString(m.styles.Error.Render(t.err.Error()))
			b.WriteString("\n\n")
			continue
		}
		b.WriteString(m.styles.Success.Render("Assistant: ") + t.answer.Answer)
		b.WriteString("\n")
		for _, c := range t.answer.Citations {
			authors := strings.Join(c.Authors, ", ")
			loc := ""
			if c.Page > 0 {
				loc = fmt.Sprintf(", p.%d", c.Page)
			}
			b.WriteString(m.styles.Dim.Render(fmt.Sprintf("  [%d] %s. %s (%d)%s", c.ID, authors, c.Title, c.Year, loc)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
}
