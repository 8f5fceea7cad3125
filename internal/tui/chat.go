// Package tui is an interactive terminal chat over the conversation engine.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragchat/internal/domain"
)

// Engine is the TUI-facing subset of the conversation engine.
type Engine interface {
	StartConversation() string
	Respond(ctx context.Context, userText string) (*domain.ChatResponse, error)
	ActiveModel() domain.ModelConfig
}

type turnView struct {
	speaker domain.Speaker
	text    string
	sources []string
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	engine   Engine
	input    textinput.Model
	viewport viewport.Model
	turns    []turnView
	status   string
	ready    bool
	busy     bool
}

// New creates a chat model and seeds the opening message.
func New(engine Engine) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)

	m := Model{engine: engine, input: ti, viewport: vp}
	opening := engine.StartConversation()
	m.turns = append(m.turns, turnView{speaker: domain.SpeakerAssistant, text: opening})
	m.status = fmt.Sprintf("model: %s | Ctrl+C to quit, Ctrl+R to restart", engine.ActiveModel().Name)
	return m
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

type respondMsg struct {
	resp *domain.ChatResponse
	err  error
}

func (m Model) respond(text string) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.engine.Respond(context.Background(), text)
		return respondMsg{resp: resp, err: err}
	}
}

// Update handles key, window and response events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, qh := inputBoxStyle.GetFrameSize()
		reserved := 2 + qh // status line, spacer, input frame
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = maxInt(20, msg.Width)
		m.viewport.Height = vh
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil

	case respondMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			var sources []string
			for _, p := range msg.resp.Passages {
				sources = append(sources, p.Source)
			}
			m.turns = append(m.turns, turnView{
				speaker: domain.SpeakerAssistant,
				text:    msg.resp.Answer,
				sources: sources,
			})
			m.status = fmt.Sprintf("model: %s | tokens used: %d", m.engine.ActiveModel().Name, msg.resp.Usage.TotalTokens)
		}
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "ctrl+r":
			opening := m.engine.StartConversation()
			m.turns = []turnView{{speaker: domain.SpeakerAssistant, text: opening}}
			m.status = "Conversation restarted."
			m.viewport.SetContent(m.renderTranscript())
			return m, nil
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text != "" && !m.busy {
				m.busy = true
				m.turns = append(m.turns, turnView{speaker: domain.SpeakerUser, text: text})
				m.input.SetValue("")
				m.status = "Thinking..."
				m.viewport.SetContent(m.renderTranscript())
				m.viewport.GotoBottom()
				return m, m.respond(text)
			}
		case "up":
			m.viewport.LineUp(1)
			return m, nil
		case "down":
			m.viewport.LineDown(1)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the transcript, input box and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	transcript := m.viewport.View()
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	var sb strings.Builder
	for _, t := range m.turns {
		if t.speaker == domain.SpeakerUser {
			sb.WriteString(userStyle.Render("You: ") + t.text + "\n\n")
			continue
		}
		sb.WriteString(assistantStyle.Render("Assistant: ") + t.text + "\n")
		if len(t.sources) > 0 {
			sb.WriteString(sourceStyle.Render("sources: "+strings.Join(t.sources, ", ")) + "\n")
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

var (
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	sourceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
