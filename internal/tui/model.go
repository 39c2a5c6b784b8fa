package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"fapassist/internal/domain"
)

// ReplyTimeout bounds one assistant turn.
const ReplyTimeout = 60 * time.Second

// AssistantPort is the TUI-facing subset of the assistant service.
type AssistantPort interface {
	Reply(ctx context.Context, question, history string) (domain.Reply, error)
}

type role int

const (
	roleUser role = iota
	roleAssistant
)

type turn struct {
	role role
	text string
}

// replyMsg carries the outcome of one Reply call back into Update.
type replyMsg struct {
	question string
	reply    domain.Reply
	err      error
}

// Model is the Bubble Tea model for the chat window.
type Model struct {
	service  AssistantPort
	input    textinput.Model
	viewport viewport.Model
	turns    []turn
	history  strings.Builder
	status   string
	waiting  bool
	ready    bool
}

// New creates a new chat model. banner is shown under the title.
func New(service AssistantPort, banner string) *Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Décrivez votre problème et appuyez sur Entrée"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return &Model{service: service, input: ti, viewport: vp, status: banner}
}

// History returns the conversation so far in the form sent to the assistant.
func (m *Model) History() string { return m.history.String() }

// Init initializes the model (text input cursor blink).
func (m *Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and reply events.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + ih + 1 // header, status, input box, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil
	case replyMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Erreur : " + msg.err.Error()
			m.refresh()
			return m, nil
		}
		m.turns = append(m.turns, turn{roleAssistant, msg.reply.Reply})
		fmt.Fprintf(&m.history, "Utilisateur: %s\nAssistant: %s\n", msg.question, msg.reply.Reply)
		m.status = fmt.Sprintf("%s (%.1f)", msg.reply.NextAction.Category, msg.reply.NextAction.Confidence)
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.Type {
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.waiting {
				return m, nil
			}
			m.input.Reset()
			m.turns = append(m.turns, turn{roleUser, q})
			m.waiting = true
			m.status = "L'assistant réfléchit..."
			m.refresh()
			return m, m.ask(q, m.History())
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) ask(question, history string) tea.Cmd {
	svc := m.service
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), ReplyTimeout)
		defer cancel()
		r, err := svc.Reply(ctx, question, history)
		return replyMsg{question: question, reply: r, err: err}
	}
}

// View renders the header, transcript, input box and status line.
func (m *Model) View() string {
	if !m.ready {
		return "Chargement..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Assistant FAP")
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m *Model) renderTranscript() string {
	if len(m.turns) == 0 {
		return "Aucun message pour l'instant."
	}
	width := m.viewport.Width - 2
	if width < 10 {
		width = 10
	}
	wrap := lipgloss.NewStyle().Width(width)
	parts := make([]string, 0, len(m.turns))
	for _, t := range m.turns {
		switch t.role {
		case roleUser:
			parts = append(parts, userStyle.Render("Vous")+"\n"+wrap.Render(t.text))
		default:
			parts = append(parts, assistantStyle.Render("Assistant")+"\n"+wrap.Render(t.text))
		}
	}
	return strings.Join(parts, "\n\n")
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	assistantStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
)
