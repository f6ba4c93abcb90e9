package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docqa/internal/domain"
)

// ChatPort is the TUI-facing subset of the RAG service.
type ChatPort interface {
	Initialize(ctx context.Context) (string, error)
	Ask(ctx context.Context, question string) string
	Ready() bool
}

type initDoneMsg struct {
	status string
	err    error
}

type answerMsg struct {
	text string
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	ctx        context.Context
	service    ChatPort
	input      textinput.Model
	viewport   viewport.Model
	spinner    spinner.Model
	transcript []domain.ChatTurn
	status     string
	initStatus string
	statusErr  bool
	starting   bool
	pending    bool
	ready      bool
}

// New creates a chat model. The index is initialized asynchronously from Init.
func New(ctx context.Context, service ChatPort) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question about your documents"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle
	return Model{
		ctx:      ctx,
		service:  service,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   "Initializing...",
		starting: true,
	}
}

// Init starts the cursor blink, the spinner and index initialization.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.initialize())
}

func (m Model) initialize() tea.Cmd {
	return func() tea.Msg {
		status, err := m.service.Initialize(m.ctx)
		return initDoneMsg{status: status, err: err}
	}
}

func (m Model) ask(question string) tea.Cmd {
	return func() tea.Msg {
		return answerMsg{text: m.service.Ask(m.ctx, question)}
	}
}

// Transcript returns the chat history so far.
func (m Model) Transcript() []domain.ChatTurn { return m.transcript }

// Update handles key, window and async result events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header + status, input line, help
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil
	case initDoneMsg:
		m.starting = false
		m.status = msg.status
		m.initStatus = msg.status
		m.statusErr = msg.err != nil
		return m, nil
	case answerMsg:
		m.pending = false
		m.transcript = append(m.transcript, domain.ChatTurn{Role: domain.RoleAssistant, Text: msg.text})
		m.refresh()
		return m, m.input.Focus()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.pending {
			m.refresh()
		}
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		// one question at a time
		if m.pending || m.starting {
			return m, nil
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}
			if !m.service.Ready() {
				m.status = "The index is not ready. " + m.initStatus
				m.statusErr = true
				return m, nil
			}
			m.transcript = append(m.transcript, domain.ChatTurn{Role: domain.RoleUser, Text: q})
			m.input.SetValue("")
			m.input.Blur()
			m.pending = true
			m.refresh()
			return m, m.ask(q)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the header, transcript, input and help line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("Document Q&A")
	statusStyle := okStyle
	if m.statusErr {
		statusStyle = errStyle
	}
	status := statusStyle.Render(m.status)
	if m.starting {
		status = m.spinner.View() + " " + status
	}
	body := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	help := helpStyle.Render("enter: ask • pgup/pgdown: scroll • ctrl+c: quit")
	return header + "\n" + status + "\n" + body + "\n" + input + "\n" + help
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	if len(m.transcript) == 0 && !m.pending {
		return helpStyle.Render("Ask a question to get started.")
	}
	width := max(10, m.viewport.Width-2)
	wrap := lipgloss.NewStyle().Width(width)
	var b strings.Builder
	for i, turn := range m.transcript {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch turn.Role {
		case domain.RoleUser:
			b.WriteString(userStyle.Render("You"))
		default:
			b.WriteString(assistantStyle.Render("Assistant"))
		}
		b.WriteString("\n")
		b.WriteString(wrap.Render(turn.Text))
	}
	if m.pending {
		b.WriteString("\n\n")
		b.WriteString(assistantStyle.Render("Assistant"))
		b.WriteString("\n")
		b.WriteString(m.spinner.View() + " Thinking...")
	}
	return b.String()
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	headerStyle        = lipgloss.NewStyle().Bold(true)
	okStyle            = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	spinnerStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)
