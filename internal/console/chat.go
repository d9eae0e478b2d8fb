// Package console holds the terminal front ends: a local chat session that
// drives the conversation service, and the board check screens.
package console

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/ajirawise/internal/engine"
)

var (
	userLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	botLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)
)

// Sender delivers outbound messages into the chat window. It implements
// model.Sender.
type Sender struct {
	ch chan string
}

// NewSender returns a sender with room for buffer undelivered messages.
func NewSender(buffer int) *Sender {
	return &Sender{ch: make(chan string, max(buffer, 1))}
}

func (s *Sender) Send(ctx context.Context, _, text string) error {
	select {
	case s.ch <- text:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type botMsg string

type replyDoneMsg struct{ err error }

type chatModel struct {
	ctx       context.Context
	channelID string
	handle    func(ctx context.Context, text string) error
	inbox     <-chan string

	viewport   viewport.Model
	input      textinput.Model
	transcript []string
	busy       bool
	ready      bool
	width      int
	height     int
}

func newChatModel(ctx context.Context, channelID string, handle func(context.Context, string) error, inbox <-chan string) chatModel {
	in := textinput.New()
	in.Placeholder = "Type a message (hi, jobs, balance...)"
	in.Prompt = "› "
	in.CharLimit = 500
	in.Focus()

	return chatModel{
		ctx:        ctx,
		channelID:  channelID,
		handle:     handle,
		inbox:      inbox,
		input:      in,
		transcript: []string{hintStyle.Render("Say hi to open the menu. Esc or ctrl+c quits.")},
	}
}

func waitForMessage(inbox <-chan string) tea.Cmd {
	return func() tea.Msg {
		return botMsg(<-inbox)
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForMessage(m.inbox))
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// Border top/bottom (2) + input (1) + status bar (1) = 4 lines overhead.
		if !m.ready {
			m.viewport = viewport.New(max(m.width-2, 20), max(m.height-4, 5))
			m.ready = true
		} else {
			m.viewport.Width = max(m.width-2, 20)
			m.viewport.Height = max(m.height-4, 5)
		}
		m.input.Width = max(m.width-4, 10)
		m.refresh()
		return m, nil

	case botMsg:
		m.appendLine(botLabelStyle.Render("AjiraWise"), string(msg))
		return m, waitForMessage(m.inbox)

	case replyDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.transcript = append(m.transcript, errorStyle.Render("⚠ "+msg.err.Error()))
			m.refresh()
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.busy {
				return m, nil
			}
			m.input.Reset()
			m.busy = true
			m.appendLine(userLabelStyle.Render("You"), text)
			return m, m.reply(text)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m chatModel) reply(text string) tea.Cmd {
	ctx, handle := m.ctx, m.handle
	return func() tea.Msg {
		return replyDoneMsg{err: handle(ctx, text)}
	}
}

func (m *chatModel) appendLine(label, text string) {
	m.transcript = append(m.transcript, label+"\n"+text)
	m.refresh()
}

func (m *chatModel) refresh() {
	if !m.ready {
		return
	}
	wrap := lipgloss.NewStyle().Width(max(m.viewport.Width-2, 10))
	var b strings.Builder
	for i, entry := range m.transcript {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(wrap.Render(entry))
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m chatModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	status := fmt.Sprintf(" %s    enter send  esc quit", m.channelID)
	if m.busy {
		status = fmt.Sprintf(" %s    waiting for reply...", m.channelID)
	}
	return activeBorderStyle.Width(m.width-2).Render(m.viewport.View()) + "\n" +
		m.input.View() + "\n" +
		statusBarStyle.Width(m.width).Render(status)
}

// RunChat opens a full-screen chat session as channelID. svc must send
// through sender so replies and job alerts land in the transcript.
func RunChat(ctx context.Context, svc *engine.Service, sender *Sender, channelID string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	handle := func(ctx context.Context, text string) error {
		return svc.Reply(ctx, channelID, text)
	}
	p := tea.NewProgram(newChatModel(ctx, channelID, handle, sender.ch), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
