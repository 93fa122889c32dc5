package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/DongHyun925/MediGraph/pkg/medigraph"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))
	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	botStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#50C878"))
	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// stepMsg reports a completed stage of the running turn.
type stepMsg struct{ step medigraph.Step }

// replyMsg ends a turn.
type replyMsg struct {
	reply *medigraph.Reply
	err   error
}

// chatModel is the bubbletea model for the chat screen.
type chatModel struct {
	ctx            context.Context
	svc            chatService
	conversationID string

	input    textinput.Model
	view     viewport.Model
	spinner  spinner.Model
	lines    []string
	events   <-chan tea.Msg
	busy     bool
	progress string
	ready    bool
}

func newChatModel(ctx context.Context, svc chatService, conversationID string) *chatModel {
	in := textinput.New()
	in.Placeholder = "Describe your symptoms…"
	in.Prompt = "› "
	in.CharLimit = 2000
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &chatModel{
		ctx:            ctx,
		svc:            svc,
		conversationID: conversationID,
		input:          in,
		spinner:        sp,
		lines:          []string{hintStyle.Render(banner)},
	}
}

func runTUI(ctx context.Context, svc chatService, conversationID string) error {
	p := tea.NewProgram(newChatModel(ctx, svc, conversationID), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Init is called once when the program starts.
func (m *chatModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles input, window changes and turn progress.
func (m *chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := max(3, msg.Height-6)
		if !m.ready {
			m.view = viewport.New(msg.Width-2, height)
			m.ready = true
		} else {
			m.view.Width = msg.Width - 2
			m.view.Height = height
		}
		m.input.Width = max(10, msg.Width-6)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m, m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.view, cmd = m.view.Update(msg)
			return m, cmd
		}

	case stepMsg:
		m.progress = stageLabel(msg.step.Stage)
		return m, waitForEvent(m.events)

	case replyMsg:
		m.busy = false
		m.progress = ""
		m.events = nil
		if msg.err != nil {
			m.appendLine(errorStyle.Render("Error: " + msg.err.Error()))
		} else {
			m.conversationID = msg.reply.ConversationID
			m.appendLine(botStyle.Render("MediGraph") + "\n" + formatReply(msg.reply))
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit handles the entered line: a command, quit, or a new turn.
func (m *chatModel) submit() tea.Cmd {
	line := strings.TrimSpace(m.input.Value())
	if line == "" || m.busy {
		return nil
	}
	m.input.Reset()

	switch {
	case isQuit(line):
		return tea.Quit
	case line == cmdNew:
		m.conversationID = ""
		m.appendLine(hintStyle.Render("Started a new conversation."))
		return nil
	case line == cmdForget:
		if m.conversationID != "" {
			if err := m.svc.Forget(m.ctx, m.conversationID); err != nil {
				m.appendLine(errorStyle.Render("Could not delete the conversation: " + err.Error()))
				return nil
			}
		}
		m.conversationID = ""
		m.appendLine(hintStyle.Render("Conversation deleted."))
		return nil
	}

	m.appendLine(userStyle.Render("You") + "\n" + line)
	m.busy = true
	m.progress = "Thinking"
	m.events = startTurn(m.ctx, m.svc, m.conversationID, line)
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

// startTurn runs a turn in the background, delivering a stepMsg per
// completed stage and a final replyMsg.
func startTurn(ctx context.Context, svc chatService, conversationID, message string) <-chan tea.Msg {
	ch := make(chan tea.Msg)
	send := func(msg tea.Msg) bool {
		select {
		case ch <- msg:
			return true
		case <-ctx.Done():
			return false
		}
	}
	go func() {
		defer close(ch)
		turn, err := svc.Stream(ctx, conversationID, message)
		if err != nil {
			send(replyMsg{err: err})
			return
		}
		for step, err := range turn.Steps() {
			if err != nil || !send(stepMsg{step: step}) {
				break
			}
		}
		reply, err := turn.Reply()
		send(replyMsg{reply: reply, err: err})
	}()
	return ch
}

func waitForEvent(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (m *chatModel) appendLine(s string) {
	m.lines = append(m.lines, s)
	m.refresh()
}

func (m *chatModel) refresh() {
	if !m.ready {
		return
	}
	m.view.SetContent(lipgloss.NewStyle().Width(max(20, m.view.Width)).Render(strings.Join(m.lines, "\n\n")))
	m.view.GotoBottom()
}

// View renders the transcript, progress line and input box.
func (m *chatModel) View() string {
	if !m.ready {
		return "Loading…"
	}
	status := hintStyle.Render("Enter → send    /new → new conversation    Esc → quit")
	if m.busy {
		status = fmt.Sprintf("%s %s…", m.spinner.View(), m.progress)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("⚕ MEDIGRAPH"),
		m.view.View(),
		status,
		boxStyle.Render(m.input.View()),
	)
}
