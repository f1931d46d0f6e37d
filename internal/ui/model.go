// Package ui renders the conversation list and the open chat in the
// terminal. It owns no chat state of its own; everything displayed comes
// from the list and box controllers, and live gateway events are fed in
// through a channel pumped into the bubbletea loop.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"alumnichat/internal/chat"
	"alumnichat/internal/domain"
)

// NewMessageMsg wraps a new_message gateway event for the UI loop.
type NewMessageMsg struct{ Message domain.Message }

// EditedMsg wraps a message_edited gateway event.
type EditedMsg struct{ Edit domain.MessageEdit }

// ReceiptMsg wraps a read-receipt gateway event.
type ReceiptMsg struct{ Receipt domain.ReadReceipt }

type openedMsg struct{ box *chat.BoxController }

type refreshMsg struct{}

type errMsg struct{ err error }

// BoxFactory builds a box controller for a selected conversation.
type BoxFactory func(conv domain.Conversation) *chat.BoxController

// Model is the bubbletea model for the chat client.
type Model struct {
	list   *chat.ListController
	newBox BoxFactory
	events <-chan tea.Msg

	input  textinput.Model
	box    *chat.BoxController
	cursor int
	width  int
	height int
	status string
}

// New builds the UI model. events carries gateway events wrapped as
// NewMessageMsg / EditedMsg / ReceiptMsg.
func New(list *chat.ListController, newBox BoxFactory, events <-chan tea.Msg) Model {
	input := textinput.New()
	input.Placeholder = "Type a message"
	input.CharLimit = 5000
	return Model{
		list:   list,
		newBox: newBox,
		events: events,
		input:  input,
	}
}

func waitEvent(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg { return <-ch }
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitEvent(m.events), textinput.Blink)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.box != nil {
				m.box.Close()
			}
			return m, tea.Quit
		case "esc":
			if m.box != nil {
				m.box.Close()
				m.box = nil
				m.input.Reset()
				m.input.Blur()
			}
			return m, nil
		case "up":
			if m.box == nil && m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down":
			if m.box == nil && m.cursor < len(m.list.Conversations())-1 {
				m.cursor++
			}
			return m, nil
		case "enter":
			if m.box == nil {
				return m, m.openSelected()
			}
			cmd := m.sendDraft()
			return m, cmd
		}
		if m.box != nil {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		return m, nil

	case openedMsg:
		m.box = msg.box
		m.input.Focus()
		m.status = ""
		return m, nil

	case refreshMsg:
		return m, nil

	case errMsg:
		m.status = msg.err.Error()
		// A failed send keeps the draft in the controller; put it back in
		// the input so the user can retry without retyping.
		if m.box != nil && m.input.Value() == "" {
			if draft := m.box.Draft(); draft != "" {
				m.input.SetValue(draft)
				m.input.CursorEnd()
			}
		}
		return m, nil

	case NewMessageMsg:
		if m.box != nil {
			m.box.HandleNew(context.Background(), msg.Message)
		}
		return m, waitEvent(m.events)

	case EditedMsg:
		if m.box != nil {
			m.box.HandleEdited(context.Background(), msg.Edit)
		}
		return m, waitEvent(m.events)

	case ReceiptMsg:
		if m.box != nil {
			m.box.HandleReadReceipt(msg.Receipt)
		}
		return m, waitEvent(m.events)
	}

	if m.box != nil {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) openSelected() tea.Cmd {
	convs := m.list.Conversations()
	if m.cursor >= len(convs) {
		return nil
	}
	target := convs[m.cursor]
	list := m.list
	newBox := m.newBox
	return func() tea.Msg {
		conv, ok := list.Select(context.Background(), target.ID)
		if !ok {
			return errMsg{fmt.Errorf("conversation %d not found", target.ID)}
		}
		box := newBox(conv)
		if err := box.Open(context.Background()); err != nil {
			return errMsg{err}
		}
		return openedMsg{box: box}
	}
}

func (m *Model) sendDraft() tea.Cmd {
	box := m.box
	text := m.input.Value()
	m.input.Reset()
	return func() tea.Msg {
		box.SetDraft(text)
		if err := box.Send(context.Background()); err != nil {
			return errMsg{err}
		}
		return refreshMsg{}
	}
}

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	unreadStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	mineStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("247"))
)

func (m Model) View() string {
	if m.box == nil {
		return m.viewList()
	}
	return m.viewChat()
}

func (m Model) viewList() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Conversations"))
	b.WriteString("\n\n")

	convs := m.list.Conversations()
	if len(convs) == 0 {
		b.WriteString(dimStyle.Render("no conversations"))
		b.WriteString("\n")
	}
	for i, conv := range convs {
		line := conv.Other.Name
		if conv.LastMessage.Content != "" {
			line += dimStyle.Render(" — " + conv.LastMessage.Content)
		}
		if !conv.LastMessageAt.IsZero() {
			line += dimStyle.Render(" • " + conv.LastMessageAt.Local().Format("15:04"))
		}
		if conv.UnreadCount > 0 {
			line += " " + unreadStyle.Render(fmt.Sprintf("(%d)", conv.UnreadCount))
		}
		if i == m.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("enter: open  •  ctrl+c: quit"))
	if m.status != "" {
		b.WriteString("\n" + statusStyle.Render(m.status))
	}
	return b.String()
}

func (m Model) viewChat() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(m.box.Peer().Name))
	b.WriteString("\n\n")

	for _, msg := range m.box.Messages() {
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("enter: send  •  esc: back  •  ctrl+c: quit"))
	if m.status != "" {
		b.WriteString("\n" + statusStyle.Render(m.status))
	}
	return b.String()
}

func (m Model) renderMessage(msg domain.Message) string {
	var b strings.Builder

	if msg.ReplyTo != nil {
		b.WriteString(dimStyle.Render("  ┌ " + truncate(msg.ReplyTo.Content, 60)))
		b.WriteString("\n")
	}

	name := m.box.Peer().Name
	mine := msg.SenderID != m.box.Peer().ID
	if mine {
		name = "You"
	}

	body := msg.Content
	switch {
	case msg.Deleted:
		body = dimStyle.Render(domain.DeletedPlaceholder)
	case msg.Kind != domain.KindText:
		body = domain.PreviewLabel(msg.Kind, msg.Content, msg.AttachmentName)
		if msg.Content != "" && msg.Content != " " {
			body += " " + msg.Content
		}
	}

	line := fmt.Sprintf("%s: %s", name, body)
	if mine {
		line = mineStyle.Render(line)
	}
	b.WriteString(line)

	meta := " " + dimStyle.Render(formatTime(msg.CreatedAt))
	if mine && !msg.Deleted {
		switch msg.Status {
		case domain.StatusSeen:
			meta += " " + statusStyle.Render("seen")
		case domain.StatusDelivered:
			meta += " " + statusStyle.Render("✓✓")
		default:
			meta += " " + statusStyle.Render("✓")
		}
	}
	if msg.Edited && !msg.Deleted {
		meta += dimStyle.Render(" (edited)")
	}
	b.WriteString(meta)
	return b.String()
}

func formatTime(t time.Time) string {
	local := t.Local()
	if local.Format("2006-01-02") == time.Now().Format("2006-01-02") {
		return local.Format("15:04")
	}
	return local.Format("Jan 2 15:04")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
