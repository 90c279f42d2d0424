package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/vkpl/internal/session"
)

// chrome is the number of rows taken by the title, input and help lines.
const chrome = 5

// Handler processes one submitted line. [session.Controller] is the production implementation.
type Handler interface {
	Handle(ctx context.Context, msg session.Message)
}

type author int

const (
	fromUser author = iota
	fromBot
)

type entry struct {
	from author
	text string
}

// Model represents the chat state.
type Model struct {
	ctx      context.Context
	handler  Handler
	chatID   int64
	entries  []entry
	byID     map[int]int // outgoing message id -> entries index
	pending  int
	input    textinput.Model
	viewport viewport.Model
	ready    bool
	width    int
	height   int
	help     help.Model
	keys     keyMap
}

// NewModel creates a chat model that forwards every submitted line to handler as chatID.
func NewModel(ctx context.Context, handler Handler, chatID int64) *Model {
	input := textinput.New()
	input.Placeholder = "track name, artist - title or a vk.com/audio link"
	input.Prompt = "› "
	input.CharLimit = 1024
	input.Focus()

	return &Model{
		ctx:     ctx,
		handler: handler,
		chatID:  chatID,
		byID:    make(map[int]int),
		input:   input,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Run starts the chat in the alternate screen and blocks until the user quits or ctx is done.
//
// messenger must be the one the handler replies through; it is attached to the new program here.
func Run(ctx context.Context, handler Handler, messenger *Messenger, chatID int64) error {
	m := NewModel(ctx, handler, chatID)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	messenger.Attach(p)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("terminal chat failed: %w", err)
	}
	return nil
}

// Init greets the user the same way a new chat does.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.submit(session.CmdStart))
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, max(msg.Height-chrome, 1))
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = max(msg.Height-chrome, 1)
		}
		m.input.Width = max(msg.Width-4, 10)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		switch msg.kind {
		case MsgSent:
			out := msg.data.(outgoing)
			m.byID[out.id] = len(m.entries)
			m.entries = append(m.entries, entry{from: fromBot, text: out.text})
		case MsgEdited:
			out := msg.data.(outgoing)
			if i, ok := m.byID[out.id]; ok {
				m.entries[i].text = out.text
			}
		case MsgHandled:
			if m.pending > 0 {
				m.pending--
			}
		}
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the transcript, the input line and contextual help.
func (m *Model) View() string {
	title := styles.title.Render("vkpl")
	body := m.transcript()
	if m.ready {
		body = m.viewport.View()
	}

	status := ""
	if m.pending > 0 {
		status = styles.help.Render("working...")
	}

	helpView := m.help.ShortHelpView(m.keys.ShortHelp())
	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s", title, body, status, m.input.View(), helpView)
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.send):
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		m.entries = append(m.entries, entry{from: fromUser, text: text})
		m.refresh()
		return m, m.submit(text)
	case key.Matches(msg, m.keys.pageUp), key.Matches(msg, m.keys.pageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit hands text to the handler off the update loop. Replies arrive as [Msg] values.
func (m *Model) submit(text string) tea.Cmd {
	m.pending++
	ctx, handler := m.ctx, m.handler
	msg := session.Message{ChatID: m.chatID, UserID: m.chatID, Text: text}
	return func() tea.Msg {
		handler.Handle(ctx, msg)
		return handledMsg()
	}
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
}

func (m *Model) transcript() string {
	wrap := lipgloss.NewStyle()
	if m.width > 0 {
		wrap = wrap.Width(m.width)
	}

	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch e.from {
		case fromUser:
			b.WriteString(styles.user.Render("you"))
		default:
			b.WriteString(styles.bot.Render("bot"))
		}
		b.WriteString("\n")
		b.WriteString(wrap.Render(e.text))
	}
	return b.String()
}
