package ui

import (
	"context"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/vkpl/internal/session"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg           = Msg{}
	_ session.Messenger = (*Messenger)(nil)
)

const (
	MsgSent MsgKind = iota
	MsgEdited
	MsgHandled
)

type outgoing struct {
	id   int
	text string
}

// sentMsg is the constructor for [MsgSent]
func sentMsg(id int, text string) Msg {
	return Msg{kind: MsgSent, data: outgoing{id, text}}
}

// editedMsg is the constructor for [MsgEdited]
func editedMsg(id int, text string) Msg {
	return Msg{kind: MsgEdited, data: outgoing{id, text}}
}

// handledMsg is the constructor for [MsgHandled]
func handledMsg() Msg {
	return Msg{kind: MsgHandled}
}

// Sender posts messages into a running program. [tea.Program] satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Messenger implements [session.Messenger] by posting [Msg] values to a [Sender].
type Messenger struct {
	sender Sender
	nextID atomic.Int64
}

// NewMessenger creates a Messenger. Call [Messenger.Attach] before the first Send when the
// program is created after the Messenger.
func NewMessenger(sender Sender) *Messenger {
	return &Messenger{sender: sender}
}

// Attach sets the program that receives outgoing messages.
func (m *Messenger) Attach(sender Sender) {
	m.sender = sender
}

func (m *Messenger) Send(ctx context.Context, chatID int64, text string) (session.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return session.MessageRef{}, err
	}
	id := int(m.nextID.Add(1))
	m.sender.Send(sentMsg(id, text))
	return session.MessageRef{ChatID: chatID, MessageID: id}, nil
}

func (m *Messenger) Edit(ctx context.Context, ref session.MessageRef, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.sender.Send(editedMsg(ref.MessageID, text))
	return nil
}
