package session

import "context"

// Message is one incoming chat message.
type Message struct {
	ChatID int64
	UserID int64
	Text   string
}

// MessageRef identifies a sent message so it can be edited.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Messenger is the outbound side of a chat transport.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, text string) error
}

// State is the credential state of a per-user conversation.
type State int

const (
	Idle State = iota
	AwaitingCredential
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingCredential:
		return "awaiting_credential"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Bot commands.
const (
	CmdStart  = "/start"
	CmdHelp   = "/help"
	CmdCancel = "/cancel"
	CmdLogin  = "/login"
)

// ParseCommand splits "/cmd@bot args" into "/cmd". ok is false for plain text.
func ParseCommand(text string) (cmd string, ok bool) {
	if len(text) < 2 || text[0] != '/' {
		return "", false
	}
	end := len(text)
	for i, r := range text {
		if r == ' ' || r == '\n' || r == '\t' || r == '@' {
			end = i
			break
		}
	}
	return text[:end], true
}
