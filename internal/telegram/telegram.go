// package telegram connects the session controller to the Telegram Bot API over long polling
package telegram

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/desertthunder/vkpl/internal/session"
	"github.com/desertthunder/vkpl/internal/shared"
)

const defaultPollTimeout = 60

// API is the subset of [tgbotapi.BotAPI] used by [Bot].
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Handler processes one incoming message. [session.Controller] is the production implementation.
type Handler interface {
	Handle(ctx context.Context, msg session.Message)
}

// Bot implements [session.Messenger] on top of the Bot API.
type Bot struct {
	api         API
	pollTimeout int
	logger      *log.Logger
	wg          sync.WaitGroup
}

// New connects to the Bot API with token. It fails when the token is rejected.
func New(token string, pollTimeout int, debug bool, logger *log.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to Telegram: %v", shared.ErrInvalidConfig, err)
	}
	api.Debug = debug

	bot := NewWithAPI(api, pollTimeout, logger)
	bot.logger.Info("authorized on Telegram", "username", api.Self.UserName)
	return bot, nil
}

// NewWithAPI wraps an existing API client.
func NewWithAPI(api API, pollTimeout int, logger *log.Logger) *Bot {
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeout
	}
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &Bot{api: api, pollTimeout: pollTimeout, logger: logger}
}

// Send posts a new text message without link previews.
func (b *Bot) Send(_ context.Context, chatID int64, text string) (session.MessageRef, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true

	sent, err := b.api.Send(msg)
	if err != nil {
		return session.MessageRef{}, fmt.Errorf("failed to send message: %w", err)
	}
	return session.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// Edit replaces the text of a message sent earlier.
//
// Telegram rejects edits that do not change the text; those are ignored.
func (b *Bot) Edit(_ context.Context, ref session.MessageRef, text string) error {
	edit := tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, text)
	edit.DisableWebPagePreview = true

	if _, err := b.api.Send(edit); err != nil {
		if strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

// Run polls for updates and hands every text message to handler on its own goroutine.
//
// It returns when ctx is cancelled or the update channel closes, after in-flight handlers finish.
func (b *Bot) Run(ctx context.Context, handler Handler) error {
	config := tgbotapi.NewUpdate(0)
	config.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(config)

	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			msg, ok := toMessage(update)
			if !ok {
				continue
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				handler.Handle(ctx, msg)
			}()
		}
	}
}

// toMessage extracts a text message from an update. Edits, media and service messages are skipped.
func toMessage(update tgbotapi.Update) (session.Message, bool) {
	m := update.Message
	if m == nil || m.Chat == nil || m.Text == "" {
		return session.Message{}, false
	}

	msg := session.Message{ChatID: m.Chat.ID, Text: m.Text}
	if m.From != nil {
		msg.UserID = m.From.ID
	}
	return msg, true
}

var _ session.Messenger = (*Bot)(nil)
