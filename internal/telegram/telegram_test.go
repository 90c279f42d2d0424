package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/desertthunder/vkpl/internal/session"
)

type fakeAPI struct {
	mu      sync.Mutex
	sent    []tgbotapi.Chattable
	sendErr error
	nextID  int
	updates chan tgbotapi.Update
	config  tgbotapi.UpdateConfig
	stopped bool
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeAPI) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	f.config = config
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

type recordingHandler struct {
	mu   sync.Mutex
	msgs []session.Message
}

func (r *recordingHandler) Handle(_ context.Context, msg session.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func TestBot(t *testing.T) {
	ctx := context.Background()

	t.Run("Send disables link previews", func(t *testing.T) {
		api := &fakeAPI{}
		bot := NewWithAPI(api, 0, nil)

		ref, err := bot.Send(ctx, 42, "hello")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if ref.ChatID != 42 || ref.MessageID != 1 {
			t.Errorf("unexpected ref %+v", ref)
		}

		msg, ok := api.sent[0].(tgbotapi.MessageConfig)
		if !ok {
			t.Fatalf("expected MessageConfig, got %T", api.sent[0])
		}
		if msg.Text != "hello" || !msg.DisableWebPagePreview {
			t.Errorf("unexpected message %+v", msg)
		}
	})

	t.Run("Edit targets the referenced message", func(t *testing.T) {
		api := &fakeAPI{}
		bot := NewWithAPI(api, 0, nil)

		if err := bot.Edit(ctx, session.MessageRef{ChatID: 42, MessageID: 7}, "done"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		edit, ok := api.sent[0].(tgbotapi.EditMessageTextConfig)
		if !ok {
			t.Fatalf("expected EditMessageTextConfig, got %T", api.sent[0])
		}
		if edit.ChatID != 42 || edit.MessageID != 7 || edit.Text != "done" {
			t.Errorf("unexpected edit %+v", edit)
		}
	})

	t.Run("Edit ignores unchanged text", func(t *testing.T) {
		api := &fakeAPI{sendErr: errors.New("Bad Request: message is not modified")}
		bot := NewWithAPI(api, 0, nil)

		if err := bot.Edit(ctx, session.MessageRef{ChatID: 1, MessageID: 1}, "same"); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("Send reports failures", func(t *testing.T) {
		api := &fakeAPI{sendErr: errors.New("Forbidden: bot was blocked by the user")}
		bot := NewWithAPI(api, 0, nil)

		if _, err := bot.Send(ctx, 1, "hi"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("Run dispatches text messages", func(t *testing.T) {
		api := &fakeAPI{updates: make(chan tgbotapi.Update, 4)}
		bot := NewWithAPI(api, 30, nil)
		handler := &recordingHandler{}

		api.updates <- tgbotapi.Update{Message: &tgbotapi.Message{
			Text: "song",
			Chat: &tgbotapi.Chat{ID: 5},
			From: &tgbotapi.User{ID: 9},
		}}
		api.updates <- tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 5}}}
		api.updates <- tgbotapi.Update{}
		close(api.updates)

		if err := bot.Run(ctx, handler); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if api.config.Timeout != 30 {
			t.Errorf("expected poll timeout 30, got %d", api.config.Timeout)
		}
		if len(handler.msgs) != 1 {
			t.Fatalf("expected 1 handled message, got %d", len(handler.msgs))
		}
		if got := handler.msgs[0]; got.ChatID != 5 || got.UserID != 9 || got.Text != "song" {
			t.Errorf("unexpected message %+v", got)
		}
	})

	t.Run("Run stops on cancel", func(t *testing.T) {
		api := &fakeAPI{updates: make(chan tgbotapi.Update)}
		bot := NewWithAPI(api, 0, nil)
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- bot.Run(ctx, &recordingHandler{}) }()
		cancel()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not return after cancel")
		}
		if !api.stopped {
			t.Error("expected polling to be stopped")
		}
	})
}
