package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/vkpl/internal/credentials"
	"github.com/desertthunder/vkpl/internal/formatter"
	"github.com/desertthunder/vkpl/internal/models"
	"github.com/desertthunder/vkpl/internal/shared"
	"github.com/desertthunder/vkpl/internal/tasks"
)

type sent struct {
	ref  MessageRef
	text string
}

// recordingMessenger keeps every sent message and its edit history.
type recordingMessenger struct {
	mu    sync.Mutex
	sent  []sent
	edits map[MessageRef][]string
	err   error
}

func newRecordingMessenger() *recordingMessenger {
	return &recordingMessenger{edits: make(map[MessageRef][]string)}
}

func (r *recordingMessenger) Send(_ context.Context, chatID int64, text string) (MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return MessageRef{}, r.err
	}
	ref := MessageRef{ChatID: chatID, MessageID: len(r.sent) + 1}
	r.sent = append(r.sent, sent{ref: ref, text: text})
	return ref, nil
}

func (r *recordingMessenger) Edit(_ context.Context, ref MessageRef, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits[ref] = append(r.edits[ref], text)
	return nil
}

func (r *recordingMessenger) sentTo(chatID int64) []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sent
	for _, s := range r.sent {
		if s.ref.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

// final returns the last visible text of a message.
func (r *recordingMessenger) final(ref MessageRef) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if edits := r.edits[ref]; len(edits) > 0 {
		return edits[len(edits)-1]
	}
	for _, s := range r.sent {
		if s.ref == ref {
			return s.text
		}
	}
	return ""
}

func (r *recordingMessenger) last(chatID int64) string {
	msgs := r.sentTo(chatID)
	if len(msgs) == 0 {
		return ""
	}
	return r.final(msgs[len(msgs)-1].ref)
}

type fakeSearcher struct {
	mu       sync.Mutex
	outcome  *tasks.Outcome
	err      error
	progress []tasks.ProgressUpdate
	tokens   []string
	texts    []string
}

func (f *fakeSearcher) Search(_ context.Context, text, token string, progress chan<- tasks.ProgressUpdate) (*tasks.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	f.tokens = append(f.tokens, token)
	for _, u := range f.progress {
		progress <- u
	}
	return f.outcome, f.err
}

type fakeValidator struct {
	mu     sync.Mutex
	valid  bool
	reason string
	seen   []string
}

func (f *fakeValidator) Validate(_ context.Context, token string) (bool, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, token)
	return f.valid, f.reason
}

func outcomeWith(n int) *tasks.Outcome {
	results := make([]models.SearchResult, n)
	for i := range results {
		results[i] = models.SearchResult{
			Playlist: models.PlaylistEntry{Title: fmt.Sprintf("Playlist %d", i+1), Plays: 1000 - i},
			Owner:    models.OwnerInfo{Name: "owner"},
		}
	}
	return &tasks.Outcome{
		Track:   &models.TrackInfo{Artist: "Artist", Title: "Song"},
		Results: results,
		Total:   n,
	}
}

const validToken = "vk1.a.abcdefghijklmnopqrstuvwxyz0123456789"

func newServiceController(searcher *fakeSearcher) (*Controller, *recordingMessenger, *credentials.Store) {
	messenger := newRecordingMessenger()
	store := credentials.NewServiceStore("svc-token", true)
	opts := Opts{MinListens: 200, MaxPlaylistsToShow: 20}
	return NewController(messenger, searcher, store, nil, opts, nil), messenger, store
}

func newPerUserController(searcher *fakeSearcher, validator *fakeValidator) (*Controller, *recordingMessenger, *credentials.Store) {
	messenger := newRecordingMessenger()
	store := credentials.NewPerUserStore()
	opts := Opts{MinListens: 200, MaxPlaylistsToShow: 20, AuthURL: "https://oauth.vk.com/authorize?client_id=1"}
	return NewController(messenger, searcher, store, validator, opts, nil), messenger, store
}

func TestControllerServiceScope(t *testing.T) {
	ctx := context.Background()

	t.Run("one status message edited to the result", func(t *testing.T) {
		searcher := &fakeSearcher{
			outcome: outcomeWith(37),
			progress: []tasks.ProgressUpdate{
				{Phase: tasks.ResolveInput, Message: "Resolving link..."},
				{Phase: tasks.SearchTrack, Message: `Searching "song"...`},
				{Phase: tasks.FoundTrack, Message: "Found track: Artist - Song"},
				{Phase: tasks.RankResults, Message: "Ranked 37 playlists"},
			},
		}
		controller, messenger, _ := newServiceController(searcher)

		controller.Handle(ctx, Message{ChatID: 1, UserID: 10, Text: "  song  "})

		msgs := messenger.sentTo(1)
		if len(msgs) != 1 {
			t.Fatalf("expected exactly one sent message, got %d", len(msgs))
		}
		if msgs[0].text != formatter.Searching {
			t.Errorf("expected searching status, got %q", msgs[0].text)
		}

		edits := messenger.edits[msgs[0].ref]
		if len(edits) != 4 {
			t.Fatalf("expected 3 progress edits and the result, got %v", edits)
		}
		if !strings.Contains(edits[1], `Searching "song"`) {
			t.Errorf("expected query progress, got %q", edits[1])
		}
		final := edits[len(edits)-1]
		if !strings.HasPrefix(final, "🎵 Found: 37") || !strings.Contains(final, "Showing 20 of 37") {
			t.Errorf("unexpected result %q", final)
		}

		if searcher.texts[0] != "song" || searcher.tokens[0] != "svc-token" {
			t.Errorf("expected trimmed text and service token, got %v %v", searcher.texts, searcher.tokens)
		}
	})

	t.Run("error mapping", func(t *testing.T) {
		tests := []struct {
			name string
			err  error
			want string
		}{
			{"transport", fmt.Errorf("wrapped: %w", shared.ErrTransport), formatter.TryLater},
			{"rate limited", shared.ErrRateLimited, formatter.TryLater},
			{"deadline", context.DeadlineExceeded, formatter.TryLater},
			{"upstream", shared.ErrUpstream, formatter.SearchFailed},
			{"unknown", errors.New("boom"), formatter.SearchFailed},
			{"unauthorized", shared.ErrUnauthorized, formatter.CredentialRejected},
			{"track not found", shared.ErrTrackNotFound, formatter.NotFound(200)},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				controller, messenger, _ := newServiceController(&fakeSearcher{err: tt.err})
				controller.Handle(ctx, Message{ChatID: 1, Text: "song"})

				if len(messenger.sentTo(1)) != 1 {
					t.Fatal("expected exactly one message")
				}
				if got := messenger.last(1); got != tt.want {
					t.Errorf("expected %q, got %q", tt.want, got)
				}
				if strings.Contains(messenger.last(1), "boom") {
					t.Error("internal details must not be shown")
				}
			})
		}
	})

	t.Run("empty result mentions threshold", func(t *testing.T) {
		controller, messenger, _ := newServiceController(&fakeSearcher{outcome: outcomeWith(0)})
		controller.Handle(ctx, Message{ChatID: 1, Text: "song"})

		if got := messenger.last(1); !strings.Contains(got, "200") {
			t.Errorf("expected min plays hint, got %q", got)
		}
	})

	t.Run("unauthorized invalidates the service credential", func(t *testing.T) {
		controller, _, store := newServiceController(&fakeSearcher{err: shared.ErrUnauthorized})
		controller.Handle(ctx, Message{ChatID: 1, Text: "song"})

		if store.Usable(1) {
			t.Error("expected service credential to be invalidated")
		}
	})

	t.Run("rejected service credential is not sent again", func(t *testing.T) {
		searcher := &fakeSearcher{err: shared.ErrUnauthorized}
		controller, messenger, _ := newServiceController(searcher)
		controller.Handle(ctx, Message{ChatID: 1, Text: "song"})
		controller.Handle(ctx, Message{ChatID: 2, Text: "another song"})

		if len(searcher.texts) != 1 {
			t.Errorf("expected one search, got %v", searcher.texts)
		}
		if got := messenger.last(2); got != formatter.CredentialRejected {
			t.Errorf("expected %q, got %q", formatter.CredentialRejected, got)
		}
		if len(messenger.sentTo(2)) != 1 {
			t.Error("expected a single reply without a status message")
		}
	})

	t.Run("commands", func(t *testing.T) {
		tests := []struct {
			text string
			want string
		}{
			{"/start", "Playlist finder"},
			{"/help@my_bot", "200+"},
			{"/help audio1_2", "200+"},
			{"/unknown audio-2001_456", formatter.UnknownCommand},
			{"/login", formatter.SharedAccount},
			{"/cancel", formatter.SharedAccount},
			{"/unknown", formatter.UnknownCommand},
		}

		for _, tt := range tests {
			t.Run(tt.text, func(t *testing.T) {
				searcher := &fakeSearcher{outcome: outcomeWith(1)}
				controller, messenger, _ := newServiceController(searcher)
				controller.Handle(ctx, Message{ChatID: 1, Text: tt.text})

				if got := messenger.last(1); !strings.Contains(got, tt.want) {
					t.Errorf("expected %q in %q", tt.want, got)
				}
				if len(searcher.texts) != 0 {
					t.Error("commands must not search")
				}
			})
		}
	})

	t.Run("slash track links are searched", func(t *testing.T) {
		searcher := &fakeSearcher{outcome: outcomeWith(1)}
		controller, _, _ := newServiceController(searcher)
		controller.Handle(ctx, Message{ChatID: 1, Text: "/audio-2001_456"})

		if len(searcher.texts) != 1 {
			t.Error("expected a search for a pasted track path")
		}
	})

	t.Run("blank text", func(t *testing.T) {
		searcher := &fakeSearcher{}
		controller, messenger, _ := newServiceController(searcher)
		controller.Handle(ctx, Message{ChatID: 1, Text: " \n "})

		if messenger.last(1) != formatter.EmptyQuery || len(searcher.texts) != 0 {
			t.Error("expected empty query hint without a search")
		}
	})

	t.Run("send failure is swallowed", func(t *testing.T) {
		searcher := &fakeSearcher{outcome: outcomeWith(1)}
		controller, messenger, _ := newServiceController(searcher)
		messenger.err = errors.New("chat down")

		controller.Handle(ctx, Message{ChatID: 1, Text: "song"})
		if len(searcher.texts) != 0 {
			t.Error("expected no search without a status message")
		}
	})
}

func TestControllerPerUserScope(t *testing.T) {
	ctx := context.Background()

	t.Run("login flow", func(t *testing.T) {
		searcher := &fakeSearcher{outcome: outcomeWith(2)}
		validator := &fakeValidator{valid: true}
		controller, messenger, store := newPerUserController(searcher, validator)

		controller.Handle(ctx, Message{ChatID: 5, Text: "some song"})
		if controller.State(5) != AwaitingCredential {
			t.Fatalf("expected AwaitingCredential after first contact, got %v", controller.State(5))
		}
		if !strings.Contains(messenger.last(5), "https://oauth.vk.com/authorize") {
			t.Errorf("expected auth link, got %q", messenger.last(5))
		}
		if len(searcher.texts) != 0 {
			t.Error("expected no search before login")
		}

		controller.Handle(ctx, Message{ChatID: 5, Text: "https://oauth.vk.com/blank.html#access_token=" + validToken + "&expires_in=0&user_id=9"})
		if controller.State(5) != Ready {
			t.Fatalf("expected Ready, got %v", controller.State(5))
		}
		if messenger.last(5) != formatter.CredentialAccepted {
			t.Errorf("expected acceptance, got %q", messenger.last(5))
		}
		if len(validator.seen) != 1 || validator.seen[0] != validToken {
			t.Errorf("expected token to be validated, got %v", validator.seen)
		}

		controller.Handle(ctx, Message{ChatID: 5, Text: "some song"})
		if len(searcher.tokens) != 1 || searcher.tokens[0] != validToken {
			t.Errorf("expected search with user token, got %v", searcher.tokens)
		}
		if controller.State(5) != Ready {
			t.Errorf("expected to stay Ready, got %v", controller.State(5))
		}
		if !store.Usable(5) {
			t.Error("expected stored credential")
		}
	})

	t.Run("rejected token keeps waiting", func(t *testing.T) {
		validator := &fakeValidator{valid: false, reason: credentials.ReasonRejected}
		controller, messenger, _ := newPerUserController(&fakeSearcher{}, validator)

		controller.Handle(ctx, Message{ChatID: 5, Text: "/login"})
		controller.Handle(ctx, Message{ChatID: 5, Text: validToken})

		if controller.State(5) != AwaitingCredential {
			t.Errorf("expected AwaitingCredential, got %v", controller.State(5))
		}
		if !strings.Contains(messenger.last(5), credentials.ReasonRejected) {
			t.Errorf("expected reason in reply, got %q", messenger.last(5))
		}
	})

	t.Run("unparseable token keeps waiting", func(t *testing.T) {
		validator := &fakeValidator{valid: true}
		controller, messenger, _ := newPerUserController(&fakeSearcher{}, validator)

		controller.Handle(ctx, Message{ChatID: 5, Text: "/start"})
		controller.Handle(ctx, Message{ChatID: 5, Text: "not a token at all"})

		if controller.State(5) != AwaitingCredential {
			t.Errorf("expected AwaitingCredential, got %v", controller.State(5))
		}
		if len(validator.seen) != 0 {
			t.Error("expected no validation for garbage input")
		}
		if !strings.Contains(messenger.last(5), "did not work") {
			t.Errorf("expected retry prompt, got %q", messenger.last(5))
		}
	})

	t.Run("cancel returns to idle", func(t *testing.T) {
		controller, messenger, _ := newPerUserController(&fakeSearcher{}, &fakeValidator{})

		controller.Handle(ctx, Message{ChatID: 5, Text: "/login"})
		controller.Handle(ctx, Message{ChatID: 5, Text: "/cancel"})
		if controller.State(5) != Idle {
			t.Fatalf("expected Idle, got %v", controller.State(5))
		}

		controller.Handle(ctx, Message{ChatID: 5, Text: "song"})
		if messenger.last(5) != formatter.NeedLogin {
			t.Errorf("expected login hint, got %q", messenger.last(5))
		}

		controller.Handle(ctx, Message{ChatID: 5, Text: "/cancel"})
		if messenger.last(5) != formatter.NothingToCancel {
			t.Errorf("expected nothing to cancel, got %q", messenger.last(5))
		}
	})

	t.Run("upstream rejection asks for a new credential", func(t *testing.T) {
		searcher := &fakeSearcher{err: shared.ErrUnauthorized}
		controller, messenger, store := newPerUserController(searcher, &fakeValidator{valid: true})

		controller.Handle(ctx, Message{ChatID: 5, Text: "/login"})
		controller.Handle(ctx, Message{ChatID: 5, Text: validToken})
		controller.Handle(ctx, Message{ChatID: 5, Text: "song"})

		if controller.State(5) != AwaitingCredential {
			t.Errorf("expected AwaitingCredential, got %v", controller.State(5))
		}
		if store.Usable(5) {
			t.Error("expected credential to be invalidated")
		}
		if !strings.Contains(messenger.last(5), "expired or was revoked") {
			t.Errorf("expected reauthorize prompt, got %q", messenger.last(5))
		}
	})

	t.Run("other failures stay ready", func(t *testing.T) {
		searcher := &fakeSearcher{err: shared.ErrTransport}
		controller, _, _ := newPerUserController(searcher, &fakeValidator{valid: true})

		controller.Handle(ctx, Message{ChatID: 5, Text: "/login"})
		controller.Handle(ctx, Message{ChatID: 5, Text: validToken})
		controller.Handle(ctx, Message{ChatID: 5, Text: "song"})

		if controller.State(5) != Ready {
			t.Errorf("expected Ready, got %v", controller.State(5))
		}
	})

	t.Run("conversations are isolated", func(t *testing.T) {
		searcher := &fakeSearcher{outcome: outcomeWith(1)}
		controller, _, store := newPerUserController(searcher, &fakeValidator{valid: true})

		controller.Handle(ctx, Message{ChatID: 1, Text: "/login"})
		controller.Handle(ctx, Message{ChatID: 1, Text: validToken})
		controller.Handle(ctx, Message{ChatID: 2, Text: "song"})

		if controller.State(2) != AwaitingCredential {
			t.Errorf("expected second conversation to need its own login, got %v", controller.State(2))
		}
		if _, ok := store.Get(2); ok {
			t.Error("credential leaked across conversations")
		}
		if len(searcher.texts) != 0 {
			t.Error("expected no search for the second conversation")
		}
		if controller.Sessions() != 2 {
			t.Errorf("expected 2 sessions, got %d", controller.Sessions())
		}
	})

	t.Run("concurrent messages from many users", func(t *testing.T) {
		searcher := &fakeSearcher{outcome: outcomeWith(1)}
		controller, _, _ := newPerUserController(searcher, &fakeValidator{valid: true})

		var wg sync.WaitGroup
		for i := int64(1); i <= 20; i++ {
			wg.Add(1)
			go func(chatID int64) {
				defer wg.Done()
				controller.Handle(ctx, Message{ChatID: chatID, Text: "/login"})
				controller.Handle(ctx, Message{ChatID: chatID, Text: validToken})
				controller.Handle(ctx, Message{ChatID: chatID, Text: "song"})
			}(i)
		}
		wg.Wait()

		for i := int64(1); i <= 20; i++ {
			if controller.State(i) != Ready {
				t.Errorf("chat %d: expected Ready, got %v", i, controller.State(i))
			}
		}
	})
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text   string
		want   string
		wantOK bool
	}{
		{"/start", "/start", true},
		{"/help@my_bot", "/help", true},
		{"/login now", "/login", true},
		{"hello", "", false},
		{"/", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseCommand(tt.text)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseCommand(%q) = %q, %v; want %q, %v", tt.text, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestStateString(t *testing.T) {
	for state, want := range map[State]string{Idle: "idle", AwaitingCredential: "awaiting_credential", Ready: "ready", State(9): "unknown"} {
		if state.String() != want {
			t.Errorf("expected %q, got %q", want, state.String())
		}
	}
}
