package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/vkpl/internal/credentials"
	"github.com/desertthunder/vkpl/internal/formatter"
	"github.com/desertthunder/vkpl/internal/models"
	"github.com/desertthunder/vkpl/internal/resolver"
	"github.com/desertthunder/vkpl/internal/shared"
	"github.com/desertthunder/vkpl/internal/tasks"
)

// Searcher runs the playlist search pipeline.
type Searcher interface {
	Search(ctx context.Context, text, token string, progress chan<- tasks.ProgressUpdate) (*tasks.Outcome, error)
}

// Validator checks a token before it is accepted.
type Validator interface {
	Validate(ctx context.Context, token string) (bool, string)
}

// Opts configures a [Controller].
type Opts struct {
	MinListens         int
	MaxPlaylistsToShow int
	AuthURL            string // login link shown in per-user scope
}

// Controller handles incoming messages for every conversation.
type Controller struct {
	messenger Messenger
	engine    Searcher
	store     *credentials.Store
	validator Validator
	opts      Opts
	logger    *log.Logger

	mu       sync.Mutex
	sessions map[int64]*conversation
}

type conversation struct {
	mu    sync.Mutex
	state State
	fresh bool
}

// relayed lists the progress phases shown to users before the final result.
var relayed = map[tasks.Phase]bool{
	tasks.ResolveInput: true,
	tasks.SearchTrack:  true,
	tasks.FoundTrack:   true,
}

// NewController creates a Controller. validator is only used in per-user scope.
func NewController(messenger Messenger, engine Searcher, store *credentials.Store, validator Validator, opts Opts, logger *log.Logger) *Controller {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &Controller{
		messenger: messenger,
		engine:    engine,
		store:     store,
		validator: validator,
		opts:      opts,
		logger:    logger,
		sessions:  make(map[int64]*conversation),
	}
}

// Handle processes one message. Failures are reported to the user and logged, never returned.
func (c *Controller) Handle(ctx context.Context, msg Message) {
	logger := shared.WithLogger(c.logger, "chat_id", msg.ChatID, "request_id", shared.GenerateID())
	text := strings.TrimSpace(msg.Text)

	if c.store.Scope() == models.ScopeService {
		c.handleShared(ctx, logger, msg.ChatID, text)
		return
	}
	c.handlePerUser(ctx, logger, msg.ChatID, text)
}

// State returns the credential state of a conversation. Unknown conversations are Idle.
func (c *Controller) State(chatID int64) State {
	c.mu.Lock()
	conv, ok := c.sessions[chatID]
	c.mu.Unlock()
	if !ok {
		return Idle
	}
	conv.mu.Lock()
	defer conv.mu.Unlock()
	return conv.state
}

// Sessions returns the number of per-user conversations seen so far.
func (c *Controller) Sessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

func (c *Controller) handleShared(ctx context.Context, logger *log.Logger, chatID int64, text string) {
	if cmd, ok := ParseCommand(text); ok && !isTrackLink(cmd) {
		switch cmd {
		case CmdStart:
			c.reply(ctx, logger, chatID, formatter.Start(false))
		case CmdHelp:
			c.reply(ctx, logger, chatID, formatter.Help(c.opts.MinListens))
		case CmdLogin, CmdCancel:
			c.reply(ctx, logger, chatID, formatter.SharedAccount)
		default:
			c.reply(ctx, logger, chatID, formatter.UnknownCommand)
		}
		return
	}

	if text == "" {
		c.reply(ctx, logger, chatID, formatter.EmptyQuery)
		return
	}

	if !c.store.Usable(chatID) {
		c.reply(ctx, logger, chatID, formatter.CredentialRejected)
		return
	}

	cred, _ := c.store.Get(chatID)
	if err := c.search(ctx, logger, chatID, text, cred.Token); errors.Is(err, shared.ErrUnauthorized) {
		c.store.Invalidate(chatID)
		logger.Error("service credential rejected by the catalog")
	}
}

func (c *Controller) handlePerUser(ctx context.Context, logger *log.Logger, chatID int64, text string) {
	conv := c.conversation(chatID)
	conv.mu.Lock()
	defer conv.mu.Unlock()

	fresh := conv.fresh
	conv.fresh = false

	if cmd, ok := ParseCommand(text); ok && !isTrackLink(cmd) {
		switch cmd {
		case CmdStart:
			conv.state = AwaitingCredential
			c.reply(ctx, logger, chatID, formatter.Start(true)+"\n\n"+formatter.LoginPrompt(c.opts.AuthURL))
		case CmdLogin:
			conv.state = AwaitingCredential
			c.reply(ctx, logger, chatID, formatter.LoginPrompt(c.opts.AuthURL))
		case CmdHelp:
			c.reply(ctx, logger, chatID, formatter.Help(c.opts.MinListens))
		case CmdCancel:
			if conv.state == AwaitingCredential {
				conv.state = Idle
				c.reply(ctx, logger, chatID, formatter.Cancelled)
				return
			}
			c.reply(ctx, logger, chatID, formatter.NothingToCancel)
		default:
			c.reply(ctx, logger, chatID, formatter.UnknownCommand)
		}
		return
	}

	if fresh {
		conv.state = AwaitingCredential
		c.reply(ctx, logger, chatID, formatter.LoginPrompt(c.opts.AuthURL))
		return
	}

	switch conv.state {
	case Idle:
		c.reply(ctx, logger, chatID, formatter.NeedLogin)

	case AwaitingCredential:
		if c.acceptCredential(ctx, logger, chatID, text) {
			conv.state = Ready
		}

	case Ready:
		if !c.store.Usable(chatID) {
			conv.state = AwaitingCredential
			c.reply(ctx, logger, chatID, formatter.Reauthorize(c.opts.AuthURL))
			return
		}
		if text == "" {
			c.reply(ctx, logger, chatID, formatter.EmptyQuery)
			return
		}

		cred, _ := c.store.Get(chatID)
		if err := c.search(ctx, logger, chatID, text, cred.Token); errors.Is(err, shared.ErrUnauthorized) {
			c.store.Invalidate(chatID)
			conv.state = AwaitingCredential
			logger.Info("user credential rejected, asking for a new one")
		}
	}
}

// acceptCredential parses and validates a pasted token and stores it when valid.
func (c *Controller) acceptCredential(ctx context.Context, logger *log.Logger, chatID int64, text string) bool {
	token, err := credentials.ParseToken(text)
	if err != nil {
		reason := "that is not a token or a link with one"
		switch {
		case errors.Is(err, shared.ErrTokenExpired):
			reason = "the token has expired"
		case errors.Is(err, shared.ErrMissingCredentials):
			reason = credentials.ReasonEmpty
		}
		logger.Debug("credential not parsed", "err", err)
		c.reply(ctx, logger, chatID, formatter.RetryLogin(reason))
		return false
	}

	if c.validator == nil {
		logger.Error("no validator configured for per-user credentials")
		c.reply(ctx, logger, chatID, formatter.SearchFailed)
		return false
	}

	valid, reason := c.validator.Validate(ctx, token.AccessToken)
	if !valid {
		logger.Info("credential rejected", "token", shared.MaskToken(token.AccessToken), "reason", reason)
		c.reply(ctx, logger, chatID, formatter.RetryLogin(reason))
		return false
	}

	c.store.Set(chatID, token.AccessToken, token.Expiry)
	logger.Info("credential accepted", "token", shared.MaskToken(token.AccessToken), "account", credentials.UserID(token))
	c.reply(ctx, logger, chatID, formatter.CredentialAccepted)
	return true
}

// search runs one pipeline invocation behind a single status message and returns the pipeline error.
func (c *Controller) search(ctx context.Context, logger *log.Logger, chatID int64, text, token string) error {
	ref, err := c.messenger.Send(ctx, chatID, formatter.Searching)
	if err != nil {
		logger.Error("failed to send status message", "err", err)
		return nil
	}

	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		last := formatter.Searching
		for u := range progress {
			if !relayed[u.Phase] {
				continue
			}
			line := formatter.Progress(u.Message)
			if line == last {
				continue
			}
			last = line
			if err := c.messenger.Edit(ctx, ref, line); err != nil {
				logger.Warn("failed to edit status message", "err", err)
			}
		}
	}()

	outcome, err := c.engine.Search(ctx, text, token, progress)
	close(progress)
	<-done

	final := c.render(outcome, err)
	if err != nil {
		logger.Warn("search failed", "err", err)
	}
	if editErr := c.messenger.Edit(ctx, ref, final); editErr != nil {
		logger.Error("failed to edit status message", "err", editErr)
	}
	return err
}

// render maps a pipeline result to the text shown to users.
func (c *Controller) render(outcome *tasks.Outcome, err error) string {
	switch {
	case err == nil && outcome.Total == 0:
		return formatter.NotFound(c.opts.MinListens)
	case err == nil:
		return formatter.Results(outcome.Track, outcome.Results, outcome.Total, c.opts.MaxPlaylistsToShow)
	case errors.Is(err, shared.ErrTrackNotFound):
		return formatter.NotFound(c.opts.MinListens)
	case errors.Is(err, shared.ErrEmptyQuery):
		return formatter.EmptyQuery
	case errors.Is(err, shared.ErrUnauthorized):
		if c.store.Scope() == models.ScopePerUser {
			return formatter.Reauthorize(c.opts.AuthURL)
		}
		return formatter.CredentialRejected
	case errors.Is(err, shared.ErrRateLimited),
		errors.Is(err, shared.ErrTransport),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return formatter.TryLater
	default:
		return formatter.SearchFailed
	}
}

func (c *Controller) reply(ctx context.Context, logger *log.Logger, chatID int64, text string) {
	if _, err := c.messenger.Send(ctx, chatID, text); err != nil {
		logger.Error("failed to send reply", "err", err)
	}
}

// conversation returns the entry for chatID, creating it on first contact.
func (c *Controller) conversation(chatID int64) *conversation {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv, ok := c.sessions[chatID]
	if !ok {
		conv = &conversation{state: Idle, fresh: true}
		c.sessions[chatID] = conv
	}
	return conv
}

// isTrackLink reports whether a command token is really a pasted "/audio..." path.
func isTrackLink(cmd string) bool {
	return resolver.Resolve(cmd).Kind == resolver.DirectTrack
}
