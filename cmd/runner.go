package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/vkpl/internal/credentials"
	"github.com/desertthunder/vkpl/internal/models"
	"github.com/desertthunder/vkpl/internal/repositories"
	"github.com/desertthunder/vkpl/internal/services"
	"github.com/desertthunder/vkpl/internal/session"
	"github.com/desertthunder/vkpl/internal/shared"
	"github.com/desertthunder/vkpl/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// Before loads the layered configuration and applies the log settings before any command runs.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	r.configPath = cmd.String("config")
	config, err := shared.Load(r.configPath, cmd.StringSlice("env-file")...)
	if err != nil {
		return ctx, err
	}
	r.config = config

	if config.Log.File != "" {
		fileLogger, err := shared.NewFileLogger(config.Log.File)
		if err != nil {
			return ctx, err
		}
		r.SetLogger(fileLogger)
	}
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(config.Log.Level))
	return ctx, nil
}

// SetLogger replaces the logger used by every command.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		runCommand, searchCommand, resolveCommand, validateCommand, chatCommand, loginCommand, configCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// newClient builds the catalog client from the catalog settings.
func (r *Runner) newClient() *services.Client {
	c := r.config.Catalog
	return services.NewClient(services.ClientOpts{
		BaseURL:     c.BaseURL,
		Version:     c.Version,
		Timeout:     c.Timeout.Duration,
		MaxAttempts: c.MaxAttempts,
		RateLimit:   c.RateLimit,
		HTTPClient:  r.httpClient,
		Logger:      shared.WithLogger(r.logger, "component", "catalog"),
	})
}

func (r *Runner) newCatalog(caller services.Caller) *services.CatalogService {
	return services.NewCatalogService(caller, services.CatalogOpts{
		Domain:           r.config.Catalog.Domain,
		TrackCandidates:  r.config.Search.TrackCandidates,
		PlaylistPageSize: r.config.Search.PlaylistPageSize,
		OwnerDetection:   r.config.Catalog.OwnerDetection,
	})
}

// newEngine builds the search pipeline. The returned cache is nil when caching is disabled;
// release frees the in-memory database and is always safe to call.
func (r *Runner) newEngine(catalog services.Catalog) (*tasks.SearchEngine, *repositories.TrackCache, func(), error) {
	release := func() {}
	var cache *repositories.TrackCache
	var cacher tasks.TrackCacher

	if r.config.Cache.Enabled {
		db, err := shared.NewMemoryDatabase()
		if err != nil {
			return nil, nil, release, fmt.Errorf("failed to create track cache: %w", err)
		}
		release = func() { db.Close() }
		cache = repositories.NewTrackCache(db, r.config.Cache.TTL.Duration)
		cacher = cache
	}

	engine := tasks.NewSearchEngine(catalog, cacher, tasks.SearchOpts{
		MinListens:        r.config.Search.MinListens,
		OwnerConcurrency:  r.config.Search.OwnerLookupConcurrency,
		PreserveOwnerSign: r.config.Catalog.PreserveOwnerSign,
		Domain:            r.config.Catalog.Domain,
	}, shared.WithLogger(r.logger, "component", "search"))
	return engine, cache, release, nil
}

// newStore builds the credential store for the configured mode.
//
// A fixed token is validated once; a rejected one stops the process.
func (r *Runner) newStore(ctx context.Context, validator *credentials.Validator) (*credentials.Store, error) {
	if r.config.Credentials.Mode == shared.ModePerUser {
		return credentials.NewPerUserStore(), nil
	}

	token := r.config.Credentials.Token()
	valid, reason := validator.Validate(ctx, token)
	if !valid {
		return nil, fmt.Errorf("%w: %s credential: %s", shared.ErrInvalidCredentials, r.config.Credentials.Mode, reason)
	}
	r.logger.Info("credential validated", "mode", r.config.Credentials.Mode, "token", shared.MaskToken(token))
	return credentials.NewServiceStore(token, true), nil
}

func (r *Runner) newAuthorizer() *credentials.Authorizer {
	c := r.config.Credentials
	return credentials.NewAuthorizer(c.AppID, c.RedirectURI, r.config.Catalog.Version)
}

// bot is everything a chat transport needs from the core.
type bot struct {
	controller *session.Controller
	store      *credentials.Store
	cache      *repositories.TrackCache
	release    func()
}

// newBot wires the session controller around messenger.
func (r *Runner) newBot(ctx context.Context, messenger session.Messenger) (*bot, error) {
	client := r.newClient()
	engine, cache, release, err := r.newEngine(r.newCatalog(client))
	if err != nil {
		return nil, err
	}

	validator := credentials.NewValidator(client, shared.WithLogger(r.logger, "component", "credentials"))
	store, err := r.newStore(ctx, validator)
	if err != nil {
		release()
		return nil, err
	}

	opts := session.Opts{
		MinListens:         r.config.Search.MinListens,
		MaxPlaylistsToShow: r.config.Search.MaxPlaylistsToShow,
	}
	if store.Scope() == models.ScopePerUser {
		opts.AuthURL = r.newAuthorizer().AuthURL()
	}

	controller := session.NewController(messenger, engine, store, validator, opts, shared.WithLogger(r.logger, "component", "session"))
	return &bot{controller: controller, store: store, cache: cache, release: release}, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return r.writeBytes(output)
}

// writeBytes writes already encoded output followed by a newline.
func (r *Runner) writeBytes(output []byte) error {
	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
