package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/vkpl/internal/credentials"
	"github.com/desertthunder/vkpl/internal/models"
	"github.com/desertthunder/vkpl/internal/repositories"
	"github.com/desertthunder/vkpl/internal/server"
	"github.com/desertthunder/vkpl/internal/session"
	"github.com/desertthunder/vkpl/internal/shared"
	"github.com/desertthunder/vkpl/internal/telegram"
)

// Run starts the Telegram bot and blocks until the process is interrupted.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(true); err != nil {
		return err
	}
	if addr := cmd.String("addr"); addr != "" {
		r.config.Server.Addr = addr
	}

	tg, err := telegram.New(r.config.Bot.Token, r.config.Bot.PollTimeout, r.config.Bot.Debug,
		shared.WithLogger(r.logger, "component", "telegram"))
	if err != nil {
		return err
	}

	b, err := r.newBot(ctx, tg)
	if err != nil {
		return err
	}
	defer b.release()

	r.logger.Info("bot started",
		"mode", r.config.Credentials.Mode,
		"min_listens", r.config.Search.MinListens,
		"max_playlists", r.config.Search.MaxPlaylistsToShow)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return tg.Run(ctx, b.controller)
	})
	if addr := r.config.Server.Addr; addr != "" {
		g.Go(func() error {
			return server.Serve(ctx, addr, r.newRouter(b.store, b.controller), r.logger)
		})
	}
	if b.cache != nil {
		g.Go(func() error {
			r.purgeLoop(ctx, b.cache, r.config.Cache.TTL.Duration)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("bot stopped: %w", err)
	}
	r.logger.Info("bot stopped")
	return nil
}

// newRouter builds the operator HTTP surface.
func (r *Runner) newRouter(store *credentials.Store, sessions *session.Controller) *server.BasicRouter {
	router := server.NewBasicRouter()
	router.Use(server.Logging(shared.WithLogger(r.logger, "component", "http")))
	router.Handler(server.NewHealthHandler(store, sessions))
	if store.Scope() == models.ScopePerUser {
		router.Handler(server.NewLoginHandler(r.newAuthorizer()))
	}
	return router
}

// purgeLoop drops expired cache rows every interval until ctx is done.
func (r *Runner) purgeLoop(ctx context.Context, cache *repositories.TrackCache, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := cache.Purge(ctx)
			if err != nil {
				r.logger.Warn("track cache purge failed", "err", err)
				continue
			}
			if n > 0 {
				r.logger.Debug("track cache purged", "rows", n)
			}
		}
	}
}
