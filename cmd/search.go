package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/vkpl/internal/credentials"
	"github.com/desertthunder/vkpl/internal/formatter"
	"github.com/desertthunder/vkpl/internal/resolver"
	"github.com/desertthunder/vkpl/internal/shared"
	"github.com/desertthunder/vkpl/internal/tasks"
)

// Search runs the playlist pipeline once and prints the result.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("%w: query or link", shared.ErrMissingArgument)
	}

	token, err := r.token(cmd.String("token"))
	if err != nil {
		return err
	}

	limit := int(cmd.Int("limit"))
	if limit <= 0 {
		limit = r.config.Search.MaxPlaylistsToShow
	}

	engine, _, release, err := r.newEngine(r.newCatalog(r.newClient()))
	if err != nil {
		return err
	}
	defer release()

	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.logger.Info(update.Message, "phase", update.Phase, "step", update.Step, "total", update.Total)
		}
	}()

	outcome, err := engine.Search(ctx, query, token, progress)
	close(progress)
	<-done

	switch {
	case errors.Is(err, shared.ErrTrackNotFound):
		return r.writePlain("%s\n", formatter.TrackNotFound(query))
	case err != nil:
		return fmt.Errorf("search failed: %w", err)
	}

	if cmd.Bool("json") {
		data, err := formatter.ToJSON(outcome.Track, outcome.Results, outcome.Total, limit)
		if err != nil {
			return err
		}
		return r.writeBytes(data)
	}

	if outcome.Total == 0 {
		return r.writePlain("%s\n", formatter.NotFound(r.config.Search.MinListens))
	}
	return r.writePlain("%s\n", formatter.Results(outcome.Track, outcome.Results, outcome.Total, limit))
}

// resolveOutput is the JSON shape printed by [Runner.Resolve].
type resolveOutput struct {
	Kind       string `json:"kind"`
	Query      string `json:"query,omitempty"`
	Ref        string `json:"ref,omitempty"`
	CatalogRef string `json:"catalog_ref,omitempty"`
	GroupOwned bool   `json:"group_owned,omitempty"`
	Pattern    string `json:"pattern,omitempty"`
}

// Resolve prints how text would be interpreted by the search pipeline.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	text := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: text", shared.ErrMissingArgument)
	}

	res := resolver.Resolve(text)
	out := resolveOutput{Kind: "free_text", Query: res.Query}
	if res.Kind == resolver.DirectTrack {
		out = resolveOutput{
			Kind:       "direct_track",
			Ref:        res.Link.Ref.String(),
			CatalogRef: res.Link.CatalogRef().String(),
			GroupOwned: res.Link.GroupOwned,
			Pattern:    res.Link.Pattern,
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(out, false)
	}

	if res.Kind == resolver.FreeText {
		return r.writePlain("search query: %q\n", out.Query)
	}
	r.writePlain("direct track: %s (pattern %s)\n", out.Ref, out.Pattern)
	if out.GroupOwned {
		r.writePlain("group owned, catalog reference %s\n", out.CatalogRef)
	}
	return nil
}

// Validate checks a token against the catalog and reports the verdict.
func (r *Runner) Validate(ctx context.Context, cmd *cli.Command) error {
	raw := cmd.String("token")
	token, err := r.token(raw)
	if err != nil {
		return err
	}
	if raw != "" {
		parsed, err := credentials.ParseToken(raw)
		if err != nil {
			return err
		}
		token = parsed.AccessToken
	}

	validator := credentials.NewValidator(r.newClient(), r.logger)
	valid, reason := validator.Validate(ctx, token)
	if !valid {
		r.writePlain("✗ %s rejected: %s\n", shared.MaskToken(token), reason)
		return fmt.Errorf("%w: %s", shared.ErrInvalidCredentials, reason)
	}
	return r.writePlain("✓ %s accepted\n", shared.MaskToken(token))
}

// token returns override when set, otherwise the configured fixed credential.
func (r *Runner) token(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if token := r.config.Credentials.Token(); token != "" {
		return token, nil
	}
	return "", fmt.Errorf("%w: pass --token or configure a %s/%s credential",
		shared.ErrMissingCredentials, shared.ModeService, shared.ModeUser)
}
