package tasks

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/vkpl/internal/models"
	"github.com/desertthunder/vkpl/internal/resolver"
	"github.com/desertthunder/vkpl/internal/services"
	"github.com/desertthunder/vkpl/internal/shared"
)

const (
	defaultOwnerConcurrency = 8
	defaultDomain           = "vk.com"
)

// Outcome is the result of one pipeline run.
type Outcome struct {
	Input   resolver.Result       // How the message was interpreted
	Track   *models.TrackInfo     // Track whose playlists were searched
	Cached  bool                  // Track came from the track cache
	Fetched int                   // Playlists returned by the catalog before filtering
	Results []models.SearchResult // Every playlist that passed the filter, ranked
	Total   int                   // len(Results)
}

// TrackCacher memoises free-text track resolution.
type TrackCacher interface {
	Get(ctx context.Context, query string) (*models.TrackInfo, bool, error)
	Put(ctx context.Context, query string, track models.TrackInfo) error
}

// SearchOpts tunes a [SearchEngine].
type SearchOpts struct {
	MinListens        int    // Playlists with fewer plays are discarded
	OwnerConcurrency  int    // Parallel owner lookups (default: 8)
	PreserveOwnerSign bool   // Re-apply the group sign dropped from direct links
	Domain            string // Catalog host for placeholder owner links
}

// SearchEngine implements the playlist search pipeline.
type SearchEngine struct {
	catalog services.Catalog
	cache   TrackCacher
	opts    SearchOpts
	logger  *log.Logger
}

// NewSearchEngine creates a SearchEngine. cache and logger may be nil.
func NewSearchEngine(catalog services.Catalog, cache TrackCacher, opts SearchOpts, logger *log.Logger) *SearchEngine {
	if opts.OwnerConcurrency <= 0 {
		opts.OwnerConcurrency = defaultOwnerConcurrency
	}
	if opts.Domain == "" {
		opts.Domain = defaultDomain
	}
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &SearchEngine{catalog: catalog, cache: cache, opts: opts, logger: logger}
}

// MinListens returns the configured play count threshold.
func (e *SearchEngine) MinListens() int {
	return e.opts.MinListens
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *SearchEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Search runs the full pipeline for text using token.
//
// An empty playlist list is not an error. Catalog failures are returned wrapped, so callers can
// branch on the shared sentinels.
func (e *SearchEngine) Search(ctx context.Context, text, token string, progress chan<- ProgressUpdate) (*Outcome, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, shared.ErrEmptyQuery
	}

	e.sendProgress(progress, resolveInputUpdate())
	outcome := &Outcome{Input: resolver.Resolve(text)}

	track, cached, err := e.track(ctx, outcome.Input, token, progress)
	if err != nil {
		return nil, err
	}
	outcome.Track = track
	outcome.Cached = cached
	e.sendProgress(progress, foundTrackUpdate(track))

	e.sendProgress(progress, fetchPlaylistsUpdate(track.Ref))
	entries, err := e.catalog.PlaylistsByTrack(ctx, track.Ref, token)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlists for %s: %w", track.Ref, err)
	}
	outcome.Fetched = len(entries)

	kept := FilterByPlays(entries, e.opts.MinListens)
	e.sendProgress(progress, filterPlaylistsUpdate(len(kept), len(entries), e.opts.MinListens))

	results, err := e.enrich(ctx, kept, token, progress)
	if err != nil {
		return nil, err
	}

	RankByPlays(results)
	e.sendProgress(progress, rankResultsUpdate(len(results)))

	outcome.Results = results
	outcome.Total = len(results)

	e.logger.Info("search finished",
		"track", track.Ref,
		"cached", cached,
		"fetched", outcome.Fetched,
		"kept", outcome.Total,
	)
	return outcome, nil
}

// track resolves the input to a track, consulting the cache for free text.
func (e *SearchEngine) track(ctx context.Context, in resolver.Result, token string, progress chan<- ProgressUpdate) (*models.TrackInfo, bool, error) {
	if in.Kind == resolver.DirectTrack {
		ref := in.Link.Ref
		if e.opts.PreserveOwnerSign {
			ref = in.Link.CatalogRef()
		}
		return &models.TrackInfo{Ref: ref}, false, nil
	}

	e.sendProgress(progress, searchTrackUpdate(in.Query))

	if e.cache != nil {
		track, ok, err := e.cache.Get(ctx, in.Query)
		if err != nil {
			e.logger.Warn("track cache read failed", "err", err)
		} else if ok {
			return track, true, nil
		}
	}

	track, err := e.catalog.SearchTrack(ctx, in.Query, token)
	if err != nil {
		return nil, false, fmt.Errorf("failed to search track %q: %w", in.Query, err)
	}

	if e.cache != nil {
		if err := e.cache.Put(ctx, in.Query, *track); err != nil {
			e.logger.Warn("track cache write failed", "err", err)
		}
	}
	return track, false, nil
}

// enrich resolves the owner of every entry. Each distinct owner is looked up once.
func (e *SearchEngine) enrich(ctx context.Context, entries []models.PlaylistEntry, token string, progress chan<- ProgressUpdate) ([]models.SearchResult, error) {
	results := make([]models.SearchResult, len(entries))
	if len(entries) == 0 {
		return results, nil
	}

	var ids []int64
	seen := make(map[int64]bool, len(entries))
	for _, entry := range entries {
		if !seen[entry.OwnerID] {
			seen[entry.OwnerID] = true
			ids = append(ids, entry.OwnerID)
		}
	}

	e.sendProgress(progress, resolveOwnersUpdate(len(ids)))

	owners := make([]models.OwnerInfo, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(e.opts.OwnerConcurrency, len(ids)))

	for i, id := range ids {
		g.Go(func() error {
			owner, err := e.catalog.ResolveOwner(gctx, id, token)
			if err == nil {
				owners[i] = *owner
				return nil
			}
			if errors.Is(err, shared.ErrUnauthorized) || errors.Is(err, shared.ErrTransport) {
				return fmt.Errorf("failed to resolve owner %d: %w", id, err)
			}
			e.logger.Warn("owner lookup failed, using placeholder", "owner_id", id, "err", err)
			owners[i] = PlaceholderOwner(e.opts.Domain, id)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[int64]models.OwnerInfo, len(ids))
	for i, id := range ids {
		byID[id] = owners[i]
	}
	for i, entry := range entries {
		results[i] = models.SearchResult{Playlist: entry, Owner: byID[entry.OwnerID]}
	}
	return results, nil
}

// FilterByPlays keeps entries with at least minListens plays, preserving order.
func FilterByPlays(entries []models.PlaylistEntry, minListens int) []models.PlaylistEntry {
	kept := make([]models.PlaylistEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Plays >= minListens {
			kept = append(kept, entry)
		}
	}
	return kept
}

// RankByPlays sorts results by play count, highest first. Ties keep their order.
func RankByPlays(results []models.SearchResult) {
	slices.SortStableFunc(results, func(a, b models.SearchResult) int {
		return cmp.Compare(b.Playlist.Plays, a.Playlist.Plays)
	})
}

// PlaceholderOwner names an owner whose lookup failed after its id: "club<N>" for groups, "id<N>" otherwise.
func PlaceholderOwner(domain string, id int64) models.OwnerInfo {
	isGroup := id < 0
	n := id
	if isGroup {
		n = -id
	}
	name := fmt.Sprintf("id%d", n)
	if isGroup {
		name = fmt.Sprintf("club%d", n)
	}
	return models.OwnerInfo{
		ID:      id,
		Name:    name,
		IsGroup: isGroup,
		URL:     models.OwnerURL(domain, id, isGroup, ""),
	}
}
