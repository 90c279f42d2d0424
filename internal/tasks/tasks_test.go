package tasks

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"testing"

	"github.com/desertthunder/vkpl/internal/models"
	"github.com/desertthunder/vkpl/internal/resolver"
	"github.com/desertthunder/vkpl/internal/services"
	"github.com/desertthunder/vkpl/internal/shared"
	th "github.com/desertthunder/vkpl/internal/testing"
)

type mapCache struct {
	tracks map[string]models.TrackInfo
	puts   int
	getErr error
}

func (m *mapCache) Get(_ context.Context, query string) (*models.TrackInfo, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	track, ok := m.tracks[shared.NormalizeQuery(query)]
	if !ok {
		return nil, false, nil
	}
	return &track, true, nil
}

func (m *mapCache) Put(_ context.Context, query string, track models.TrackInfo) error {
	if m.tracks == nil {
		m.tracks = make(map[string]models.TrackInfo)
	}
	m.tracks[shared.NormalizeQuery(query)] = track
	m.puts++
	return nil
}

func playlist(owner, id int64, plays int) models.PlaylistEntry {
	return models.PlaylistEntry{OwnerID: owner, PlaylistID: id, Title: "pl", Plays: plays}
}

func plays(results []models.SearchResult) []int {
	out := make([]int, len(results))
	for i, r := range results {
		out[i] = r.Playlist.Plays
	}
	return out
}

func newCatalog() *th.FakeCatalog {
	return &th.FakeCatalog{
		Track: &models.TrackInfo{Ref: models.TrackRef{OwnerID: -2001, TrackID: 456}, Artist: "Artist", Title: "Song"},
		Playlists: []models.PlaylistEntry{
			playlist(-1, 1, 500),
			playlist(2, 2, 150),
			playlist(3, 3, 1000),
		},
	}
}

func TestSearchEngine(t *testing.T) {
	ctx := context.Background()

	t.Run("filters then ranks by plays", func(t *testing.T) {
		catalog := newCatalog()
		engine := NewSearchEngine(catalog, nil, SearchOpts{MinListens: 200}, nil)

		outcome, err := engine.Search(ctx, "artist song", "tok", nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if got := plays(outcome.Results); !reflect.DeepEqual(got, []int{1000, 500}) {
			t.Errorf("expected [1000 500], got %v", got)
		}
		if outcome.Total != 2 || outcome.Fetched != 3 {
			t.Errorf("expected total 2 of 3 fetched, got %d of %d", outcome.Total, outcome.Fetched)
		}
		if outcome.Input.Kind != resolver.FreeText {
			t.Errorf("expected free text input, got %v", outcome.Input.Kind)
		}

		lookups := catalog.OwnerLookups()
		slices.Sort(lookups)
		if !reflect.DeepEqual(lookups, []int64{-1, 3}) {
			t.Errorf("owners of filtered playlists must not be looked up, got %v", lookups)
		}
	})

	t.Run("results are sorted and above threshold", func(t *testing.T) {
		catalog := newCatalog()
		catalog.Playlists = []models.PlaylistEntry{
			playlist(1, 1, 300), playlist(2, 2, 199), playlist(3, 3, 200),
			playlist(4, 4, 5000), playlist(5, 5, 300), playlist(6, 6, 0),
		}
		engine := NewSearchEngine(catalog, nil, SearchOpts{MinListens: 200}, nil)

		outcome, err := engine.Search(ctx, "song", "tok", nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		for i, r := range outcome.Results {
			if r.Playlist.Plays < 200 {
				t.Errorf("result %d below threshold: %d", i, r.Playlist.Plays)
			}
			if i > 0 && outcome.Results[i-1].Playlist.Plays < r.Playlist.Plays {
				t.Errorf("results not sorted at %d: %v", i, plays(outcome.Results))
			}
		}
		// equal play counts keep upstream order
		if outcome.Results[1].Playlist.PlaylistID != 1 || outcome.Results[2].Playlist.PlaylistID != 5 {
			t.Errorf("expected stable order for ties, got %+v", outcome.Results)
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		catalog := newCatalog()
		engine := NewSearchEngine(catalog, nil, SearchOpts{MinListens: 200}, nil)

		first, err := engine.Search(ctx, "song", "tok", nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		second, err := engine.Search(ctx, "song", "tok", nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !reflect.DeepEqual(first.Results, second.Results) {
			t.Errorf("expected identical results, got %v and %v", first.Results, second.Results)
		}
	})

	t.Run("empty playlist list is not an error", func(t *testing.T) {
		catalog := newCatalog()
		catalog.Playlists = nil
		engine := NewSearchEngine(catalog, nil, SearchOpts{MinListens: 200}, nil)

		outcome, err := engine.Search(ctx, "song", "tok", nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if outcome.Total != 0 || len(outcome.Results) != 0 {
			t.Errorf("expected no results, got %+v", outcome.Results)
		}
		if len(catalog.OwnerLookups()) != 0 {
			t.Error("expected no owner lookups")
		}
	})

	t.Run("direct link skips track search", func(t *testing.T) {
		tests := []struct {
			name     string
			preserve bool
			want     models.TrackRef
		}{
			{"sign preserved", true, models.TrackRef{OwnerID: -2001, TrackID: 456}},
			{"sign dropped", false, models.TrackRef{OwnerID: 2001, TrackID: 456}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				catalog := newCatalog()
				engine := NewSearchEngine(catalog, nil, SearchOpts{MinListens: 200, PreserveOwnerSign: tt.preserve}, nil)

				outcome, err := engine.Search(ctx, "https://vk.com/audio-2001_456", "tok", nil)
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if len(catalog.Searches()) != 0 {
					t.Errorf("expected no track search, got %v", catalog.Searches())
				}
				refs := catalog.PlaylistRefs()
				if len(refs) != 1 || refs[0] != tt.want {
					t.Errorf("expected playlists for %v, got %v", tt.want, refs)
				}
				if outcome.Input.Kind != resolver.DirectTrack {
					t.Errorf("expected direct track input")
				}
			})
		}
	})

	t.Run("track cache", func(t *testing.T) {
		catalog := newCatalog()
		cache := &mapCache{}
		engine := NewSearchEngine(catalog, cache, SearchOpts{MinListens: 200}, nil)

		first, err := engine.Search(ctx, "Artist Song", "tok", nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		second, err := engine.Search(ctx, "artist   song", "tok", nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(catalog.Searches()) != 1 {
			t.Errorf("expected one catalog search, got %v", catalog.Searches())
		}
		if first.Cached || !second.Cached {
			t.Errorf("expected second search to hit the cache, got %v %v", first.Cached, second.Cached)
		}
		if cache.puts != 1 {
			t.Errorf("expected 1 cache write, got %d", cache.puts)
		}
	})

	t.Run("cache read failures fall through to the catalog", func(t *testing.T) {
		catalog := newCatalog()
		cache := &mapCache{getErr: errors.New("disk on fire")}
		engine := NewSearchEngine(catalog, cache, SearchOpts{}, nil)

		if _, err := engine.Search(ctx, "song", "tok", nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(catalog.Searches()) != 1 {
			t.Error("expected catalog search")
		}
	})

	t.Run("owner failures", func(t *testing.T) {
		t.Run("upstream errors degrade to placeholders", func(t *testing.T) {
			catalog := newCatalog()
			catalog.OwnerErrs = map[int64]error{
				-1: &services.CatalogError{Kind: services.KindUpstream, Code: 15},
				3:  shared.ErrOwnerNotFound,
			}
			engine := NewSearchEngine(catalog, nil, SearchOpts{MinListens: 200}, nil)

			outcome, err := engine.Search(ctx, "song", "tok", nil)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			names := map[int64]string{}
			for _, r := range outcome.Results {
				names[r.Owner.ID] = r.Owner.Name
			}
			if names[-1] != "club1" || names[3] != "id3" {
				t.Errorf("expected placeholder owners, got %v", names)
			}
		})

		for _, sentinel := range []error{shared.ErrUnauthorized, shared.ErrTransport} {
			t.Run(sentinel.Error()+" propagates", func(t *testing.T) {
				catalog := newCatalog()
				catalog.OwnerErrs = map[int64]error{3: sentinel}
				engine := NewSearchEngine(catalog, nil, SearchOpts{MinListens: 200}, nil)

				if _, err := engine.Search(ctx, "song", "tok", nil); !errors.Is(err, sentinel) {
					t.Errorf("expected %v, got %v", sentinel, err)
				}
			})
		}
	})

	t.Run("each owner is looked up once", func(t *testing.T) {
		catalog := newCatalog()
		catalog.Playlists = []models.PlaylistEntry{
			playlist(7, 1, 900), playlist(7, 2, 800), playlist(-8, 3, 700), playlist(7, 4, 600),
		}
		engine := NewSearchEngine(catalog, nil, SearchOpts{OwnerConcurrency: 2}, nil)

		outcome, err := engine.Search(ctx, "song", "tok", nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if n := len(catalog.OwnerLookups()); n != 2 {
			t.Errorf("expected 2 owner lookups, got %d", n)
		}
		for _, r := range outcome.Results {
			if r.Owner.ID != r.Playlist.OwnerID {
				t.Errorf("owner %d attached to playlist of %d", r.Owner.ID, r.Playlist.OwnerID)
			}
		}
	})

	t.Run("errors", func(t *testing.T) {
		t.Run("track not found", func(t *testing.T) {
			catalog := newCatalog()
			catalog.TrackErr = shared.ErrTrackNotFound
			engine := NewSearchEngine(catalog, nil, SearchOpts{}, nil)

			if _, err := engine.Search(ctx, "nothing", "tok", nil); !errors.Is(err, shared.ErrTrackNotFound) {
				t.Errorf("expected ErrTrackNotFound, got %v", err)
			}
		})

		t.Run("playlist fetch failure", func(t *testing.T) {
			catalog := newCatalog()
			catalog.PlaylistErr = &services.CatalogError{Kind: services.KindRateLimited, Code: 6}
			engine := NewSearchEngine(catalog, nil, SearchOpts{}, nil)

			if _, err := engine.Search(ctx, "song", "tok", nil); !errors.Is(err, shared.ErrRateLimited) {
				t.Errorf("expected ErrRateLimited, got %v", err)
			}
		})

		t.Run("blank text", func(t *testing.T) {
			engine := NewSearchEngine(newCatalog(), nil, SearchOpts{}, nil)
			if _, err := engine.Search(ctx, "  \n", "tok", nil); !errors.Is(err, shared.ErrEmptyQuery) {
				t.Errorf("expected ErrEmptyQuery, got %v", err)
			}
		})

		t.Run("missing catalog", func(t *testing.T) {
			engine := NewSearchEngine(nil, nil, SearchOpts{}, nil)
			if _, err := engine.Search(ctx, "song", "tok", nil); !errors.Is(err, shared.ErrServiceUnavailable) {
				t.Errorf("expected ErrServiceUnavailable, got %v", err)
			}
		})
	})

	t.Run("passes the token to every call", func(t *testing.T) {
		catalog := newCatalog()
		engine := NewSearchEngine(catalog, nil, SearchOpts{}, nil)

		if _, err := engine.Search(ctx, "song", "user-token", nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		for _, token := range catalog.Tokens() {
			if token != "user-token" {
				t.Errorf("expected user-token, got %q", token)
			}
		}
	})

	t.Run("reports progress in phase order", func(t *testing.T) {
		engine := NewSearchEngine(newCatalog(), nil, SearchOpts{MinListens: 200}, nil)
		progress := make(chan ProgressUpdate, 16)

		if _, err := engine.Search(ctx, "song", "tok", progress); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		close(progress)

		var phases []Phase
		for u := range progress {
			phases = append(phases, u.Phase)
			if u.Total != totalSteps || u.Message == "" {
				t.Errorf("unexpected update %+v", u)
			}
		}
		want := []Phase{ResolveInput, SearchTrack, FoundTrack, FetchPlaylists, FilterPlaylists, ResolveOwners, RankResults}
		if !reflect.DeepEqual(phases, want) {
			t.Errorf("expected %v, got %v", want, phases)
		}
	})

	t.Run("full progress channel never blocks", func(t *testing.T) {
		engine := NewSearchEngine(newCatalog(), nil, SearchOpts{}, nil)
		progress := make(chan ProgressUpdate)

		if _, err := engine.Search(ctx, "song", "tok", progress); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})
}

func TestPlaceholderOwner(t *testing.T) {
	group := PlaceholderOwner("vk.com", -42)
	if group.Name != "club42" || !group.IsGroup || group.URL != "https://vk.com/club42" {
		t.Errorf("unexpected group placeholder %+v", group)
	}

	user := PlaceholderOwner("vk.com", 42)
	if user.Name != "id42" || user.IsGroup || user.URL != "https://vk.com/id42" {
		t.Errorf("unexpected user placeholder %+v", user)
	}
}

func TestPhaseString(t *testing.T) {
	if ResolveOwners.String() != "resolve_owners" {
		t.Errorf("unexpected phase name %q", ResolveOwners.String())
	}
	if Phase(99).String() != "" {
		t.Error("expected empty name for unknown phase")
	}
}
