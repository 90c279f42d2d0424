package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/desertthunder/vkpl/internal/models"
	"github.com/desertthunder/vkpl/internal/shared"
)

// Catalog API method names.
const (
	MethodAudioSearch       = "audio.search"
	MethodPlaylistsByAudio  = "audio.getPlaylistsByAudio"
	MethodUsersGet          = "users.get"
	MethodGroupsGetByID     = "groups.getById"
	minTrackCandidates      = 5
	maxTrackCandidates      = 10
	maxPlaylistPageSize     = 100
	defaultDomain           = "vk.com"
	defaultOwnerDetection   = shared.DetectBySign
	defaultPlaylistPageSize = maxPlaylistPageSize
)

// CatalogOpts configures a [CatalogService].
type CatalogOpts struct {
	Domain           string // used to build playlist and profile links
	TrackCandidates  int    // clamped to 5..10
	PlaylistPageSize int    // clamped to 1..100
	OwnerDetection   string // [shared.DetectBySign] or [shared.DetectByProbe]
}

// CatalogService implements [Catalog] on top of a [Caller].
type CatalogService struct {
	caller           Caller
	domain           string
	trackCandidates  int
	playlistPageSize int
	ownerDetection   string
}

// NewCatalogService creates a catalog service backed by caller.
func NewCatalogService(caller Caller, opts CatalogOpts) *CatalogService {
	s := &CatalogService{
		caller:           caller,
		domain:           opts.Domain,
		trackCandidates:  min(max(opts.TrackCandidates, minTrackCandidates), maxTrackCandidates),
		playlistPageSize: opts.PlaylistPageSize,
		ownerDetection:   opts.OwnerDetection,
	}
	if s.domain == "" {
		s.domain = defaultDomain
	}
	if s.playlistPageSize <= 0 || s.playlistPageSize > maxPlaylistPageSize {
		s.playlistPageSize = defaultPlaylistPageSize
	}
	if s.ownerDetection == "" {
		s.ownerDetection = defaultOwnerDetection
	}
	return s
}

// Domain returns the catalog host used in links.
func (s *CatalogService) Domain() string {
	return s.domain
}

type page[T any] struct {
	Count int `json:"count"`
	Items []T `json:"items"`
}

type audioItem struct {
	ID       int64  `json:"id"`
	OwnerID  int64  `json:"owner_id"`
	Artist   string `json:"artist"`
	Title    string `json:"title"`
	Duration int    `json:"duration"`
}

type playlistItem struct {
	ID      int64  `json:"id"`
	OwnerID int64  `json:"owner_id"`
	Title   string `json:"title"`
	Plays   int    `json:"plays"`
}

type userItem struct {
	ID         int64  `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	ScreenName string `json:"screen_name"`
}

type groupItem struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	ScreenName string `json:"screen_name"`
}

// SearchTrack runs one popularity-sorted search and returns the first candidate.
//
// No local re-ranking is applied.
func (s *CatalogService) SearchTrack(ctx context.Context, query, token string) (*models.TrackInfo, error) {
	if query == "" {
		return nil, shared.ErrEmptyQuery
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(s.trackCandidates))
	params.Set("auto_complete", "1")
	params.Set("sort", "2")

	var result page[audioItem]
	if err := s.call(ctx, MethodAudioSearch, params, token, &result); err != nil {
		return nil, err
	}

	if len(result.Items) == 0 {
		return nil, fmt.Errorf("%w: %q", shared.ErrTrackNotFound, query)
	}

	item := result.Items[0]
	return &models.TrackInfo{
		Ref:      models.TrackRef{OwnerID: item.OwnerID, TrackID: item.ID},
		Artist:   item.Artist,
		Title:    item.Title,
		Duration: item.Duration,
	}, nil
}

// PlaylistsByTrack fetches one page of playlists containing ref.
func (s *CatalogService) PlaylistsByTrack(ctx context.Context, ref models.TrackRef, token string) ([]models.PlaylistEntry, error) {
	params := url.Values{}
	params.Set("owner_id", strconv.FormatInt(ref.OwnerID, 10))
	params.Set("audio_id", strconv.FormatInt(ref.TrackID, 10))
	params.Set("count", strconv.Itoa(s.playlistPageSize))

	var result page[playlistItem]
	if err := s.call(ctx, MethodPlaylistsByAudio, params, token, &result); err != nil {
		return nil, err
	}

	entries := make([]models.PlaylistEntry, 0, len(result.Items))
	for _, item := range result.Items {
		entries = append(entries, models.PlaylistEntry{
			OwnerID:    item.OwnerID,
			PlaylistID: item.ID,
			Title:      item.Title,
			Plays:      item.Plays,
			URL:        models.PlaylistURL(s.domain, item.OwnerID, item.ID),
		})
	}
	return entries, nil
}

// ResolveOwner looks up a playlist owner using the configured detection strategy.
//
// With sign detection a negative id is a group and anything else a user. With probe detection a
// user lookup is tried first and a group lookup is used when it finds nothing.
func (s *CatalogService) ResolveOwner(ctx context.Context, ownerID int64, token string) (*models.OwnerInfo, error) {
	if s.ownerDetection == shared.DetectBySign {
		if ownerID < 0 {
			return s.LookupGroup(ctx, ownerID, token)
		}
		return s.LookupUser(ctx, ownerID, token)
	}

	if ownerID > 0 {
		owner, err := s.LookupUser(ctx, ownerID, token)
		if err == nil {
			return owner, nil
		}
		if !errors.Is(err, shared.ErrOwnerNotFound) && !errors.Is(err, shared.ErrUpstream) {
			return nil, err
		}
	}
	return s.LookupGroup(ctx, ownerID, token)
}

// LookupUser fetches a user profile by id.
func (s *CatalogService) LookupUser(ctx context.Context, userID int64, token string) (*models.OwnerInfo, error) {
	params := url.Values{}
	params.Set("user_ids", strconv.FormatInt(userID, 10))
	params.Set("fields", "screen_name")

	var users []userItem
	if err := s.call(ctx, MethodUsersGet, params, token, &users); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("%w: user %d", shared.ErrOwnerNotFound, userID)
	}

	u := users[0]
	name := joinName(u.FirstName, u.LastName)
	if name == "" {
		name = fmt.Sprintf("id%d", u.ID)
	}
	return &models.OwnerInfo{
		ID:   u.ID,
		Name: name,
		URL:  models.OwnerURL(s.domain, u.ID, false, u.ScreenName),
	}, nil
}

// LookupGroup fetches a community by id. The sign of groupID is ignored.
func (s *CatalogService) LookupGroup(ctx context.Context, groupID int64, token string) (*models.OwnerInfo, error) {
	id := groupID
	if id < 0 {
		id = -id
	}

	params := url.Values{}
	params.Set("group_id", strconv.FormatInt(id, 10))

	raw, err := s.caller.Call(ctx, MethodGroupsGetByID, params, token)
	if err != nil {
		return nil, err
	}

	groups, err := decodeGroups(raw)
	if err != nil {
		return nil, &CatalogError{Kind: KindTransport, Method: MethodGroupsGetByID, Err: err}
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: group %d", shared.ErrOwnerNotFound, id)
	}

	g := groups[0]
	name := g.Name
	if name == "" {
		name = fmt.Sprintf("club%d", g.ID)
	}
	return &models.OwnerInfo{
		ID:      -g.ID,
		Name:    name,
		IsGroup: true,
		URL:     models.OwnerURL(s.domain, g.ID, true, g.ScreenName),
	}, nil
}

// decodeGroups accepts both the legacy array payload and the {"groups": [...]} object.
func decodeGroups(raw json.RawMessage) ([]groupItem, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var groups []groupItem
		if err := json.Unmarshal(trimmed, &groups); err != nil {
			return nil, fmt.Errorf("failed to decode groups: %w", err)
		}
		return groups, nil
	}

	var wrapped struct {
		Groups []groupItem `json:"groups"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode groups: %w", err)
	}
	return wrapped.Groups, nil
}

func (s *CatalogService) call(ctx context.Context, method string, params url.Values, token string, result any) error {
	raw, err := s.caller.Call(ctx, method, params, token)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return &CatalogError{Kind: KindTransport, Method: method, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func joinName(first, last string) string {
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	default:
		return last
	}
}
