package services

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/desertthunder/vkpl/internal/models"
)

// Caller performs a single catalog API method call.
//
// [Client] is the production implementation.
type Caller interface {
	Call(ctx context.Context, method string, params url.Values, token string) (json.RawMessage, error)
}

// Catalog is the read-only view of the music catalog used by the search pipeline.
type Catalog interface {
	// SearchTrack returns the most popular track matching query.
	// Returns [shared.ErrTrackNotFound] when the catalog has no match.
	SearchTrack(ctx context.Context, query, token string) (*models.TrackInfo, error)

	// PlaylistsByTrack returns the public playlists containing ref, in upstream order.
	PlaylistsByTrack(ctx context.Context, ref models.TrackRef, token string) ([]models.PlaylistEntry, error)

	// ResolveOwner returns the display name and profile link of a playlist owner.
	ResolveOwner(ctx context.Context, ownerID int64, token string) (*models.OwnerInfo, error)
}

var _ Catalog = (*CatalogService)(nil)
var _ Caller = (*Client)(nil)
