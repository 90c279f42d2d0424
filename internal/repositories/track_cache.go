package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/vkpl/internal/models"
	"github.com/desertthunder/vkpl/internal/shared"
)

// TrackCache remembers which track a free-text query resolved to.
//
// Entries older than the TTL are treated as missing. Keys are normalised with [shared.NormalizeQuery].
type TrackCache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewTrackCache creates a TrackCache over db, which must already have migrations applied.
func NewTrackCache(db *sql.DB, ttl time.Duration) *TrackCache {
	return &TrackCache{db: db, ttl: ttl, now: time.Now}
}

// Get returns the cached track for query. The boolean is false on a miss or an expired entry.
func (c *TrackCache) Get(ctx context.Context, query string) (*models.TrackInfo, bool, error) {
	key := shared.NormalizeQuery(query)
	if key == "" {
		return nil, false, nil
	}

	row := c.db.QueryRowContext(ctx, `
		SELECT owner_id, track_id, artist, title, duration, cached_at
		FROM track_cache
		WHERE query = ?
	`, key)

	var (
		track    models.TrackInfo
		cachedAt time.Time
	)
	err := row.Scan(&track.Ref.OwnerID, &track.Ref.TrackID, &track.Artist, &track.Title, &track.Duration, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read track cache: %w", err)
	}

	if c.ttl > 0 && c.now().Sub(cachedAt) >= c.ttl {
		return nil, false, nil
	}
	return &track, true, nil
}

// Put stores track under query, replacing any previous entry.
func (c *TrackCache) Put(ctx context.Context, query string, track models.TrackInfo) error {
	key := shared.NormalizeQuery(query)
	if key == "" {
		return fmt.Errorf("%w: cache key", shared.ErrEmptyQuery)
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO track_cache (query, owner_id, track_id, artist, title, duration, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, key, track.Ref.OwnerID, track.Ref.TrackID, track.Artist, track.Title, track.Duration, c.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write track cache: %w", err)
	}
	return nil
}

// Purge deletes expired entries and returns how many were removed.
func (c *TrackCache) Purge(ctx context.Context) (int64, error) {
	if c.ttl <= 0 {
		return 0, nil
	}

	cutoff := c.now().Add(-c.ttl).UTC()
	result, err := c.db.ExecContext(ctx, `DELETE FROM track_cache WHERE cached_at <= ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge track cache: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}

// Len returns the number of stored entries, expired or not.
func (c *TrackCache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM track_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count track cache: %w", err)
	}
	return n, nil
}
