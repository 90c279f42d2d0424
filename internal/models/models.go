package models

import (
	"fmt"
	"time"
)

// Scope tells whether a [Credential] is shared by every conversation or belongs to one.
type Scope int

const (
	ScopeService Scope = iota // one credential for the whole bot
	ScopePerUser              // one credential per conversation
)

func (s Scope) String() string {
	switch s {
	case ScopeService:
		return "service"
	case ScopePerUser:
		return "per_user"
	default:
		return "unknown"
	}
}

// Credential is an opaque catalog access token with its validity state.
type Credential struct {
	Token  string
	Scope  Scope
	Owner  int64     // conversation id for per-user credentials, 0 for service scope
	Valid  bool      // false until validated, and again after an upstream auth failure
	Expiry time.Time // zero means the token does not expire
}

// Usable reports whether the credential can be sent to the catalog right now.
func (c *Credential) Usable(now time.Time) bool {
	if c == nil || c.Token == "" || !c.Valid {
		return false
	}
	return c.Expiry.IsZero() || now.Before(c.Expiry)
}

// TrackRef uniquely identifies a track in the catalog.
type TrackRef struct {
	OwnerID int64
	TrackID int64
}

// String renders the canonical track shorthand, e.g. "audio-2001_456".
func (r TrackRef) String() string {
	return fmt.Sprintf("audio%d_%d", r.OwnerID, r.TrackID)
}

// Key renders the "<owner>_<id>" pair used by catalog parameters.
func (r TrackRef) Key() string {
	return fmt.Sprintf("%d_%d", r.OwnerID, r.TrackID)
}

// TrackInfo is a resolved track. Duration is in seconds, 0 when unknown.
type TrackInfo struct {
	Ref      TrackRef
	Artist   string
	Title    string
	Duration int
}

// DisplayName renders "Artist - Title", or the shorthand when both are empty.
func (t TrackInfo) DisplayName() string {
	switch {
	case t.Artist != "" && t.Title != "":
		return t.Artist + " - " + t.Title
	case t.Title != "":
		return t.Title
	case t.Artist != "":
		return t.Artist
	default:
		return t.Ref.String()
	}
}

// PlaylistEntry is a public playlist containing the searched track.
type PlaylistEntry struct {
	OwnerID    int64
	PlaylistID int64
	Title      string
	Plays      int
	URL        string
}

// OwnerInfo identifies the user or group that owns a playlist.
type OwnerInfo struct {
	ID      int64
	Name    string
	IsGroup bool
	URL     string
}

// SearchResult is one playlist with its owner, the unit returned to the user.
type SearchResult struct {
	Playlist PlaylistEntry
	Owner    OwnerInfo
}

// PlaylistURL builds the canonical playlist link on the catalog domain.
func PlaylistURL(domain string, ownerID, playlistID int64) string {
	return fmt.Sprintf("https://%s/music/playlist/%d_%d", domain, ownerID, playlistID)
}

// OwnerURL builds a profile link, preferring the short name when known.
func OwnerURL(domain string, id int64, isGroup bool, screenName string) string {
	switch {
	case screenName != "":
		return fmt.Sprintf("https://%s/%s", domain, screenName)
	case isGroup:
		return fmt.Sprintf("https://%s/club%d", domain, abs(id))
	default:
		return fmt.Sprintf("https://%s/id%d", domain, abs(id))
	}
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
