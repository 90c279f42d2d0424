// Package resolver turns raw user text into a direct track reference or a search query.
//
// It performs no network I/O.
package resolver

import (
	"regexp"
	"strconv"

	"github.com/desertthunder/vkpl/internal/models"
)

// Kind tells which variant a [Result] holds.
type Kind int

const (
	FreeText Kind = iota
	DirectTrack
)

// Link is a track reference recognised in user text.
//
// Ref holds the literal digit sequences; GroupOwned records that a minus sign preceded the owner digits.
type Link struct {
	Ref        models.TrackRef
	GroupOwned bool
	Pattern    string // name of the matching pattern
}

// CatalogRef returns Ref with the owner sign re-applied for group-owned tracks.
func (l Link) CatalogRef() models.TrackRef {
	if l.GroupOwned && l.Ref.OwnerID > 0 {
		return models.TrackRef{OwnerID: -l.Ref.OwnerID, TrackID: l.Ref.TrackID}
	}
	return l.Ref
}

// Result is either a DirectTrack link or FreeText query.
type Result struct {
	Kind  Kind
	Link  Link
	Query string
}

type pattern struct {
	name  string
	re    *regexp.Regexp
	group bool
}

// patterns are tried in order; the first structural match wins.
var patterns = []pattern{
	{name: "audio-", re: regexp.MustCompile(`audio-(\d+)_(\d+)`), group: true},
	{name: "audio", re: regexp.MustCompile(`audio(\d+)_(\d+)`)},
	{name: "audios", re: regexp.MustCompile(`audios(\d+)_(\d+)`)},
	{name: "/audio", re: regexp.MustCompile(`/audio(\d+)_(\d+)`)},
}

// Resolve recognises a direct track reference in text, or returns text unchanged as a free-text query.
func Resolve(text string) Result {
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		owner, errOwner := strconv.ParseInt(m[1], 10, 64)
		track, errTrack := strconv.ParseInt(m[2], 10, 64)
		if errOwner != nil || errTrack != nil {
			// digit runs too long for int64 are not catalog ids
			continue
		}
		return Result{
			Kind: DirectTrack,
			Link: Link{
				Ref:        models.TrackRef{OwnerID: owner, TrackID: track},
				GroupOwned: p.group,
				Pattern:    p.name,
			},
		}
	}
	return Result{Kind: FreeText, Query: text}
}
