package tasks

import (
	"fmt"

	"github.com/desertthunder/vkpl/internal/models"
)

// ProgressUpdate represents a progress event during a search.
//
// Used to send real-time updates to the chat or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Pipeline phase
	Step    int    // Current step number
	Total   int    // Total steps in the pipeline
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Pipeline phase enumeration
type Phase int

const (
	ResolveInput Phase = iota
	SearchTrack
	FoundTrack
	FetchPlaylists
	FilterPlaylists
	ResolveOwners
	RankResults
)

// totalSteps is the number of phases a search reports.
const totalSteps = int(RankResults) + 1

func (p Phase) String() string {
	switch p {
	case ResolveInput:
		return "resolve_input"
	case SearchTrack:
		return "search_track"
	case FoundTrack:
		return "found_track"
	case FetchPlaylists:
		return "fetch_playlists"
	case FilterPlaylists:
		return "filter_playlists"
	case ResolveOwners:
		return "resolve_owners"
	case RankResults:
		return "rank_results"
	default:
		return ""
	}
}

func update(phase Phase, message string, data any) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    int(phase) + 1,
		Total:   totalSteps,
		Message: message,
		Data:    data,
	}
}

func resolveInputUpdate() ProgressUpdate {
	return update(ResolveInput, "Resolving link...", nil)
}

func searchTrackUpdate(query string) ProgressUpdate {
	return update(SearchTrack, fmt.Sprintf("Searching %q...", query), query)
}

func foundTrackUpdate(track *models.TrackInfo) ProgressUpdate {
	return update(FoundTrack, fmt.Sprintf("Found track: %s", track.DisplayName()), track)
}

func fetchPlaylistsUpdate(ref models.TrackRef) ProgressUpdate {
	return update(FetchPlaylists, fmt.Sprintf("Fetching playlists with %s...", ref), ref)
}

func filterPlaylistsUpdate(kept, fetched, minListens int) ProgressUpdate {
	return update(FilterPlaylists, fmt.Sprintf("%d of %d playlists have at least %d plays", kept, fetched, minListens), kept)
}

func resolveOwnersUpdate(owners int) ProgressUpdate {
	return update(ResolveOwners, fmt.Sprintf("Looking up %d playlist owners...", owners), owners)
}

func rankResultsUpdate(results int) ProgressUpdate {
	return update(RankResults, fmt.Sprintf("Ranked %d playlists", results), results)
}
