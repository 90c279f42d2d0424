// package formatter renders search outcomes and bot replies as chat text or JSON
package formatter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/desertthunder/vkpl/internal/models"
)

// MaxMessageLength is the longest text a single chat message may carry.
const MaxMessageLength = 4096

// Fixed replies.
const (
	Searching          = "🔍 Searching..."
	TryLater           = "⚠️ The music catalog is not responding right now. Please try again later."
	SearchFailed       = "❌ Search failed. Please try again with a different query."
	CredentialRejected = "❌ The bot's catalog credential was rejected. Please contact the bot owner."
	EmptyQuery         = "Send a track name or a link to a track."
	Cancelled          = "Cancelled. Send /login when you want to connect your account."
	NeedLogin          = "Send /login to connect your account before searching."
	CredentialAccepted = "✅ Account connected. Send a track name or a link to a track."
	UnknownCommand     = "Unknown command. Send /help for usage."
	NothingToCancel    = "Nothing to cancel."
	SharedAccount      = "This bot searches with a shared account, no login needed. Just send a track."
)

// Progress renders an intermediate status line.
func Progress(message string) string {
	return "🔍 " + message
}

// Start renders the greeting. perUser adds the login instructions.
func Start(perUser bool) string {
	var b strings.Builder
	b.WriteString("🎵 Playlist finder\n\n")
	b.WriteString("Send:\n")
	b.WriteString("• a track name\n")
	b.WriteString("• or a link to a track\n\n")
	b.WriteString("Example: \"Lil Nas X - Old Town Road\"")
	if perUser {
		b.WriteString("\n\nSearching needs your own account. Send /login to connect it.")
	}
	return b.String()
}

// Help renders the accepted link formats and the play count threshold.
func Help(minListens int) string {
	var b strings.Builder
	b.WriteString("📝 Link formats:\n")
	b.WriteString("• https://vk.com/audio123456789_123456789\n")
	b.WriteString("• audio-123456789_123456789\n")
	b.WriteString("• audios123456789_123456789\n\n")
	fmt.Fprintf(&b, "🎯 Only playlists with %d+ plays are shown\n\n", minListens)
	b.WriteString("Commands: /start /help /login /cancel")
	return b.String()
}

// LoginPrompt asks the user to authorize and paste the resulting link.
func LoginPrompt(authURL string) string {
	var b strings.Builder
	b.WriteString("🔑 To search playlists the bot needs access to your audio.\n\n")
	fmt.Fprintf(&b, "1. Open %s\n", authURL)
	b.WriteString("2. Allow access\n")
	b.WriteString("3. Copy the address of the page you land on and send it here\n\n")
	b.WriteString("Send /cancel to stop.")
	return b.String()
}

// RetryLogin renders a rejected credential with its reason.
func RetryLogin(reason string) string {
	return fmt.Sprintf("❌ That token did not work: %s.\nSend another one, or /cancel.", reason)
}

// Reauthorize tells a per-user conversation its token stopped working.
func Reauthorize(authURL string) string {
	return "⚠️ Your access expired or was revoked.\n\n" + LoginPrompt(authURL)
}

// NotFound renders the neutral empty result with the play count hint.
func NotFound(minListens int) string {
	return fmt.Sprintf("❌ No playlists found.\nOnly playlists with at least %d plays are shown.", minListens)
}

// TrackNotFound renders a free-text query with no matching track.
func TrackNotFound(query string) string {
	return fmt.Sprintf("❌ No track found for %q.", query)
}

// Results renders the ranked list. total is the size of the whole filtered set; at most limit
// entries are listed and the message never exceeds [MaxMessageLength].
func Results(track *models.TrackInfo, results []models.SearchResult, total, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎵 Found: %d\n", total)
	if track != nil && (track.Artist != "" || track.Title != "") {
		fmt.Fprintf(&b, "Track: %s\n", track.DisplayName())
	}
	b.WriteString("\n")

	listed := 0
	for i, r := range results {
		if i >= limit {
			break
		}
		entry := entry(i+1, r)
		if b.Len()+len(entry)+len(footer(total, total)) > MaxMessageLength {
			break
		}
		b.WriteString(entry)
		listed++
	}

	if listed < total {
		b.WriteString(footer(listed, total))
	}
	return strings.TrimRight(b.String(), "\n")
}

func entry(n int, r models.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d. %s\n", n, r.Playlist.Title)
	fmt.Fprintf(&b, "   🔊 %d plays\n", r.Playlist.Plays)
	if r.Owner.Name != "" {
		fmt.Fprintf(&b, "   👤 %s\n", r.Owner.Name)
	}
	fmt.Fprintf(&b, "   🔗 %s\n\n", r.Playlist.URL)
	return b.String()
}

func footer(listed, total int) string {
	return fmt.Sprintf("Showing %d of %d", listed, total)
}

// ResultJSON is the machine-readable form of a search outcome.
type ResultJSON struct {
	Track     *TrackJSON     `json:"track,omitempty"`
	Total     int            `json:"total"`
	Playlists []PlaylistJSON `json:"playlists"`
}

type TrackJSON struct {
	Ref      string `json:"ref"`
	Artist   string `json:"artist,omitempty"`
	Title    string `json:"title,omitempty"`
	Duration int    `json:"duration,omitempty"`
}

type PlaylistJSON struct {
	Title    string `json:"title"`
	Plays    int    `json:"plays"`
	URL      string `json:"url"`
	Owner    string `json:"owner"`
	OwnerURL string `json:"owner_url"`
	IsGroup  bool   `json:"is_group"`
}

// ToJSON renders up to limit results as indented JSON. limit <= 0 lists everything.
func ToJSON(track *models.TrackInfo, results []models.SearchResult, total, limit int) ([]byte, error) {
	out := ResultJSON{Total: total, Playlists: []PlaylistJSON{}}
	if track != nil {
		out.Track = &TrackJSON{
			Ref:      track.Ref.String(),
			Artist:   track.Artist,
			Title:    track.Title,
			Duration: track.Duration,
		}
	}
	for i, r := range results {
		if limit > 0 && i >= limit {
			break
		}
		out.Playlists = append(out.Playlists, PlaylistJSON{
			Title:    r.Playlist.Title,
			Plays:    r.Playlist.Plays,
			URL:      r.Playlist.URL,
			Owner:    r.Owner.Name,
			OwnerURL: r.Owner.URL,
			IsGroup:  r.Owner.IsGroup,
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal results: %w", err)
	}
	return data, nil
}
