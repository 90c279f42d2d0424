// Package services talks to the music catalog API.
//
// # Client
//
// [Client] performs a single API method call. Every request is a GET to {base}/{method}
// carrying the API version and the caller's access token. It returns the raw "response"
// payload or a [*CatalogError].
//
// Error classification:
//   - network failures, timeouts and undecodable bodies: [KindTransport]
//   - code 5, 27, 28: [KindUnauthorized]
//   - code 6: [KindRateLimited], retried after [RateLimitBackoff]
//   - code 9, 29: [KindFloodControl], retried after [FloodControlBackoff]
//   - anything else: [KindUpstream]
//
// Retries stop after the configured number of attempts. Requests are paced by a shared
// [rate.Limiter] so the client is safe for concurrent use.
//
// # Catalog
//
// [CatalogService] implements [Catalog] on top of any [Caller]:
//   - [CatalogService.SearchTrack]: audio.search sorted by popularity, first item wins
//   - [CatalogService.PlaylistsByTrack]: audio.getPlaylistsByAudio
//   - [CatalogService.ResolveOwner]: users.get or groups.getById depending on owner detection
//
// # Error Handling
//
// [*CatalogError] unwraps to the sentinels in the shared package:
//   - [shared.ErrTransport]
//   - [shared.ErrUnauthorized]
//   - [shared.ErrRateLimited]
//   - [shared.ErrUpstream]
package services
