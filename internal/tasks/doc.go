// Package tasks runs the playlist search pipeline with real-time progress reporting.
//
// # Pipeline
//
// [SearchEngine.Search] turns one chat message into an [Outcome]:
//
//  1. Resolve: direct track links are recognised locally, anything else is a free-text query
//  2. Track search: free text is looked up in the track cache, then in the catalog
//  3. Playlists: one page of playlists containing the track is fetched
//  4. Filter: playlists under the minimum play count are dropped
//  5. Owners: unique owners of the surviving playlists are resolved concurrently
//  6. Rank: results are stably sorted by play count, highest first
//
// Filtering happens before owner resolution, so owners of discarded playlists are never looked up.
// The [Outcome] carries the full ranked list; truncation for display is left to the formatter.
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Owner Lookups
//
// Lookups fan out through an errgroup with a concurrency limit. A lookup that fails for any reason
// other than an authorization or transport failure degrades to a placeholder owner.
package tasks
