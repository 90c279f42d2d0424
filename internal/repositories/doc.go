// Package repositories implements SQLite-backed storage for the bot.
//
// The only table is the track cache, which maps a normalised free-text query to the track it
// resolved to. The database is opened with [shared.NewMemoryDatabase], so entries never outlive
// the process.
//
// Key Implementations:
//   - [TrackCache] : query to track memo with a time-to-live
package repositories
