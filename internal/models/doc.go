// Package models defines the value types that flow through the playlist search pipeline.
//
// The package contains two categories of types:
//
// 1. Catalog identities, produced by the resolver or by track search:
//   - [TrackRef] : the (owner, id) pair that uniquely identifies a track
//   - [TrackInfo] : a TrackRef with artist, title and duration
//
// 2. Search results, produced by playlist search and ranking:
//   - [PlaylistEntry] : a public playlist with its play count, the ranking key
//   - [OwnerInfo] : the user or group owning a playlist, resolved lazily
//   - [SearchResult] : the unit shown to the user
//
// [Credential] describes a catalog access token and the scope it is valid for.
// None of these types are persisted beyond a single request, apart from the in-memory track cache.
package models
