// Package ui implements a terminal chat transport using bubbletea's Elm architecture.
//
// The [Model] renders a scrolling transcript above a single-line input. Submitted lines are handed to a
// [Handler] (the session controller) on a bubbletea command, and replies come back through [Messenger],
// which turns Send/Edit calls into [Msg] values posted to the running program. Edits replace the
// transcript entry in place, so the status message of a search updates the same way it does in a chat app.
//
// Keyboard: enter sends, pgup/pgdown scroll, esc or ctrl+c quits.
package ui
