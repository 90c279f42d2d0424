// Package session turns incoming chat messages into replies.
//
// A [Controller] owns the conversation rules and talks to users only through a [Messenger], so the
// same logic drives Telegram and the terminal chat.
//
// # Status Message
//
// Every search sends exactly one status message and then edits it: first "Searching...", then
// progress notices, then the result or a user-facing error. Internal error details are logged,
// never shown.
//
// # Per-user Credentials
//
// When the credential store is per-user, each conversation moves between three states:
//
//	Idle --/start, /login, first text--> AwaitingCredential
//	AwaitingCredential --valid token--> Ready
//	AwaitingCredential --/cancel--> Idle
//	Ready --token rejected upstream--> AwaitingCredential
//
// Messages from one conversation are handled one at a time. In service scope the controller is
// stateless.
package session
