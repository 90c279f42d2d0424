// Package server provides the operator HTTP surface of the bot.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [Middleware] wraps handlers in reverse order (last added executes first).
// The [BasicRouter] implementation registers method-qualified patterns on an [http.ServeMux].
//
// # Handlers
//
// [HealthHandler] serves GET /health with the credential mode, credential counts and the number of
// known conversations as JSON.
//
// [LoginHandler] serves the per-user login flow: /login redirects to the catalog authorization page
// and /callback renders a page telling the user to paste the address bar into the chat, because the
// implicit flow returns the token in the URL fragment, which never reaches the server.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
