package server

import (
	"fmt"
	"net/http"
)

// AuthLinker builds the catalog authorization link. [credentials.Authorizer] implements it.
type AuthLinker interface {
	AuthURL() string
}

// LoginHandler serves the browser side of the per-user login flow.
type LoginHandler struct {
	auth AuthLinker
}

var _ Handler = (*LoginHandler)(nil)

// NewLoginHandler creates a handler redirecting to auth's link.
func NewLoginHandler(auth AuthLinker) *LoginHandler {
	return &LoginHandler{auth: auth}
}

func (h *LoginHandler) Routes() []string {
	return []string{"/login", "/callback"}
}

// ServeHTTP redirects /login to the authorization page and renders instructions on /callback.
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/login" {
		http.Redirect(w, r, h.auth.AuthURL(), http.StatusFound)
		return
	}

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, callbackPage("Authorization was declined", "Send /login to the bot to try again."))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, callbackPage("Almost done", "Copy the full address from the address bar and paste it into the chat."))
}

func callbackPage(title, body string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <title>%[1]s</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #0077FF; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>%[1]s</h1>
        <p>%[2]s</p>
    </div>
</body>
</html>
`, title, body)
}
