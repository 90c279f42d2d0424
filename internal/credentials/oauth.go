package credentials

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/desertthunder/vkpl/internal/shared"
)

// Catalog OAuth endpoints.
const (
	authEndpoint  = "https://oauth.vk.com/authorize"
	tokenEndpoint = "https://oauth.vk.com/access_token"
	authScope     = "audio,offline"
	minRawToken   = 16
)

// Authorizer builds implicit-flow authorization links for per-user tokens.
type Authorizer struct {
	config  *oauth2.Config
	version string
}

// NewAuthorizer creates an authorizer for the registered application appID.
func NewAuthorizer(appID, redirectURI, version string) *Authorizer {
	return &Authorizer{
		config: &oauth2.Config{
			ClientID:    appID,
			RedirectURL: redirectURI,
			Scopes:      []string{authScope},
			Endpoint: oauth2.Endpoint{
				AuthURL:  authEndpoint,
				TokenURL: tokenEndpoint,
			},
		},
		version: version,
	}
}

// AuthURL returns the link a user opens to grant the bot access to their audio.
//
// The token comes back in the redirect URL fragment, which the user pastes into the chat.
func (a *Authorizer) AuthURL() string {
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("response_type", "token"),
		oauth2.SetAuthURLParam("display", "page"),
	}
	if a.version != "" {
		opts = append(opts, oauth2.SetAuthURLParam("v", a.version))
	}
	return a.config.AuthCodeURL("", opts...)
}

// ParseToken reads a token pasted by a user.
//
// Accepts either a bare token or the full redirect URL carrying access_token, expires_in and
// user_id in its fragment. An expired token yields [shared.ErrTokenExpired].
func ParseToken(text string) (*oauth2.Token, error) {
	return parseTokenAt(text, time.Now())
}

func parseTokenAt(text string, now time.Time) (*oauth2.Token, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, shared.ErrMissingCredentials
	}

	if !strings.Contains(text, "access_token=") && !strings.Contains(text, "error=") {
		if len(text) < minRawToken || strings.ContainsAny(text, " \t\n/?#&=") {
			return nil, fmt.Errorf("%w: not a token or redirect link", shared.ErrInvalidCredentials)
		}
		return &oauth2.Token{AccessToken: text, TokenType: "Bearer"}, nil
	}

	values, err := url.ParseQuery(fragment(text))
	if err != nil {
		return nil, fmt.Errorf("%w: malformed redirect link", shared.ErrInvalidCredentials)
	}

	if e := values.Get("error"); e != "" {
		desc := values.Get("error_description")
		if desc == "" {
			desc = e
		}
		return nil, fmt.Errorf("%w: %s", shared.ErrInvalidCredentials, desc)
	}

	access := values.Get("access_token")
	if access == "" {
		return nil, fmt.Errorf("%w: redirect link has no access_token", shared.ErrInvalidCredentials)
	}

	token := &oauth2.Token{AccessToken: access, TokenType: "Bearer"}
	if v := values.Get("expires_in"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: expires_in=%q", shared.ErrInvalidCredentials, v)
		}
		// zero means the token was issued with the offline scope
		if seconds != 0 {
			token.Expiry = now.Add(time.Duration(seconds) * time.Second)
		}
	}

	extra := map[string]any{}
	if v := values.Get("user_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			extra["user_id"] = id
		}
	}
	token = token.WithExtra(extra)

	if !token.Expiry.IsZero() && !now.Before(token.Expiry) {
		return nil, shared.ErrTokenExpired
	}
	return token, nil
}

// UserID returns the account id attached to a parsed redirect link, or 0.
func UserID(token *oauth2.Token) int64 {
	if token == nil {
		return 0
	}
	if id, ok := token.Extra("user_id").(int64); ok {
		return id
	}
	return 0
}

// fragment returns the parameter part of a redirect link: the fragment when present,
// otherwise the query, otherwise the text itself.
func fragment(text string) string {
	if _, after, ok := strings.Cut(text, "#"); ok {
		return after
	}
	if _, after, ok := strings.Cut(text, "?"); ok {
		return after
	}
	return text
}
