package client

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

type sessionTokenKey struct{}

// WithSessionToken attaches the signed-in user's access token to ctx.
// AuthTransport prefers it over its token source.
func WithSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, sessionTokenKey{}, token)
}

// SessionToken returns the token set by WithSessionToken
func SessionToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(sessionTokenKey{}).(string)
	return token, ok && token != ""
}

// AuthTransport adds a bearer token to outgoing requests. The session token
// in the request context wins; otherwise Source is asked; with neither the
// request goes out unauthenticated.
type AuthTransport struct {
	Source oauth2.TokenSource
	Base   http.RoundTripper
}

func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, ok := SessionToken(req.Context())
	if !ok && t.Source != nil {
		tok, err := t.Source.Token()
		if err != nil {
			return nil, err
		}
		token = tok.AccessToken
	}

	if token != "" && req.Header.Get("Authorization") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return t.base().RoundTrip(req)
}

func (t *AuthTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}
