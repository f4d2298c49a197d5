package auth

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrMissingAPIKey   = errors.New("missing API key")
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrAuthUnavailable = errors.New("authentication backend unavailable")
)

// KeyPrefixLen is the number of leading characters used for the indexed
// prefix lookup (e.g. "wsk_abcd").
const KeyPrefixLen = 8

// ClientContext identifies the authenticated caller.
type ClientContext struct {
	ClientID string
	Name     string
}

// Authenticator validates an API key and returns the client context.
// The token arrives already stripped of the Bearer scheme.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*ClientContext, error)
}

// StaticAuthenticator validates key format only: the token must carry the
// "wsk_" prefix. No database lookup; used when no
// Postgres DSN is configured.
type StaticAuthenticator struct{}

func NewStaticAuthenticator() *StaticAuthenticator {
	return &StaticAuthenticator{}
}

func (a *StaticAuthenticator) Authenticate(_ context.Context, token string) (*ClientContext, error) {
	if token == "" {
		return nil, ErrMissingAPIKey
	}
	if len(token) < KeyPrefixLen || !strings.HasPrefix(token, "wsk_") {
		return nil, ErrInvalidAPIKey
	}
	return &ClientContext{ClientID: token[:KeyPrefixLen]}, nil
}
