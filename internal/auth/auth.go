// Package auth guards session allocation. Joining a session is deliberately
// not authenticated: knowing the identifier is the capability.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/wilsonzlin/aero/proxy/webrtc-pairing-relay/internal/config"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Verifier interface {
	Verify(credential string) error
}

// NewVerifier returns nil for AUTH_MODE=none.
func NewVerifier(cfg config.Config) (Verifier, error) {
	switch cfg.AuthMode {
	case config.AuthModeNone, "":
		return nil, nil
	case config.AuthModeAPIKey:
		return APIKeyVerifier{Expected: cfg.APIKey}, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.AuthMode)
	}
}

// CredentialFromRequest extracts an API key from, in order, an
// "Authorization: Bearer" header, an X-API-Key header or the apiKey query
// parameter (browsers following GET / cannot set headers).
func CredentialFromRequest(r *http.Request) (string, error) {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") && strings.TrimSpace(token) != "" {
			return strings.TrimSpace(token), nil
		}
	}
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key, nil
	}
	if key := r.URL.Query().Get("apiKey"); key != "" {
		return key, nil
	}
	return "", ErrMissingCredentials
}

// Authorize checks r against v. A nil verifier allows everything.
func Authorize(v Verifier, r *http.Request) error {
	if v == nil {
		return nil
	}
	cred, err := CredentialFromRequest(r)
	if err != nil {
		return err
	}
	return v.Verify(cred)
}
