package auth

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/wilsonzlin/aero/proxy/webrtc-pairing-relay/internal/config"
)

func TestNewVerifier(t *testing.T) {
	v, err := NewVerifier(config.Config{AuthMode: config.AuthModeNone})
	if err != nil || v != nil {
		t.Fatalf("none: v=%v err=%v, want nil,nil", v, err)
	}
	v, err = NewVerifier(config.Config{AuthMode: config.AuthModeAPIKey, APIKey: "k"})
	if err != nil {
		t.Fatalf("api_key: %v", err)
	}
	if err := v.Verify("k"); err != nil {
		t.Fatalf("Verify(k): %v", err)
	}
	if _, err := NewVerifier(config.Config{AuthMode: "jwt"}); err == nil {
		t.Fatalf("expected error for unsupported mode")
	}
}

func TestCredentialFromRequest(t *testing.T) {
	t.Run("bearer", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/session", nil)
		r.Header.Set("Authorization", "Bearer abc")
		if got, err := CredentialFromRequest(r); err != nil || got != "abc" {
			t.Fatalf("got=%q err=%v", got, err)
		}
	})
	t.Run("x-api-key", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/session", nil)
		r.Header.Set("X-API-Key", "def")
		if got, err := CredentialFromRequest(r); err != nil || got != "def" {
			t.Fatalf("got=%q err=%v", got, err)
		}
	})
	t.Run("query", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/?apiKey=ghi", nil)
		if got, err := CredentialFromRequest(r); err != nil || got != "ghi" {
			t.Fatalf("got=%q err=%v", got, err)
		}
	})
	t.Run("non-bearer authorization is ignored", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/session", nil)
		r.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
		if _, err := CredentialFromRequest(r); !errors.Is(err, ErrMissingCredentials) {
			t.Fatalf("err=%v, want %v", err, ErrMissingCredentials)
		}
	})
}

func TestAuthorize(t *testing.T) {
	r := httptest.NewRequest("POST", "/session", nil)
	if err := Authorize(nil, r); err != nil {
		t.Fatalf("nil verifier: %v", err)
	}

	v := APIKeyVerifier{Expected: "secret"}
	if err := Authorize(v, r); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("err=%v, want %v", err, ErrMissingCredentials)
	}
	r.Header.Set("X-API-Key", "wrong")
	if err := Authorize(v, r); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err=%v, want %v", err, ErrInvalidCredentials)
	}
	r.Header.Set("X-API-Key", "secret")
	if err := Authorize(v, r); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
}

func TestAPIKeyVerifier_RejectsEmpty(t *testing.T) {
	if err := (APIKeyVerifier{}).Verify(""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err=%v, want %v", err, ErrInvalidCredentials)
	}
	if err := (APIKeyVerifier{Expected: "x"}).Verify(""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err=%v, want %v", err, ErrInvalidCredentials)
	}
}
