package origin

import (
	"net/http/httptest"
	"testing"
)

func TestNormalizeHeader(t *testing.T) {
	t.Run("normalizes scheme and host and drops default port", func(t *testing.T) {
		normalized, host, ok := NormalizeHeader("HTTPS://Example.COM:443")
		if !ok {
			t.Fatalf("expected ok=true")
		}
		if normalized != "https://example.com" {
			t.Fatalf("normalized=%q, want %q", normalized, "https://example.com")
		}
		if host != "example.com" {
			t.Fatalf("host=%q, want %q", host, "example.com")
		}
	})

	t.Run("allows trailing slash", func(t *testing.T) {
		normalized, host, ok := NormalizeHeader("http://localhost:5173/")
		if !ok {
			t.Fatalf("expected ok=true")
		}
		if normalized != "http://localhost:5173" || host != "localhost:5173" {
			t.Fatalf("normalized=%q host=%q", normalized, host)
		}
	})

	t.Run("brackets ipv6", func(t *testing.T) {
		normalized, host, ok := NormalizeHeader("http://[::1]:8080")
		if !ok {
			t.Fatalf("expected ok=true")
		}
		if normalized != "http://[::1]:8080" || host != "[::1]:8080" {
			t.Fatalf("normalized=%q host=%q", normalized, host)
		}
	})

	t.Run("allows null origin", func(t *testing.T) {
		normalized, host, ok := NormalizeHeader("null")
		if !ok || normalized != "null" || host != "" {
			t.Fatalf("normalized=%q host=%q ok=%v", normalized, host, ok)
		}
	})

	t.Run("rejects malformed origins", func(t *testing.T) {
		cases := []string{
			"",
			"ftp://example.com",
			"https://example.com/path",
			"https://example.com/?q=1",
			"https://user@example.com",
			"https://example.com/#frag",
			"https://example.com:0",
			"https://example.com:99999",
		}
		for _, c := range cases {
			if _, _, ok := NormalizeHeader(c); ok {
				t.Fatalf("expected ok=false for %q", c)
			}
		}
	})
}

func TestIsAllowed(t *testing.T) {
	normalized, host, ok := NormalizeHeader("https://app.example.com")
	if !ok {
		t.Fatalf("NormalizeHeader ok=false")
	}

	if !IsAllowed(normalized, host, "app.example.com", nil) {
		t.Fatalf("expected same host to be allowed")
	}
	if !IsAllowed(normalized, host, "APP.example.com:443", nil) {
		t.Fatalf("expected default port to be treated as equivalent")
	}
	if IsAllowed(normalized, host, "app.example.com:8443", nil) {
		t.Fatalf("expected different port to be rejected")
	}
	if !IsAllowed(normalized, host, "whatever:1234", []string{"*"}) {
		t.Fatalf("expected * to allow any origin")
	}
	if !IsAllowed(normalized, host, "relay.example.com", []string{"https://app.example.com"}) {
		t.Fatalf("expected explicit origin to be allowed")
	}
	if IsAllowed(normalized, host, "relay.example.com", []string{"https://other.example.com"}) {
		t.Fatalf("expected non-matching origin to be rejected")
	}
	if IsAllowed("null", "", "relay.example.com", nil) {
		t.Fatalf("expected null origin to be rejected by the same-host default")
	}
	if !IsAllowed("null", "", "relay.example.com", []string{"null"}) {
		t.Fatalf("expected null origin to be allowed when configured")
	}
}

func TestCheck(t *testing.T) {
	r := httptest.NewRequest("GET", "http://relay.example.com/session/abc", nil)
	if _, present, allowed := Check(r, nil); present || !allowed {
		t.Fatalf("no Origin: present=%v allowed=%v, want false/true", present, allowed)
	}

	r.Header.Set("Origin", "http://relay.example.com")
	if got, present, allowed := Check(r, nil); !present || !allowed || got != "http://relay.example.com" {
		t.Fatalf("same host: got=%q present=%v allowed=%v", got, present, allowed)
	}

	r.Header.Set("Origin", "https://evil.example.com")
	if _, _, allowed := Check(r, nil); allowed {
		t.Fatalf("expected cross-origin request to be rejected")
	}

	r.Header.Set("Origin", "not a url")
	if _, present, allowed := Check(r, []string{"*"}); !present || allowed {
		t.Fatalf("malformed Origin: present=%v allowed=%v, want true/false", present, allowed)
	}
}
