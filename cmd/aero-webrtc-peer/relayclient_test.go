package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wilsonzlin/aero/proxy/webrtc-pairing-relay/internal/auth"
	"github.com/wilsonzlin/aero/proxy/webrtc-pairing-relay/internal/config"
	"github.com/wilsonzlin/aero/proxy/webrtc-pairing-relay/internal/httpserver"
	"github.com/wilsonzlin/aero/proxy/webrtc-pairing-relay/internal/negotiate"
	"github.com/wilsonzlin/aero/proxy/webrtc-pairing-relay/internal/session"
	"github.com/wilsonzlin/aero/proxy/webrtc-pairing-relay/internal/signaling"
)

func newTestRelay(t *testing.T, apiKey string) *httptest.Server {
	t.Helper()

	cfg := config.Config{ICEServers: config.DefaultICEServers()}
	srv := httpserver.New(cfg, nil, httpserver.BuildInfo{}, nil)
	reg := session.NewRegistry(session.Config{}, nil, srv.Metrics(), nil)

	var verifier auth.Verifier
	if apiKey != "" {
		verifier = auth.APIKeyVerifier{Expected: apiKey}
	}
	relay := signaling.NewRelay(reg, signaling.Config{Verifier: verifier}, nil)
	relay.RegisterRoutes(srv.Mux(), srv.WithOriginPolicy)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		relay.Close()
		ts.Close()
	})
	return ts
}

func TestRelayClient_CreateSessionAndFetchICE(t *testing.T) {
	ts := newTestRelay(t, "k3y")
	ctx := context.Background()

	anon, err := newRelayClient(ts.URL, "")
	if err != nil {
		t.Fatalf("newRelayClient: %v", err)
	}
	if _, err := anon.CreateSession(ctx); err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("CreateSession without key: err=%v, want 401", err)
	}

	client, err := newRelayClient(ts.URL+"/", "k3y")
	if err != nil {
		t.Fatalf("newRelayClient: %v", err)
	}
	id, err := client.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if !session.ValidID(id) {
		t.Fatalf("invalid session id %q", id)
	}

	servers, err := client.ICEServers(ctx, id)
	if err != nil {
		t.Fatalf("ICEServers: %v", err)
	}
	if len(servers) != 1 || servers[0].URLs[0] != config.DefaultSTUNURL {
		t.Fatalf("servers=%+v", servers)
	}

	ch, err := negotiate.DialChannel(ctx, client.SessionURL(id), nil)
	if err != nil {
		t.Fatalf("DialChannel: %v", err)
	}
	_ = ch.Close()
}

func TestRelayClient_SessionURL(t *testing.T) {
	for _, tc := range []struct {
		base, want string
	}{
		{"http://relay.example:8080", "ws://relay.example:8080/session/abc"},
		{"https://relay.example/prefix/", "wss://relay.example/prefix/session/abc"},
	} {
		c, err := newRelayClient(tc.base, "")
		if err != nil {
			t.Fatalf("newRelayClient(%q): %v", tc.base, err)
		}
		if got := c.SessionURL("abc"); got != tc.want {
			t.Fatalf("SessionURL(%q)=%q, want %q", tc.base, got, tc.want)
		}
	}

	for _, bad := range []string{"ftp://relay.example", "relay.example:8080", "http://"} {
		if _, err := newRelayClient(bad, ""); err == nil {
			t.Fatalf("newRelayClient(%q) succeeded", bad)
		}
	}
}

func TestDescribeDialError(t *testing.T) {
	ts := newTestRelay(t, "")
	client, err := newRelayClient(ts.URL, "")
	if err != nil {
		t.Fatalf("newRelayClient: %v", err)
	}

	_, err = negotiate.DialChannel(context.Background(), client.SessionURL("Nope123456"), nil)
	got := describeDialError("Nope123456", err)
	if !strings.Contains(got.Error(), "does not exist") {
		t.Fatalf("describeDialError=%v", got)
	}

	other := errors.New("boom")
	if got := describeDialError("x", other); !errors.Is(got, other) {
		t.Fatalf("describeDialError should wrap unknown errors, got %v", got)
	}
}

func TestDescribeFailure_UsesRelayMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unavailable", "message": "too many sessions"})
	}))
	defer ts.Close()

	client, err := newRelayClient(ts.URL, "")
	if err != nil {
		t.Fatalf("newRelayClient: %v", err)
	}
	_, err = client.CreateSession(context.Background())
	if err == nil || !strings.Contains(err.Error(), "too many sessions") {
		t.Fatalf("err=%v", err)
	}
}

func TestFallbackICEServers(t *testing.T) {
	if got := fallbackICEServers(""); len(got) != 1 || got[0].URLs[0] != config.DefaultSTUNURL {
		t.Fatalf("default fallback=%+v", got)
	}
	got := fallbackICEServers("stun:a.example:3478, stun:b.example:3478")
	if len(got) != 1 || len(got[0].URLs) != 2 || got[0].URLs[1] != "stun:b.example:3478" {
		t.Fatalf("fallback=%+v", got)
	}
}
