package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
)

const relayRequestTimeout = 10 * time.Second

// relayClient talks to the relay's plain HTTP endpoints.
type relayClient struct {
	base   *url.URL
	apiKey string
	http   *http.Client
}

func newRelayClient(rawBase, apiKey string) (*relayClient, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(rawBase), "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid --relay %q: %w", rawBase, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid --relay %q: scheme must be http or https", rawBase)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid --relay %q: missing host", rawBase)
	}
	return &relayClient{
		base:   u,
		apiKey: apiKey,
		http:   &http.Client{Timeout: relayRequestTimeout},
	}, nil
}

func (c *relayClient) endpoint(path string) *url.URL {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = ""
	return &u
}

// SessionURL is the WebSocket URL that joins session id.
func (c *relayClient) SessionURL(id string) string {
	u := c.endpoint("/session/" + url.PathEscape(id))
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u.String()
}

func (c *relayClient) CreateSession(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/session").String(), nil)
	if err != nil {
		return "", err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create session: %s", describeFailure(resp))
	}
	var body struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("create session: decode response: %w", err)
	}
	if body.SessionID == "" {
		return "", fmt.Errorf("create session: empty session id")
	}
	return body.SessionID, nil
}

// ICEServers fetches the relay's ICE configuration, with TURN credentials
// bound to session id when the relay issues them.
func (c *relayClient) ICEServers(ctx context.Context, id string) ([]webrtc.ICEServer, error) {
	u := c.endpoint("/webrtc/ice")
	u.RawQuery = url.Values{"session": {id}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch ice servers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch ice servers: %s", describeFailure(resp))
	}
	var body struct {
		ICEServers []webrtc.ICEServer `json:"iceServers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("fetch ice servers: decode response: %w", err)
	}
	return body.ICEServers, nil
}

func describeFailure(resp *http.Response) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(raw, &body) == nil && (body.Message != "" || body.Error != "") {
		if body.Message != "" {
			return fmt.Sprintf("%s: %s", resp.Status, body.Message)
		}
		return fmt.Sprintf("%s: %s", resp.Status, body.Error)
	}
	return resp.Status
}
