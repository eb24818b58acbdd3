package signaling

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wilsonzlin/aero/proxy/webrtc-pairing-relay/internal/auth"
	"github.com/wilsonzlin/aero/proxy/webrtc-pairing-relay/internal/httpserver"
	"github.com/wilsonzlin/aero/proxy/webrtc-pairing-relay/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/webrtc-pairing-relay/internal/origin"
	"github.com/wilsonzlin/aero/proxy/webrtc-pairing-relay/internal/ratelimit"
	"github.com/wilsonzlin/aero/proxy/webrtc-pairing-relay/internal/session"
)

// Relay serves session allocation and the per-session WebSocket endpoint.
type Relay struct {
	reg     *session.Registry
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Metrics

	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*wsParticipant]struct{}
	closed bool
	wg     sync.WaitGroup
}

func NewRelay(reg *session.Registry, cfg Config, log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()
	r := &Relay{
		reg:     reg,
		cfg:     cfg,
		log:     log,
		metrics: reg.Metrics(),
		conns:   make(map[*wsParticipant]struct{}),
	}
	r.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(req *http.Request) bool {
			_, present, allowed := origin.Check(req, cfg.AllowedOrigins)
			return !present || allowed
		},
	}
	return r
}

// RegisterRoutes mounts the relay on mux. withOrigin wraps the plain HTTP
// endpoints with the browser origin policy; nil leaves them unwrapped.
func (r *Relay) RegisterRoutes(mux *http.ServeMux, withOrigin func(http.HandlerFunc) http.HandlerFunc) {
	if withOrigin == nil {
		withOrigin = func(h http.HandlerFunc) http.HandlerFunc { return h }
	}
	mux.HandleFunc("GET /{$}", withOrigin(r.handleRoot))
	mux.HandleFunc("POST /session", withOrigin(r.handleCreate))
	mux.HandleFunc("OPTIONS /session", withOrigin(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	// Upgrades apply the origin allow-list themselves. Lookups are plain GETs
	// and only expose session state.
	mux.HandleFunc("GET /session/{id}", r.handleSession)
}

func (r *Relay) handleRoot(w http.ResponseWriter, req *http.Request) {
	id, ok := r.allocate(w, req)
	if !ok {
		return
	}
	http.Redirect(w, req, sessionPath(id), http.StatusSeeOther)
}

func (r *Relay) handleCreate(w http.ResponseWriter, req *http.Request) {
	id, ok := r.allocate(w, req)
	if !ok {
		return
	}
	path := sessionPath(id)
	w.Header().Set("Location", path)
	httpserver.WriteJSON(w, http.StatusCreated, map[string]any{
		"sessionId": id,
		"path":      path,
	})
}

func (r *Relay) allocate(w http.ResponseWriter, req *http.Request) (string, bool) {
	if err := auth.Authorize(r.cfg.Verifier, req); err != nil {
		r.metrics.Inc(metrics.AuthFailure)
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return "", false
	}
	id, err := r.reg.Allocate()
	switch {
	case err == nil:
		return id, true
	case errors.Is(err, session.ErrTooManySessions), errors.Is(err, session.ErrClosed):
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", err.Error())
	default:
		r.log.Error("session allocation failed", "err", err)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to allocate session")
	}
	return "", false
}

func (r *Relay) handleSession(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")

	if req.Header.Get("Upgrade") == "" {
		r.handleInfo(w, id)
		return
	}
	if !websocket.IsWebSocketUpgrade(req) {
		r.metrics.Inc(metrics.MalformedUpgrade)
		writeJSONError(w, http.StatusBadRequest, "bad_request", ErrMalformedUpgrade.Error())
		return
	}
	if !r.upgrader.CheckOrigin(req) {
		writeJSONError(w, http.StatusForbidden, "forbidden", "origin not allowed")
		return
	}

	if !session.ValidID(id) {
		r.metrics.Inc(metrics.SessionJoinRejectedMissing)
		writeJSONError(w, http.StatusNotFound, "not_found", session.ErrNotFound.Error())
		return
	}
	info, err := r.reg.Lookup(id)
	if err != nil {
		r.metrics.Inc(metrics.SessionJoinRejectedMissing)
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	if info.Participants >= 2 {
		r.metrics.Inc(metrics.SessionJoinRejectedFull)
		writeJSONError(w, http.StatusConflict, "session_full", session.ErrFull.Error())
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "relay shutting down")
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()
	defer r.wg.Done()

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		// The upgrader has already written an error response.
		r.metrics.Inc(metrics.MalformedUpgrade)
		return
	}

	p := newParticipant(conn, r.cfg.SendQueueSize, r.cfg.PingInterval)
	if !r.track(p) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	defer r.untrack(p)

	go p.writePump()

	log := r.log.With("session_id", id, "remote", p.remoteAddr)

	// The session may have filled up or disappeared between the check above
	// and the handshake.
	if err := r.reg.Join(id, p); err != nil {
		log.Debug("join rejected after upgrade", "err", err)
		reason := "session full"
		if errors.Is(err, session.ErrNotFound) {
			reason = "session not found"
		}
		p.closeWith(websocket.ClosePolicyViolation, reason)
		p.drain()
		return
	}
	log.Info("participant joined")

	r.readPump(id, p, log)
}

func (r *Relay) handleInfo(w http.ResponseWriter, id string) {
	if !session.ValidID(id) {
		writeJSONError(w, http.StatusNotFound, "not_found", session.ErrNotFound.Error())
		return
	}
	info, err := r.reg.Lookup(id)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{
		"sessionId":    info.ID,
		"state":        info.State.String(),
		"participants": info.Participants,
		"createdAt":    info.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// readPump forwards text frames from p to its peer until the connection
// ends, then tears the session down.
func (r *Relay) readPump(id string, p *wsParticipant, log *slog.Logger) {
	defer func() {
		for _, rest := range r.reg.Leave(id, p) {
			_ = rest.Close()
		}
		_ = p.Close()
		close(p.readDone)
		log.Info("participant left")
	}()

	conn := p.conn
	conn.SetReadLimit(r.cfg.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(r.cfg.IdleTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(r.cfg.IdleTimeout))
	})

	limiter := ratelimit.NewMessageBucket(r.cfg.Clock, r.cfg.MaxMessagesPerSecond)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				p.closeWith(websocket.CloseMessageTooBig, "message too large")
			} else if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("read ended", "err", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(r.cfg.IdleTimeout))

		if !limiter.Allow(1) {
			r.metrics.Inc(metrics.RelayRateLimited)
			p.closeWith(websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}

		if msgType != websocket.TextMessage {
			r.metrics.Inc(metrics.RelayDroppedBinary)
			continue
		}

		peer, ok := r.reg.Peer(id, p)
		if !ok {
			r.metrics.Inc(metrics.RelayDroppedUnpaired)
			continue
		}
		if err := peer.SendText(data); err != nil {
			r.metrics.Inc(metrics.RelayDroppedSlowPeer)
			continue
		}
		r.metrics.Inc(metrics.RelayForwarded)
	}
}

func (r *Relay) track(p *wsParticipant) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.conns[p] = struct{}{}
	return true
}

func (r *Relay) untrack(p *wsParticipant) {
	r.mu.Lock()
	delete(r.conns, p)
	r.mu.Unlock()
}

// Close sends a going-away close frame to every connection and waits for
// their handlers to return. New upgrades are refused afterwards.
func (r *Relay) Close() {
	r.mu.Lock()
	r.closed = true
	conns := make([]*wsParticipant, 0, len(r.conns))
	for p := range r.conns {
		conns = append(conns, p)
	}
	r.mu.Unlock()

	for _, p := range conns {
		p.closeWith(websocket.CloseGoingAway, "server shutting down")
	}
	r.wg.Wait()
}

func sessionPath(id string) string {
	return "/session/" + id
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	httpserver.WriteJSON(w, status, map[string]any{
		"error":   code,
		"message": message,
	})
}
