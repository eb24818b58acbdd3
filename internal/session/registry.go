package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/wilsonzlin/aero/proxy/webrtc-pairing-relay/internal/metrics"
)

const maxAllocateAttempts = 3

type Registry struct {
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Metrics
	clock   Clock

	mu       sync.RWMutex
	sessions map[string]*session
	closed   bool
}

func NewRegistry(cfg Config, log *slog.Logger, m *metrics.Metrics, clock Clock) *Registry {
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	if clock == nil {
		clock = realClock{}
	}
	return &Registry{
		cfg:      cfg.withDefaults(),
		log:      log,
		metrics:  m,
		clock:    clock,
		sessions: make(map[string]*session),
	}
}

func (r *Registry) Metrics() *metrics.Metrics { return r.metrics }

func (r *Registry) Config() Config { return r.cfg }

// Allocate creates an empty session and returns its identifier.
func (r *Registry) Allocate() (string, error) {
	for attempt := 0; attempt < maxAllocateAttempts; attempt++ {
		id, err := newID(randReader, r.cfg.IDLength)
		if err != nil {
			return "", err
		}

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return "", ErrClosed
		}
		if r.cfg.MaxSessions > 0 && len(r.sessions) >= r.cfg.MaxSessions {
			r.mu.Unlock()
			r.metrics.Inc(metrics.TooManySessions)
			return "", ErrTooManySessions
		}
		if _, taken := r.sessions[id]; taken {
			r.mu.Unlock()
			continue
		}
		r.sessions[id] = &session{id: id, createdAt: r.clock.Now()}
		r.mu.Unlock()

		r.metrics.Inc(metrics.SessionAllocated)
		r.log.Debug("session allocated", "session_id", id)
		return id, nil
	}
	return "", errors.New("failed to allocate unique session id")
}

func (r *Registry) Lookup(id string) (Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return Info{}, ErrNotFound
	}
	return s.info(), nil
}

// Join adds p to the session. It fails without side effects when the session
// is unknown or already holds two participants.
func (r *Registry) Join(id string, p Participant) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		r.metrics.Inc(metrics.SessionJoinRejectedMissing)
		return ErrNotFound
	}
	if len(s.participants) >= 2 {
		r.mu.Unlock()
		r.metrics.Inc(metrics.SessionJoinRejectedFull)
		return ErrFull
	}
	if s.indexOf(p) >= 0 {
		r.mu.Unlock()
		return nil
	}
	s.participants = append(s.participants, p)
	n := len(s.participants)
	r.mu.Unlock()

	r.metrics.Inc(metrics.SessionJoined)
	r.log.Debug("session joined", "session_id", id, "participants", n)
	return nil
}

// Leave removes p and deletes the session. The participants that were still
// attached are returned so the caller can close them; the identifier is never
// handed out again by this session.
func (r *Registry) Leave(id string, p Participant) []Participant {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	var rest []Participant
	for _, q := range s.participants {
		if q != p {
			rest = append(rest, q)
		}
	}
	s.participants = nil
	delete(r.sessions, id)
	r.mu.Unlock()

	r.metrics.Inc(metrics.SessionClosed)
	r.log.Debug("session closed", "session_id", id, "remaining", len(rest))
	return rest
}

// Peer returns the participant on the other side of p. It only succeeds for
// a paired session that p belongs to.
func (r *Registry) Peer(id string, p Participant) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok || len(s.participants) != 2 {
		return nil, false
	}
	switch p {
	case s.participants[0]:
		return s.participants[1], true
	case s.participants[1]:
		return s.participants[0], true
	default:
		return nil, false
	}
}

// Sweep deletes every empty session created more than EmptyTTL before now.
func (r *Registry) Sweep(now time.Time) int {
	cutoff := now.Add(-r.cfg.EmptyTTL)

	r.mu.Lock()
	n := 0
	for id, s := range r.sessions {
		if len(s.participants) == 0 && s.createdAt.Before(cutoff) {
			delete(r.sessions, id)
			n++
		}
	}
	r.mu.Unlock()

	if n > 0 {
		r.metrics.Add(metrics.SessionSwept, uint64(n))
		r.log.Debug("swept empty sessions", "count", n)
	}
	return n
}

// Run sweeps every EmptyTTL until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	t := time.NewTicker(r.cfg.EmptyTTL)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep(r.clock.Now())
		}
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close deletes every session, closes every participant and rejects further
// allocations.
func (r *Registry) Close() {
	r.mu.Lock()
	var all []Participant
	for id, s := range r.sessions {
		all = append(all, s.participants...)
		delete(r.sessions, id)
	}
	r.closed = true
	r.mu.Unlock()

	for _, p := range all {
		_ = p.Close()
	}
}
