package metrics

import "sync"

// Event names. Session lifecycle events are recorded by the registry, relay
// events by the signaling layer.
const (
	SessionAllocated           = "session_allocated"
	SessionJoined              = "session_joined"
	SessionJoinRejectedFull    = "session_join_rejected_full"
	SessionJoinRejectedMissing = "session_join_rejected_not_found"
	SessionClosed              = "session_closed"
	SessionSwept               = "session_swept"
	TooManySessions            = "too_many_sessions"

	RelayForwarded       = "relay_forwarded"
	RelayDroppedUnpaired = "relay_dropped_unpaired"
	RelayDroppedBinary   = "relay_dropped_binary"
	RelayDroppedSlowPeer = "relay_dropped_slow_peer"
	RelayRateLimited     = "relay_rate_limited"
	MalformedUpgrade     = "malformed_upgrade"
	AuthFailure          = "auth_failure"
)

// Metrics is a small concurrency-safe counter registry. It is exported in
// Prometheus' text format by PrometheusHandler.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

func (m *Metrics) Add(name string, n uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	if m.m == nil {
		m.m = make(map[string]uint64)
	}
	m.m[name] += n
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of every counter.
func (m *Metrics) Snapshot() map[string]uint64 {
	out := make(map[string]uint64)
	if m == nil {
		return out
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
