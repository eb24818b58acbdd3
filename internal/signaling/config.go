package signaling

import (
	"time"

	"github.com/wilsonzlin/aero/proxy/webrtc-pairing-relay/internal/auth"
	"github.com/wilsonzlin/aero/proxy/webrtc-pairing-relay/internal/ratelimit"
)

type Config struct {
	// IdleTimeout closes a connection that has not produced a frame or a pong
	// for this long.
	IdleTimeout  time.Duration
	PingInterval time.Duration

	MaxMessageBytes      int64
	MaxMessagesPerSecond int

	// SendQueueSize bounds frames queued for one participant. A participant
	// whose queue overflows is disconnected.
	SendQueueSize int

	// AllowedOrigins is the browser origin allow-list for upgrades. Empty
	// means same host only.
	AllowedOrigins []string

	// Verifier guards session allocation. Nil disables auth.
	Verifier auth.Verifier

	Clock ratelimit.Clock
}

func DefaultConfig() Config {
	return Config{
		IdleTimeout:          60 * time.Second,
		PingInterval:         20 * time.Second,
		MaxMessageBytes:      64 * 1024,
		MaxMessagesPerSecond: 50,
		SendQueueSize:        64,
		Clock:                ratelimit.RealClock{},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.PingInterval >= c.IdleTimeout {
		c.PingInterval = c.IdleTimeout * 9 / 10
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = d.MaxMessageBytes
	}
	if c.MaxMessagesPerSecond <= 0 {
		c.MaxMessagesPerSecond = d.MaxMessagesPerSecond
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = d.SendQueueSize
	}
	if c.Clock == nil {
		c.Clock = d.Clock
	}
	return c
}
