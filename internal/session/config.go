package session

import "time"

const (
	DefaultIDLength = 10
	DefaultEmptyTTL = 5 * time.Minute
)

type Config struct {
	// IDLength is the number of characters drawn from IDAlphabet.
	IDLength int
	// EmptyTTL is how long a session with no participants survives. It is
	// also the sweep interval used by Run.
	EmptyTTL time.Duration
	// MaxSessions caps live sessions. Zero means unlimited.
	MaxSessions int
}

func DefaultConfig() Config {
	return Config{
		IDLength: DefaultIDLength,
		EmptyTTL: DefaultEmptyTTL,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.IDLength <= 0 {
		c.IDLength = d.IDLength
	}
	if c.EmptyTTL <= 0 {
		c.EmptyTTL = d.EmptyTTL
	}
	if c.MaxSessions < 0 {
		c.MaxSessions = 0
	}
	return c
}
