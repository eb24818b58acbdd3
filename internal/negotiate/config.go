package negotiate

import (
	"crypto/rand"
	"encoding/binary"
)

// Politeness selects how the two parties agree on which of them yields
// during offer glare.
type Politeness int

const (
	// PolitenessTieBreak compares random tie-breakers carried in polite
	// messages; the lower value is polite.
	PolitenessTieBreak Politeness = iota
	// PolitenessInvertPeerBit becomes the opposite of the first announced
	// peer flag. Two parties announcing before hearing from each other both
	// end up polite.
	PolitenessInvertPeerBit
)

func (p Politeness) String() string {
	switch p {
	case PolitenessTieBreak:
		return "tie_break"
	case PolitenessInvertPeerBit:
		return "invert_peer_bit"
	default:
		return "unknown"
	}
}

const maxTieBreaker = 1<<53 - 1

type Config struct {
	Politeness Politeness
	// TieBreaker is drawn at random when zero.
	TieBreaker uint64
	// RewriteSDP is applied to every local offer and answer as it is sent.
	// The transport commits the unmodified description. Nil leaves
	// descriptions untouched.
	RewriteSDP func(sdp string) string
	// EventBuffer sizes the Events channel.
	EventBuffer int
}

func DefaultConfig() Config {
	return Config{
		Politeness:  PolitenessTieBreak,
		EventBuffer: 32,
	}
}

func (c Config) withDefaults() Config {
	if c.EventBuffer <= 0 {
		c.EventBuffer = DefaultConfig().EventBuffer
	}
	if c.TieBreaker == 0 {
		c.TieBreaker = randomTieBreaker()
	}
	c.TieBreaker &= maxTieBreaker
	if c.TieBreaker == 0 {
		c.TieBreaker = 1
	}
	return c
}

func randomTieBreaker() uint64 {
	var b [8]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			panic("negotiate: crypto/rand failed: " + err.Error())
		}
		if v := binary.BigEndian.Uint64(b[:]) & maxTieBreaker; v != 0 {
			return v
		}
	}
}
