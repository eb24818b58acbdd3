package ratelimit

import (
	"sync"
	"time"
)

const nanoTokensPerToken int64 = int64(time.Second)

const maxInt64 = int64(^uint64(0) >> 1)

// TokenBucket refills at an integer rate (tokens/sec) using a provided Clock.
//
// Tokens are tracked as fixed-point nano-tokens (1 token = 1e9) so a rate of
// X tokens/sec adds exactly X nano-tokens per elapsed nanosecond.
type TokenBucket struct {
	mu sync.Mutex

	clock Clock

	capacity int64 // tokens
	rate     int64 // tokens/sec

	nano int64
	last time.Time
}

// NewTokenBucket returns a full bucket. A nil clock uses RealClock.
func NewTokenBucket(clock Clock, capacity, rate int64) *TokenBucket {
	if clock == nil {
		clock = RealClock{}
	}
	if capacity < 0 {
		capacity = 0
	}
	if rate < 0 {
		rate = 0
	}
	return &TokenBucket{
		clock:    clock,
		capacity: capacity,
		rate:     rate,
		nano:     toNano(capacity),
		last:     clock.Now(),
	}
}

// NewMessageBucket is the per-connection signaling budget: a burst of one
// second's worth of messages refilling at perSecond. perSecond <= 0 returns
// nil, and a nil bucket allows everything.
func NewMessageBucket(clock Clock, perSecond int) *TokenBucket {
	if perSecond <= 0 {
		return nil
	}
	return NewTokenBucket(clock, int64(perSecond), int64(perSecond))
}

// Allow consumes tokens if available. tokens <= 0 always succeeds.
func (b *TokenBucket) Allow(tokens int64) bool {
	if b == nil || tokens <= 0 {
		return true
	}
	cost := toNano(tokens)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	if b.nano < cost {
		return false
	}
	b.nano -= cost
	return true
}

// Available reports the whole tokens currently in the bucket.
func (b *TokenBucket) Available() int64 {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	return b.nano / nanoTokensPerToken
}

func (b *TokenBucket) refillLocked() {
	now := b.clock.Now()
	if now.Before(b.last) {
		// Clock went backwards: move the reference point without refilling.
		b.last = now
		return
	}
	elapsed := now.Sub(b.last).Nanoseconds()
	if elapsed <= 0 {
		return
	}
	b.last = now

	if b.rate <= 0 || b.capacity <= 0 {
		return
	}
	full := toNano(b.capacity)
	if b.nano >= full {
		b.nano = full
		return
	}

	// Clamp before multiplying so elapsed*rate cannot overflow.
	need := full - b.nano
	if fill := need / b.rate; fill <= 0 || elapsed >= fill {
		b.nano = full
		return
	}
	b.nano += elapsed * b.rate
	if b.nano > full {
		b.nano = full
	}
}

func toNano(tokens int64) int64 {
	if tokens <= 0 {
		return 0
	}
	if tokens > maxInt64/nanoTokensPerToken {
		return maxInt64
	}
	return tokens * nanoTokensPerToken
}
