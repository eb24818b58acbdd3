// Package turnrest mints coturn-compatible ephemeral TURN credentials
// (draft-uberti-behave-turn-rest):
//
//	username   = <unix_expiry>:<prefix>:<label>
//	credential = base64(hmac_sha1(shared_secret, username))
//
// The label is the pairing session identifier when the caller names one, so
// TURN allocations can be correlated with relay sessions in coturn's logs.
package turnrest

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrMissingLabel = errors.New("turn rest label is required")
	ErrInvalidLabel = errors.New("turn rest label must not contain ':'")
)

type Config struct {
	SharedSecret   string
	TTLSeconds     int64
	UsernamePrefix string
	// Now defaults to time.Now.
	Now func() time.Time
	// RandomLabel is used by GenerateRandom. Defaults to 16 random hex bytes.
	RandomLabel func() (string, error)
}

type Generator struct {
	secret      []byte
	ttl         int64
	prefix      string
	now         func() time.Time
	randomLabel func() (string, error)
}

type Credentials struct {
	Username   string
	Credential string
	ExpiryUnix int64
}

func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.SharedSecret == "" {
		return nil, errors.New("shared secret is required")
	}
	if cfg.TTLSeconds <= 0 {
		return nil, errors.New("TTLSeconds must be > 0")
	}
	if cfg.UsernamePrefix == "" {
		return nil, errors.New("UsernamePrefix is required")
	}
	if strings.Contains(cfg.UsernamePrefix, ":") {
		return nil, errors.New("UsernamePrefix must not contain ':'")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.RandomLabel == nil {
		cfg.RandomLabel = randomHexLabel
	}
	return &Generator{
		secret:      []byte(cfg.SharedSecret),
		ttl:         cfg.TTLSeconds,
		prefix:      cfg.UsernamePrefix,
		now:         cfg.Now,
		randomLabel: cfg.RandomLabel,
	}, nil
}

// Generate signs a username ending in label.
func (g *Generator) Generate(label string) (Credentials, error) {
	if label == "" {
		return Credentials{}, ErrMissingLabel
	}
	if strings.Contains(label, ":") {
		return Credentials{}, ErrInvalidLabel
	}
	expiry := g.now().UTC().Unix() + g.ttl
	username := fmt.Sprintf("%d:%s:%s", expiry, g.prefix, label)
	return Credentials{
		Username:   username,
		Credential: sign(g.secret, username),
		ExpiryUnix: expiry,
	}, nil
}

func (g *Generator) GenerateRandom() (Credentials, error) {
	label, err := g.randomLabel()
	if err != nil {
		return Credentials{}, err
	}
	return g.Generate(label)
}

func randomHexLabel() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

func sign(secret []byte, username string) string {
	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write([]byte(username))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
