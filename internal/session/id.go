package session

import (
	"crypto/rand"
	"fmt"
	"io"
)

// IDAlphabet is the character set session identifiers are drawn from.
const IDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// 62*4 = 248 is the largest multiple of 62 below 256; bytes at or above it
// are rejected so every character is equally likely.
const idRejectThreshold = 256 - 256%len(IDAlphabet)

func newID(r io.Reader, n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n+n/2)
	for len(out) < n {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= idRejectThreshold {
				continue
			}
			out = append(out, IDAlphabet[int(b)%len(IDAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// ValidID reports whether id could have been produced by the registry. It is
// used to reject obviously bogus paths before taking any lock.
func ValidID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= '0' && c <= '9', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		default:
			return false
		}
	}
	return true
}

var randReader io.Reader = rand.Reader
