package session

import "errors"

var (
	ErrNotFound        = errors.New("session not found")
	ErrFull            = errors.New("session full")
	ErrTooManySessions = errors.New("too many sessions")
	ErrClosed          = errors.New("session registry closed")
)
