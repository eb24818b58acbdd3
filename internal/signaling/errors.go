package signaling

import "errors"

var (
	// ErrMalformedUpgrade is returned for upgrade requests that are not a
	// WebSocket handshake.
	ErrMalformedUpgrade = errors.New("malformed websocket upgrade")

	errParticipantClosed = errors.New("participant closed")
	errSendQueueFull     = errors.New("participant send queue full")
)
