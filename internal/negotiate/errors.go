package negotiate

import "errors"

var (
	// ErrTransportApply wraps a failure to apply a remote description or
	// candidate that was not part of an ignored offer.
	ErrTransportApply = errors.New("transport apply failure")

	ErrChannelClosed  = errors.New("signaling channel closed")
	ErrInvalidMessage = errors.New("invalid signaling message")
	ErrAlreadyRunning = errors.New("engine already running")
)
