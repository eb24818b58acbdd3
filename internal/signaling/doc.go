// Package signaling is the relay half of the pairing service.
//
// It hands out session identifiers over HTTP, upgrades GET /session/{id} to a
// WebSocket, and forwards every text frame one participant sends to the other
// participant of the same session, unmodified. Nothing is buffered for a
// participant that has not arrived yet, and when either side disconnects the
// whole session is torn down.
package signaling
