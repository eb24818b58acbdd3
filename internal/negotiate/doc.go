// Package negotiate runs the party side of a pairing: the perfect
// negotiation state machine that both parties execute identically over a
// relayed signaling channel until a direct peer connection exists.
//
// An Engine owns one Channel (the relay WebSocket) and one Transport (a peer
// connection). Inbound messages and transport callbacks are queued and
// processed one at a time by Run, so no two negotiation steps ever interleave.
package negotiate
