package negotiate

import "github.com/pion/webrtc/v4"

// Transport is the peer connection an Engine negotiates. Implementations
// report their own events back through the Engine's NegotiationNeeded,
// LocalCandidate, ICEConnectionStateChanged and RemoteTrack methods.
//
// Every method is called from the Engine's Run goroutine only. Local
// descriptions are committed exactly as CreateOffer or CreateAnswer returned
// them, and never rolled back.
type Transport interface {
	CreateOffer(iceRestart bool) (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
	SignalingState() webrtc.SignalingState
	Close() error
}
