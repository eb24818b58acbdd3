package webrtcpeer

import (
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/wilsonzlin/aero/proxy/webrtc-pairing-relay/internal/negotiate"
)

// Transport is a pion PeerConnection driven by a negotiate.Engine.
type Transport struct {
	pc *webrtc.PeerConnection

	mu      sync.Mutex
	onState func(webrtc.PeerConnectionState)
	close   sync.Once
}

var _ negotiate.Transport = (*Transport)(nil)

func NewTransport(api *webrtc.API, cfg webrtc.Configuration) (*Transport, error) {
	if api == nil {
		api = webrtc.NewAPI()
	}
	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	t := &Transport{pc: pc}

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		t.mu.Lock()
		f := t.onState
		t.mu.Unlock()
		if f != nil {
			f(state)
		}
	})

	return t, nil
}

// Attach feeds the connection's negotiation, candidate, ICE state and track
// callbacks into e. Call it before e.Run and before adding tracks or data
// channels.
func (t *Transport) Attach(e *negotiate.Engine) {
	t.pc.OnNegotiationNeeded(e.NegotiationNeeded)
	t.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			e.LocalCandidate(nil)
			return
		}
		init := c.ToJSON()
		e.LocalCandidate(&init)
	})
	t.pc.OnICEConnectionStateChange(e.ICEConnectionStateChanged)
	t.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		e.RemoteTrack(track)
	})
}

// OnConnectionStateChange registers f for peer connection state changes.
func (t *Transport) OnConnectionStateChange(f func(webrtc.PeerConnectionState)) {
	t.mu.Lock()
	t.onState = f
	t.mu.Unlock()
}

func (t *Transport) PeerConnection() *webrtc.PeerConnection {
	return t.pc
}

func (t *Transport) CreateOffer(iceRestart bool) (webrtc.SessionDescription, error) {
	var opts *webrtc.OfferOptions
	if iceRestart {
		opts = &webrtc.OfferOptions{ICERestart: true}
	}
	return t.pc.CreateOffer(opts)
}

func (t *Transport) CreateAnswer() (webrtc.SessionDescription, error) {
	return t.pc.CreateAnswer(nil)
}

func (t *Transport) SetLocalDescription(d webrtc.SessionDescription) error {
	return t.pc.SetLocalDescription(d)
}

func (t *Transport) SetRemoteDescription(d webrtc.SessionDescription) error {
	return t.pc.SetRemoteDescription(d)
}

func (t *Transport) AddICECandidate(c webrtc.ICECandidateInit) error {
	return t.pc.AddICECandidate(c)
}

func (t *Transport) SignalingState() webrtc.SignalingState {
	return t.pc.SignalingState()
}

func (t *Transport) Close() error {
	var err error
	t.close.Do(func() {
		err = t.pc.Close()
	})
	return err
}
