package negotiate

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
)

var (
	errFakeTransition  = errors.New("fake transport: invalid signaling state transition")
	errFakeSDPMismatch = errors.New("fake transport: sdp does not match the last created description")
	errFakeNoRemote    = errors.New("fake transport: remote description is not set")
)

// fakeTransport models the signaling state machine of a pion PeerConnection
// without any media or ICE. It follows pion's rules: a committed local
// description must be the one last created, a local rollback is rejected,
// and candidates need a remote description.
type fakeTransport struct {
	mu sync.Mutex

	name       string
	state      webrtc.SignalingState
	offers     int
	answers    int
	lastOffer  string
	lastAnswer string

	pendingLocal  *webrtc.SessionDescription
	pendingRemote *webrtc.SessionDescription
	currentLocal  *webrtc.SessionDescription
	currentRemote *webrtc.SessionDescription

	local      []webrtc.SessionDescription
	remote     []webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	restarts   int
	closed     bool
}

func newFakeTransport(name string) *fakeTransport {
	return &fakeTransport{name: name, state: webrtc.SignalingStateStable}
}

func (f *fakeTransport) CreateOffer(iceRestart bool) (webrtc.SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offers++
	if iceRestart {
		f.restarts++
	}
	f.lastOffer = fmt.Sprintf("v=0 %s-offer-%d a=fmtp:111 useinbandfec=1", f.name, f.offers)
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: f.lastOffer}, nil
}

func (f *fakeTransport) CreateAnswer() (webrtc.SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != webrtc.SignalingStateHaveRemoteOffer {
		return webrtc.SessionDescription{}, errFakeTransition
	}
	f.answers++
	f.lastAnswer = fmt.Sprintf("v=0 %s-answer-%d a=fmtp:111 useinbandfec=1", f.name, f.answers)
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: f.lastAnswer}, nil
}

func (f *fakeTransport) SetLocalDescription(d webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch d.Type {
	case webrtc.SDPTypeOffer:
		if d.SDP != f.lastOffer {
			return errFakeSDPMismatch
		}
		if f.state != webrtc.SignalingStateStable {
			return errFakeTransition
		}
		f.state = webrtc.SignalingStateHaveLocalOffer
		f.pendingLocal = &d
	case webrtc.SDPTypeAnswer:
		if d.SDP != f.lastAnswer {
			return errFakeSDPMismatch
		}
		if f.state != webrtc.SignalingStateHaveRemoteOffer {
			return errFakeTransition
		}
		f.state = webrtc.SignalingStateStable
		f.currentLocal = &d
		f.currentRemote = f.pendingRemote
		f.pendingLocal, f.pendingRemote = nil, nil
	default:
		// pion refuses an empty rollback and has no have-local-offer ->
		// stable transition for SetLocal(rollback).
		return fmt.Errorf("%w: SetLocal(%s) from %s", errFakeTransition, d.Type, f.state)
	}
	f.local = append(f.local, d)
	return nil
}

func (f *fakeTransport) SetRemoteDescription(d webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case d.Type == webrtc.SDPTypeOffer && f.state == webrtc.SignalingStateStable:
		f.state = webrtc.SignalingStateHaveRemoteOffer
		f.pendingRemote = &d
	case d.Type == webrtc.SDPTypeAnswer && f.state == webrtc.SignalingStateHaveLocalOffer:
		f.state = webrtc.SignalingStateStable
		f.currentRemote = &d
		f.currentLocal = f.pendingLocal
		f.pendingLocal, f.pendingRemote = nil, nil
	case d.Type == webrtc.SDPTypeRollback && f.state == webrtc.SignalingStateHaveRemoteOffer:
		f.state = webrtc.SignalingStateStable
		f.pendingRemote = nil
	default:
		return fmt.Errorf("%w: SetRemote(%s) from %s", errFakeTransition, d.Type, f.state)
	}
	f.remote = append(f.remote, d)
	return nil
}

func (f *fakeTransport) AddICECandidate(c webrtc.ICECandidateInit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.currentRemote == nil && f.pendingRemote == nil {
		return errFakeNoRemote
	}
	f.candidates = append(f.candidates, c)
	return nil
}

func (f *fakeTransport) SignalingState() webrtc.SignalingState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.state = webrtc.SignalingStateClosed
	return nil
}

type fakeState struct {
	state         webrtc.SignalingState
	offers        int
	local         []webrtc.SessionDescription
	remote        []webrtc.SessionDescription
	currentLocal  *webrtc.SessionDescription
	currentRemote *webrtc.SessionDescription
	candidates    []webrtc.ICECandidateInit
	restarts      int
}

func (f *fakeTransport) snapshot() fakeState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fakeState{
		state:         f.state,
		offers:        f.offers,
		local:         append([]webrtc.SessionDescription(nil), f.local...),
		remote:        append([]webrtc.SessionDescription(nil), f.remote...),
		currentLocal:  f.currentLocal,
		currentRemote: f.currentRemote,
		candidates:    append([]webrtc.ICECandidateInit(nil), f.candidates...),
		restarts:      f.restarts,
	}
}
