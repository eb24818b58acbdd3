package negotiate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
)

type EventKind int

const (
	EventConnect EventKind = iota + 1
	EventDisconnect
	EventTrack
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventDisconnect:
		return "disconnect"
	case EventTrack:
		return "track"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind  EventKind
	Track *webrtc.TrackRemote
	Err   error
}

type Stats struct {
	// IgnoredOffers counts colliding offers discarded by the impolite side.
	IgnoredOffers uint64
	// YieldedOffers counts uncommitted local offers the polite side dropped
	// in favour of a colliding remote offer.
	YieldedOffers uint64
	ICERestarts   uint64
	OffersSent    uint64
	AnswersSent   uint64
	Errors        uint64
}

// input is one unit of work for the Run loop.
type input interface{}

type (
	inboundFrame      struct{ data []byte }
	channelClosed     struct{ err error }
	negotiationNeeded struct{}
	localCandidate    struct{ c *webrtc.ICECandidateInit }
	iceStateChanged   struct{ state webrtc.ICEConnectionState }
	remoteTrack       struct{ track *webrtc.TrackRemote }
)

// Engine negotiates one Transport over one Channel using perfect
// negotiation.
type Engine struct {
	cfg Config
	log *slog.Logger
	ch  Channel
	tr  Transport

	inbox   chan input
	events  chan Event
	done    chan struct{}
	running atomic.Bool

	connected      atomic.Bool
	polite         atomic.Bool
	politeResolved atomic.Bool

	// Owned by the Run goroutine.
	ignoreOffer        bool
	pendingNegotiation bool
	pendingRestart     bool

	// outstanding is the polite side's sent but uncommitted offer. It is
	// applied locally only once the answer arrives, so a colliding remote
	// offer can be accepted from stable without a local rollback.
	outstanding        *webrtc.SessionDescription
	outstandingRestart bool

	tracksMu sync.Mutex
	tracks   []*webrtc.TrackRemote

	ignoredOffers atomic.Uint64
	yieldedOffers atomic.Uint64
	iceRestarts   atomic.Uint64
	offersSent    atomic.Uint64
	answersSent   atomic.Uint64
	errs          atomic.Uint64
}

func NewEngine(ch Channel, tr Transport, cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:    cfg,
		log:    log,
		ch:     ch,
		tr:     tr,
		inbox:  make(chan input, 128),
		events: make(chan Event, cfg.EventBuffer),
		done:   make(chan struct{}),
	}
}

// Events delivers application events. It must be drained while Run is
// active; the channel is closed when Run returns.
func (e *Engine) Events() <-chan Event { return e.events }

func (e *Engine) Connected() bool      { return e.connected.Load() }
func (e *Engine) Polite() bool         { return e.polite.Load() }
func (e *Engine) PoliteResolved() bool { return e.politeResolved.Load() }
func (e *Engine) TieBreaker() uint64   { return e.cfg.TieBreaker }

func (e *Engine) SignalingState() webrtc.SignalingState { return e.tr.SignalingState() }

func (e *Engine) RemoteTracks() []*webrtc.TrackRemote {
	e.tracksMu.Lock()
	defer e.tracksMu.Unlock()
	return append([]*webrtc.TrackRemote(nil), e.tracks...)
}

func (e *Engine) Stats() Stats {
	return Stats{
		IgnoredOffers: e.ignoredOffers.Load(),
		YieldedOffers: e.yieldedOffers.Load(),
		ICERestarts:   e.iceRestarts.Load(),
		OffersSent:    e.offersSent.Load(),
		AnswersSent:   e.answersSent.Load(),
		Errors:        e.errs.Load(),
	}
}

// NegotiationNeeded asks for a new offer once the peer is connected,
// politeness is resolved and the transport is stable.
func (e *Engine) NegotiationNeeded() { e.enqueue(negotiationNeeded{}) }

// LocalCandidate forwards a gathered candidate. Nil marks the end of
// gathering and is not sent.
func (e *Engine) LocalCandidate(c *webrtc.ICECandidateInit) { e.enqueue(localCandidate{c: c}) }

func (e *Engine) ICEConnectionStateChanged(s webrtc.ICEConnectionState) {
	e.enqueue(iceStateChanged{state: s})
}

func (e *Engine) RemoteTrack(t *webrtc.TrackRemote) { e.enqueue(remoteTrack{track: t}) }

func (e *Engine) enqueue(in input) {
	select {
	case e.inbox <- in:
	case <-e.done:
	}
}

// Run announces this party on the channel and processes messages and
// transport events until the channel closes (returns nil) or ctx is done.
// It does not close the transport.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(e.events)
	defer close(e.done)

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go e.readLoop(readCtx)

	e.send(ConnectedMessage())
	e.sendPolite()

	for {
		select {
		case <-ctx.Done():
			_ = e.ch.Close()
			return ctx.Err()
		case in := <-e.inbox:
			if closed, ok := in.(channelClosed); ok {
				e.connected.Store(false)
				e.log.Debug("signaling channel closed", "err", closed.err)
				e.emit(ctx, Event{Kind: EventDisconnect})
				return nil
			}
			e.step(ctx, in)
		}
	}
}

func (e *Engine) readLoop(ctx context.Context) {
	for {
		data, err := e.ch.Receive(ctx)
		if err != nil {
			e.enqueue(channelClosed{err: err})
			return
		}
		e.enqueue(inboundFrame{data: data})
	}
}

func (e *Engine) step(ctx context.Context, in input) {
	switch in := in.(type) {
	case inboundFrame:
		e.handleFrame(ctx, in.data)
	case negotiationNeeded:
		e.negotiate(false)
	case localCandidate:
		if in.c != nil {
			e.send(CandidateMessage(*in.c))
		}
	case iceStateChanged:
		if in.state == webrtc.ICEConnectionStateFailed {
			e.iceRestarts.Add(1)
			e.log.Info("ice connection failed, restarting")
			e.negotiate(true)
		}
	case remoteTrack:
		e.tracksMu.Lock()
		e.tracks = append(e.tracks, in.track)
		e.tracksMu.Unlock()
		e.emit(ctx, Event{Kind: EventTrack, Track: in.track})
	}
}

func (e *Engine) handleFrame(ctx context.Context, data []byte) {
	msg, err := ParseMessage(data)
	if err != nil {
		e.log.Warn("dropping signaling message", "err", err)
		return
	}

	switch msg.Type {
	case TypeConnected:
		if !e.connected.Load() {
			e.send(ConnectedMessage())
			e.sendPolite()
		}
		e.connected.Store(true)
		e.emit(ctx, Event{Kind: EventConnect})
		e.resume()

	case TypePolite:
		e.resolvePoliteness(*msg.Polite, msg.TieBreaker)

	case TypeDescription:
		e.handleDescription(ctx, *msg.Description)

	case TypeCandidate:
		if msg.Candidate == nil {
			return
		}
		if err := e.tr.AddICECandidate(*msg.Candidate); err != nil {
			if e.ignoreOffer {
				e.log.Debug("ignoring candidate for discarded offer", "err", err)
				return
			}
			e.fail(ctx, fmt.Errorf("%w: add candidate: %v", ErrTransportApply, err))
		}

	default:
		e.log.Debug("ignoring unknown signaling message", "type", msg.Type)
	}
}

func (e *Engine) resolvePoliteness(peerPolite bool, peerTieBreaker uint64) {
	if e.politeResolved.Load() {
		return
	}
	polite := !peerPolite
	if e.cfg.Politeness == PolitenessTieBreak && peerTieBreaker != 0 && peerTieBreaker != e.cfg.TieBreaker {
		polite = e.cfg.TieBreaker < peerTieBreaker
	}
	e.polite.Store(polite)
	e.politeResolved.Store(true)
	e.log.Debug("politeness resolved", "polite", polite, "strategy", e.cfg.Politeness.String())
	e.resume()
}

func (e *Engine) handleDescription(ctx context.Context, d webrtc.SessionDescription) {
	if d.Type == webrtc.SDPTypeAnswer {
		e.handleAnswer(ctx, d)
		return
	}

	offerCollision := d.Type == webrtc.SDPTypeOffer &&
		(e.outstanding != nil || e.tr.SignalingState() != webrtc.SignalingStateStable)

	e.ignoreOffer = !e.polite.Load() && offerCollision
	if e.ignoreOffer {
		e.ignoredOffers.Add(1)
		e.log.Debug("ignoring colliding offer")
		return
	}

	if offerCollision && e.outstanding != nil {
		// Never committed, so the transport is still stable. Offer again
		// once this exchange completes.
		e.yieldedOffers.Add(1)
		e.log.Debug("yielding to colliding offer")
		if e.outstandingRestart {
			e.pendingRestart = true
		} else {
			e.pendingNegotiation = true
		}
		e.outstanding = nil
		e.outstandingRestart = false
	}

	if err := e.tr.SetRemoteDescription(d); err != nil {
		e.fail(ctx, fmt.Errorf("%w: set remote %s: %v", ErrTransportApply, d.Type, err))
		return
	}

	if d.Type == webrtc.SDPTypeOffer {
		answer, err := e.tr.CreateAnswer()
		if err != nil {
			e.fail(ctx, fmt.Errorf("%w: create answer: %v", ErrTransportApply, err))
			return
		}
		if err := e.tr.SetLocalDescription(answer); err != nil {
			e.fail(ctx, fmt.Errorf("%w: set local answer: %v", ErrTransportApply, err))
			return
		}
		e.answersSent.Add(1)
		e.send(DescriptionMessage(e.wireDescription(answer)))
	}

	e.resume()
}

func (e *Engine) handleAnswer(ctx context.Context, d webrtc.SessionDescription) {
	e.ignoreOffer = false

	if e.outstanding != nil {
		offer := *e.outstanding
		e.outstanding = nil
		e.outstandingRestart = false
		if err := e.tr.SetLocalDescription(offer); err != nil {
			e.fail(ctx, fmt.Errorf("%w: commit local offer: %v", ErrTransportApply, err))
			return
		}
	} else if e.tr.SignalingState() != webrtc.SignalingStateHaveLocalOffer {
		e.log.Debug("ignoring answer without an outstanding offer")
		return
	}

	if err := e.tr.SetRemoteDescription(d); err != nil {
		e.fail(ctx, fmt.Errorf("%w: set remote answer: %v", ErrTransportApply, err))
		return
	}
	e.resume()
}

// canOffer reports whether a new offer may go out now.
func (e *Engine) canOffer() bool {
	return e.connected.Load() && e.politeResolved.Load() && e.outstanding == nil &&
		e.tr.SignalingState() == webrtc.SignalingStateStable
}

// negotiate sends a fresh offer, or defers it until canOffer holds.
//
// The impolite side commits its offer immediately. The polite side only
// records it and commits when the answer arrives.
func (e *Engine) negotiate(iceRestart bool) {
	if !e.canOffer() {
		if iceRestart {
			e.pendingRestart = true
		} else {
			e.pendingNegotiation = true
		}
		return
	}

	e.sendPolite()

	offer, err := e.tr.CreateOffer(iceRestart)
	if err != nil {
		e.log.Warn("create offer failed", "err", err)
		return
	}
	if e.polite.Load() {
		e.outstanding = &offer
		e.outstandingRestart = iceRestart
	} else if err := e.tr.SetLocalDescription(offer); err != nil {
		e.log.Warn("set local offer failed", "err", err)
		return
	}
	e.offersSent.Add(1)
	e.send(DescriptionMessage(e.wireDescription(offer)))
}

// resume runs deferred negotiation once it can proceed.
func (e *Engine) resume() {
	if !e.canOffer() {
		return
	}
	switch {
	case e.pendingRestart:
		e.pendingRestart = false
		e.pendingNegotiation = false
		e.negotiate(true)
	case e.pendingNegotiation:
		e.pendingNegotiation = false
		e.negotiate(false)
	}
}

// wireDescription applies RewriteSDP to what is sent. The transport always
// commits the description exactly as it produced it.
func (e *Engine) wireDescription(d webrtc.SessionDescription) webrtc.SessionDescription {
	if e.cfg.RewriteSDP != nil {
		d.SDP = e.cfg.RewriteSDP(d.SDP)
	}
	return d
}

func (e *Engine) sendPolite() {
	e.send(PoliteMessage(e.polite.Load(), e.cfg.TieBreaker))
}

func (e *Engine) send(m Message) {
	data, err := m.Encode()
	if err != nil {
		e.log.Error("encode signaling message", "type", m.Type, "err", err)
		return
	}
	if err := e.ch.Send(data); err != nil && !errors.Is(err, ErrChannelClosed) {
		e.log.Warn("send signaling message", "type", m.Type, "err", err)
	}
}

func (e *Engine) fail(ctx context.Context, err error) {
	e.errs.Add(1)
	e.log.Warn("negotiation step failed", "err", err)
	e.emit(ctx, Event{Kind: EventError, Err: err})
}

func (e *Engine) emit(ctx context.Context, ev Event) {
	select {
	case e.events <- ev:
	case <-ctx.Done():
	}
}
