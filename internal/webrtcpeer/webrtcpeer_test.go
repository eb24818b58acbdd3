package webrtcpeer

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/pion/webrtc/v4"
)

func TestNewAPI_RejectsInvalidPortRange(t *testing.T) {
	if _, err := NewAPI(APIConfig{UDPPortMin: 5000, UDPPortMax: 4000}); err == nil {
		t.Fatalf("expected error for inverted port range")
	}
	if _, err := NewAPI(APIConfig{UDPPortMin: 4000, UDPPortMax: 5000}); err != nil {
		t.Fatalf("NewAPI: %v", err)
	}
}

func TestOpenChatChannel(t *testing.T) {
	tr, err := NewTransport(nil, webrtc.Configuration{})
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}
	defer tr.Close()

	dc, err := OpenChatChannel(tr)
	if err != nil {
		t.Fatalf("OpenChatChannel: %v", err)
	}
	if dc.Label() != DataChannelLabelChat || !dc.Negotiated() {
		t.Fatalf("label=%q negotiated=%v", dc.Label(), dc.Negotiated())
	}
	if id := dc.ID(); id == nil || *id != chatDataChannelID {
		t.Fatalf("id=%v, want %d", id, chatDataChannelID)
	}
}

func newChatTransport(t *testing.T) *Transport {
	t.Helper()
	tr, err := NewTransport(nil, webrtc.Configuration{})
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}
	t.Cleanup(func() { _ = tr.Close() })
	if _, err := OpenChatChannel(tr); err != nil {
		t.Fatalf("OpenChatChannel: %v", err)
	}
	return tr
}

// A created but uncommitted offer leaves the connection stable, so a
// colliding remote offer can still be answered. pion cannot roll back a
// committed one.
func TestTransport_UncommittedOfferCanYieldToRemoteOffer(t *testing.T) {
	polite := newChatTransport(t)
	impolite := newChatTransport(t)

	if _, err := polite.CreateOffer(false); err != nil {
		t.Fatalf("polite CreateOffer: %v", err)
	}
	if got := polite.SignalingState(); got != webrtc.SignalingStateStable {
		t.Fatalf("state after CreateOffer=%s, want stable", got)
	}

	offer, err := impolite.CreateOffer(false)
	if err != nil {
		t.Fatalf("impolite CreateOffer: %v", err)
	}
	if err := impolite.SetLocalDescription(offer); err != nil {
		t.Fatalf("impolite SetLocalDescription: %v", err)
	}
	rollback := webrtc.SessionDescription{Type: webrtc.SDPTypeRollback}
	if err := impolite.PeerConnection().SetLocalDescription(rollback); err == nil {
		t.Fatalf("local rollback from have-local-offer unexpectedly succeeded")
	}

	if err := polite.SetRemoteDescription(offer); err != nil {
		t.Fatalf("polite SetRemoteDescription: %v", err)
	}
	answer, err := polite.CreateAnswer()
	if err != nil {
		t.Fatalf("CreateAnswer: %v", err)
	}
	if err := polite.SetLocalDescription(answer); err != nil {
		t.Fatalf("polite SetLocalDescription: %v", err)
	}
	if err := impolite.SetRemoteDescription(answer); err != nil {
		t.Fatalf("impolite SetRemoteDescription: %v", err)
	}

	for name, tr := range map[string]*Transport{"polite": polite, "impolite": impolite} {
		if got := tr.SignalingState(); got != webrtc.SignalingStateStable {
			t.Fatalf("%s state=%s, want stable", name, got)
		}
	}
}

func TestLoggerFactory_TagsScope(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	l := NewLoggerFactory(log).NewLogger("ice")
	l.Debugf("pair %d selected", 3)
	l.Trace("dropped below debug")

	out := buf.String()
	if !strings.Contains(out, "pion_scope=ice") || !strings.Contains(out, `msg="pair 3 selected"`) {
		t.Fatalf("log output %q", out)
	}
	if strings.Contains(out, "dropped below debug") {
		t.Fatalf("trace output should be filtered at debug level: %q", out)
	}
}
