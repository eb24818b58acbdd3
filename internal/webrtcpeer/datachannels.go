package webrtcpeer

import (
	"fmt"

	"github.com/pion/webrtc/v4"
)

const (
	// DataChannelLabelChat carries the peer CLI's line-oriented text.
	DataChannelLabelChat = "chat"

	chatDataChannelID uint16 = 0
)

// OpenChatChannel creates the pre-negotiated chat channel. Both parties
// create it with the same id, so neither depends on the other's
// OnDataChannel.
func OpenChatChannel(t *Transport) (*webrtc.DataChannel, error) {
	negotiated := true
	ordered := true
	id := chatDataChannelID
	dc, err := t.pc.CreateDataChannel(DataChannelLabelChat, &webrtc.DataChannelInit{
		Negotiated: &negotiated,
		Ordered:    &ordered,
		ID:         &id,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s datachannel: %w", DataChannelLabelChat, err)
	}
	if err := validateChatDataChannel(dc); err != nil {
		_ = dc.Close()
		return nil, err
	}
	return dc, nil
}

func validateChatDataChannel(dc *webrtc.DataChannel) error {
	if dc.Label() != DataChannelLabelChat {
		return fmt.Errorf("expected label=%q (got %q)", DataChannelLabelChat, dc.Label())
	}
	if !dc.Ordered() {
		return fmt.Errorf("chat datachannel must be ordered (ordered=false)")
	}
	if dc.MaxPacketLifeTime() != nil || dc.MaxRetransmits() != nil {
		return fmt.Errorf("chat datachannel must be fully reliable")
	}
	return nil
}
