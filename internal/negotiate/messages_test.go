package negotiate

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_WireShapes(t *testing.T) {
	data, err := ConnectedMessage().Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"connected"}`, string(data))

	data, err = PoliteMessage(false, 0).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"polite","polite":false}`, string(data))

	data, err = PoliteMessage(true, 42).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"polite","polite":true,"tieBreaker":42}`, string(data))

	data, err = DescriptionMessage(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"description","description":{"type":"offer","sdp":"v=0"}}`, string(data))

	mid := "0"
	idx := uint16(0)
	data, err = CandidateMessage(webrtc.ICECandidateInit{
		Candidate:     "candidate:1 1 udp 1 10.0.0.1 5000 typ host",
		SDPMid:        &mid,
		SDPMLineIndex: &idx,
	}).Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"candidate"`)
	assert.Contains(t, string(data), `"sdpMid":"0"`)
	assert.Contains(t, string(data), `"sdpMLineIndex":0`)
}

func TestParseMessage_BrowserFrames(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"type":"description","description":{"type":"answer","sdp":"v=0\r\n"}}`))
	require.NoError(t, err)
	require.NotNil(t, msg.Description)
	assert.Equal(t, webrtc.SDPTypeAnswer, msg.Description.Type)

	msg, err = ParseMessage([]byte(`{"type":"candidate","candidate":null}`))
	require.NoError(t, err)
	assert.Nil(t, msg.Candidate)

	msg, err = ParseMessage([]byte(`{"type":"polite","polite":true}`))
	require.NoError(t, err)
	assert.True(t, *msg.Polite)
	assert.Zero(t, msg.TieBreaker)

	msg, err = ParseMessage([]byte(`{"type":"mute"}`))
	require.NoError(t, err)
	assert.Equal(t, MessageType("mute"), msg.Type)
}

func TestParseMessage_Rejects(t *testing.T) {
	for _, raw := range []string{
		``,
		`[]`,
		`{}`,
		`{"type":"polite"}`,
		`{"type":"description"}`,
		`{"type":"description","description":{"type":"bogus","sdp":""}}`,
	} {
		_, err := ParseMessage([]byte(raw))
		assert.ErrorIs(t, err, ErrInvalidMessage, "input %q", raw)
	}
}
