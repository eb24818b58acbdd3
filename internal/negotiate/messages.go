package negotiate

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

type MessageType string

const (
	TypeConnected   MessageType = "connected"
	TypePolite      MessageType = "polite"
	TypeDescription MessageType = "description"
	TypeCandidate   MessageType = "candidate"
)

// Message is one JSON text frame exchanged between parties. Only the fields
// belonging to Type are set.
type Message struct {
	Type MessageType `json:"type"`

	Polite *bool `json:"polite,omitempty"`
	// TieBreaker is kept below 2^53 so browser peers can round-trip it.
	TieBreaker uint64 `json:"tieBreaker,omitempty"`

	Description *webrtc.SessionDescription `json:"description,omitempty"`
	Candidate   *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

func ConnectedMessage() Message {
	return Message{Type: TypeConnected}
}

func PoliteMessage(polite bool, tieBreaker uint64) Message {
	return Message{Type: TypePolite, Polite: &polite, TieBreaker: tieBreaker}
}

func DescriptionMessage(d webrtc.SessionDescription) Message {
	return Message{Type: TypeDescription, Description: &d}
}

func CandidateMessage(c webrtc.ICECandidateInit) Message {
	return Message{Type: TypeCandidate, Candidate: &c}
}

func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage decodes a frame. Unknown types decode without error so the
// caller can skip them; known types missing their payload are rejected, except
// a candidate of null, which browsers send at the end of gathering.
func ParseMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	switch m.Type {
	case "":
		return Message{}, fmt.Errorf("%w: missing type", ErrInvalidMessage)
	case TypePolite:
		if m.Polite == nil {
			return Message{}, fmt.Errorf("%w: polite message without polite flag", ErrInvalidMessage)
		}
	case TypeDescription:
		if m.Description == nil {
			return Message{}, fmt.Errorf("%w: description message without description", ErrInvalidMessage)
		}
		switch m.Description.Type {
		case webrtc.SDPTypeOffer, webrtc.SDPTypeAnswer, webrtc.SDPTypePranswer, webrtc.SDPTypeRollback:
		default:
			return Message{}, fmt.Errorf("%w: unsupported description type", ErrInvalidMessage)
		}
	}
	return m, nil
}
