package session

import "time"

// Participant is one live signaling connection held by a session.
type Participant interface {
	// SendText delivers one text message to the connection without blocking
	// on the network.
	SendText(data []byte) error
	Close() error
}

type State int

const (
	StateEmpty State = iota
	StateWaiting
	StatePaired
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateWaiting:
		return "waiting"
	case StatePaired:
		return "paired"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Info is a read-only snapshot of a session.
type Info struct {
	ID           string
	CreatedAt    time.Time
	Participants int
	State        State
}

type session struct {
	id           string
	createdAt    time.Time
	participants []Participant
}

func (s *session) state() State {
	switch len(s.participants) {
	case 0:
		return StateEmpty
	case 1:
		return StateWaiting
	default:
		return StatePaired
	}
}

func (s *session) info() Info {
	return Info{
		ID:           s.id,
		CreatedAt:    s.createdAt,
		Participants: len(s.participants),
		State:        s.state(),
	}
}

func (s *session) indexOf(p Participant) int {
	for i, q := range s.participants {
		if q == p {
			return i
		}
	}
	return -1
}
