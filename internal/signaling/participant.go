package signaling

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	closeGrace = time.Second
)

// wsParticipant is a session.Participant backed by one WebSocket. All writes
// go through writePump; the connection's reader runs in the HTTP handler.
type wsParticipant struct {
	conn         *websocket.Conn
	remoteAddr   string
	pingInterval time.Duration

	send chan []byte

	closeOnce   sync.Once
	done        chan struct{}
	closeCode   int
	closeReason string

	readDone chan struct{}
}

func newParticipant(conn *websocket.Conn, queueSize int, pingInterval time.Duration) *wsParticipant {
	return &wsParticipant{
		conn:         conn,
		remoteAddr:   conn.RemoteAddr().String(),
		pingInterval: pingInterval,
		send:         make(chan []byte, queueSize),
		done:         make(chan struct{}),
		readDone:     make(chan struct{}),
	}
}

// SendText queues data for delivery. It never blocks: a participant that
// cannot keep up is disconnected.
func (p *wsParticipant) SendText(data []byte) error {
	select {
	case <-p.done:
		return errParticipantClosed
	default:
	}
	select {
	case p.send <- data:
		return nil
	default:
		p.closeWith(websocket.ClosePolicyViolation, "send queue overflow")
		return errSendQueueFull
	}
}

func (p *wsParticipant) Close() error {
	p.closeWith(websocket.CloseNormalClosure, "")
	return nil
}

// closeWith records the close frame to send and stops the write pump. Only
// the first call has any effect.
func (p *wsParticipant) closeWith(code int, reason string) {
	p.closeOnce.Do(func() {
		p.closeCode = code
		p.closeReason = reason
		close(p.done)
	})
}

func (p *wsParticipant) writePump() {
	ticker := time.NewTicker(p.pingInterval)
	defer func() {
		ticker.Stop()
		_ = p.conn.Close()
	}()

	for {
		select {
		case msg := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				p.closeWith(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-ticker.C:
			if err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				p.closeWith(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-p.done:
			p.flush()
			if p.closeCode != websocket.CloseAbnormalClosure {
				_ = p.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(p.closeCode, p.closeReason),
					time.Now().Add(writeWait))
			}
			// Give the reader a chance to consume the peer's close reply so the
			// TCP connection is not reset under unread data.
			select {
			case <-p.readDone:
			case <-time.After(closeGrace):
			}
			return
		}
	}
}

// flush writes whatever was queued before the close was requested.
func (p *wsParticipant) flush() {
	for {
		select {
		case msg := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

// drain reads and discards frames until the connection fails or the close
// grace period ends. It is used for connections that were upgraded but never
// joined a session.
func (p *wsParticipant) drain() {
	defer close(p.readDone)
	_ = p.conn.SetReadDeadline(time.Now().Add(closeGrace))
	for {
		if _, _, err := p.conn.NextReader(); err != nil {
			return
		}
	}
}
