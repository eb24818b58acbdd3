package negotiate

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Channel is an ordered, bidirectional text message channel to the other
// party, normally a WebSocket joined to a relay session.
type Channel interface {
	Send(data []byte) error
	// Receive blocks for the next message. It returns io.EOF once the channel
	// has been closed cleanly.
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

const (
	channelWriteWait    = 10 * time.Second
	channelPingInterval = 20 * time.Second
	channelIdleTimeout  = 60 * time.Second
	channelQueueSize    = 64
)

type wsChannel struct {
	conn *websocket.Conn

	send     chan []byte
	incoming chan []byte

	closeOnce sync.Once
	closed    chan struct{}

	errMu   sync.Mutex
	readErr error
}

// DialChannel joins a relay session at url (ws:// or wss://).
func DialChannel(ctx context.Context, url string, header http.Header) (Channel, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, &DialError{StatusCode: resp.StatusCode, Err: err}
		}
		return nil, err
	}
	return newWSChannel(conn), nil
}

// DialError reports a handshake the relay refused, e.g. 404 for an unknown
// session or 409 for a full one.
type DialError struct {
	StatusCode int
	Err        error
}

func (e *DialError) Error() string {
	return "dial relay: " + http.StatusText(e.StatusCode) + ": " + e.Err.Error()
}

func (e *DialError) Unwrap() error { return e.Err }

func newWSChannel(conn *websocket.Conn) *wsChannel {
	c := &wsChannel{
		conn:     conn,
		send:     make(chan []byte, channelQueueSize),
		incoming: make(chan []byte, channelQueueSize),
		closed:   make(chan struct{}),
	}
	go c.writePump()
	go c.readPump()
	return c
}

func (c *wsChannel) Send(data []byte) error {
	select {
	case <-c.closed:
		return ErrChannelClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.closed:
		return ErrChannelClosed
	}
}

func (c *wsChannel) Receive(ctx context.Context) ([]byte, error) {
	select {
	case msg, ok := <-c.incoming:
		if !ok {
			return nil, c.err()
		}
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *wsChannel) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *wsChannel) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *wsChannel) err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.readErr
}

func (c *wsChannel) readPump() {
	defer close(c.incoming)
	defer c.Close()

	extend := func() { _ = c.conn.SetReadDeadline(time.Now().Add(channelIdleTimeout)) }
	extend()
	c.conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})
	c.conn.SetPingHandler(func(data string) error {
		extend()
		err := c.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(channelWriteWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || c.isClosed() {
				err = io.EOF
			}
			c.errMu.Lock()
			c.readErr = err
			c.errMu.Unlock()
			return
		}
		extend()
		if typ != websocket.TextMessage {
			continue
		}
		select {
		case c.incoming <- data:
		case <-c.closed:
			c.errMu.Lock()
			c.readErr = io.EOF
			c.errMu.Unlock()
			return
		}
	}
}

func (c *wsChannel) writePump() {
	ticker := time.NewTicker(channelPingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(channelWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(channelWriteWait)); err != nil {
				c.Close()
				return
			}
		case <-c.closed:
			c.flush()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(channelWriteWait))
			return
		}
	}
}

// flush writes whatever Send queued before Close.
func (c *wsChannel) flush() {
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(channelWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

type pipeEnd struct {
	in   <-chan []byte
	out  chan<- []byte
	done chan struct{}
	once *sync.Once
}

// PipeChannels returns two connected in-memory channels. Closing either end
// closes both.
func PipeChannels() (Channel, Channel) {
	ab := make(chan []byte, channelQueueSize)
	ba := make(chan []byte, channelQueueSize)
	done := make(chan struct{})
	once := &sync.Once{}
	return &pipeEnd{in: ba, out: ab, done: done, once: once},
		&pipeEnd{in: ab, out: ba, done: done, once: once}
}

func (p *pipeEnd) Send(data []byte) error {
	select {
	case <-p.done:
		return ErrChannelClosed
	default:
	}
	select {
	case p.out <- append([]byte(nil), data...):
		return nil
	case <-p.done:
		return ErrChannelClosed
	}
}

func (p *pipeEnd) Receive(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-p.in:
		return msg, nil
	default:
	}
	select {
	case msg := <-p.in:
		return msg, nil
	case <-p.done:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipeEnd) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
