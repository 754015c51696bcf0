package voxcli

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next message from the peer before the
	// connection is considered dead (the backend pings well within this)
	pongWait = 60 * time.Second
)

var (
	// ErrNotOpen is returned by Send when the connection is not open. The
	// frame is dropped, not queued: callers must wait for the open callback
	// before streaming.
	ErrNotOpen = errors.New("connection not open")

	// ErrConnClosed is returned by Connect on a connection that has already
	// closed. A closed connection is never redialed; the session builds a
	// fresh one with a freshly computed URL.
	ErrConnClosed = errors.New("connection already closed")
)

type ConnState int

const (
	StateIdle ConnState = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Frame is one WebSocket message: binary frames carry an audio segment,
// text frames carry a control signal.
type Frame struct {
	Binary bool
	Data   []byte
}

func TextFrame(s string) Frame { return Frame{Data: []byte(s)} }

func BinaryFrame(b []byte) Frame { return Frame{Binary: true, Data: b} }

func (f Frame) Text() string { return string(f.Data) }

// Conn owns the lifecycle of one full-duplex session connection. It dials
// exactly once, delivers every inbound frame in network arrival order to the
// most recently registered handler, and fires its close callback exactly once
// whether closure was local or remote. Correctness of the protocol depends on
// the transport delivering frames in order and without loss, which a single
// WebSocket connection guarantees; there are no per-segment sequence numbers.
type Conn struct {
	mu      sync.Mutex
	state   ConnState
	ws      *websocket.Conn
	handler func(Frame)
	onOpen  func()
	onClose func()

	writeMu   sync.Mutex
	closeOnce sync.Once

	insecure bool
}

func NewConn(insecure bool) *Conn {
	return &Conn{state: StateIdle, insecure: insecure}
}

// SetHandler replaces the inbound frame handler. The read loop consults the
// latest registration for every frame, so a handler swap takes effect
// immediately even while frames are in flight.
func (c *Conn) SetHandler(h func(Frame)) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

func (c *Conn) SetOnOpen(f func()) {
	c.mu.Lock()
	c.onOpen = f
	c.mu.Unlock()
}

func (c *Conn) SetOnClose(f func()) {
	c.mu.Lock()
	c.onClose = f
	c.mu.Unlock()
}

func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials url. It is a no-op if a dial is already pending or the
// connection is open, so racing callers end up with exactly one socket.
func (c *Conn) Connect(ctx context.Context, url string) error {
	c.mu.Lock()
	switch c.state {
	case StateConnecting, StateOpen:
		c.mu.Unlock()
		return nil
	case StateClosed:
		c.mu.Unlock()
		return ErrConnClosed
	}
	c.state = StateConnecting
	c.mu.Unlock()

	dialer := *websocket.DefaultDialer
	if c.insecure {
		slog.Warn("Skipping TLS certificate verification. This should not be used in production!")
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		c.mu.Lock()
		c.state = StateClosed
		c.mu.Unlock()
		return fmt.Errorf("failed to dial %s: %w", url, err)
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		// Disconnect raced the dial
		c.mu.Unlock()
		ws.Close()
		return ErrConnClosed
	}
	c.ws = ws
	c.state = StateOpen
	onOpen := c.onOpen
	c.mu.Unlock()

	slog.Debug("Connection open", "url", url)
	if onOpen != nil {
		onOpen()
	}

	go c.readLoop(ws)
	return nil
}

func (c *Conn) readLoop(ws *websocket.Conn) {
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPingHandler(func(appData string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Error("WebSocket read error", "error", err)
			}
			c.teardown()
			return
		}
		ws.SetReadDeadline(time.Now().Add(pongWait))

		c.mu.Lock()
		handler := c.handler
		c.mu.Unlock()
		if handler == nil {
			continue
		}

		switch mt {
		case websocket.BinaryMessage:
			handler(BinaryFrame(data))
		case websocket.TextMessage:
			handler(Frame{Data: data})
		}
	}
}

// Send transmits one frame. When the connection is not open the frame is
// dropped with a warning: back-pressure is the caller's concern, Send never
// queues.
func (c *Conn) Send(f Frame) error {
	c.mu.Lock()
	if c.state != StateOpen {
		state := c.state
		c.mu.Unlock()
		slog.Warn("Dropping frame: connection not open", "state", state, "binary", f.Binary, "bytes", len(f.Data))
		return ErrNotOpen
	}
	ws := c.ws
	c.mu.Unlock()

	mt := websocket.TextMessage
	if f.Binary {
		mt = websocket.BinaryMessage
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteMessage(mt, f.Data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

func (c *Conn) SendText(s string) error { return c.Send(TextFrame(s)) }

func (c *Conn) SendBinary(b []byte) error { return c.Send(BinaryFrame(b)) }

// Disconnect forcibly closes the connection. The close callback still fires
// exactly once even if the remote end closed first.
func (c *Conn) Disconnect() {
	c.teardown()
}

func (c *Conn) teardown() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	ws := c.ws
	onClose := c.onClose
	c.mu.Unlock()

	if ws != nil {
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		ws.Close()
	}

	c.closeOnce.Do(func() {
		slog.Debug("Connection closed")
		if onClose != nil {
			onClose()
		}
	})
}
