package transport

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AltairaLabs/CaptureKit/types"
)

// WebSocketChannel is the message-oriented fallback variant: a single
// full-duplex connection where binary frames carry chunk bytes verbatim and
// text frames carry JSON control payloads, one object per frame. It is the
// last line of defense and is assumed universally available.
type WebSocketChannel struct {
	cfg       Config
	sessionID string

	readyOnce sync.Once
	readyCh   chan struct{}
	readyErr  error

	mu      sync.Mutex
	writeMu sync.Mutex // serializes writes (gorilla/websocket requirement)
	conn    *websocket.Conn
	open    bool
	closed  bool
	closeCh chan struct{}

	handlers handlerSlots
}

// NewWebSocketChannel constructs the fallback channel and begins the
// handshake in the background. Call Ready to await usability.
func NewWebSocketChannel(cfg Config, sessionID string) *WebSocketChannel {
	cfg.defaults()
	c := &WebSocketChannel{
		cfg:       cfg,
		sessionID: sessionID,
		readyCh:   make(chan struct{}),
		closeCh:   make(chan struct{}),
	}
	go c.dial()
	return c
}

// Kind implements Channel.
func (c *WebSocketChannel) Kind() Kind { return KindFallback }

func (c *WebSocketChannel) url() string {
	return fmt.Sprintf("%s/upload/%s", c.cfg.FallbackBaseURL, c.sessionID)
}

func (c *WebSocketChannel) dial() {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.FallbackReadyTimeout,
		TLSClientConfig:  &tls.Config{MinVersion: tls.VersionTLS12},
	}

	c.cfg.Logger.Debug("connecting to WebSocket", "url", c.url())

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.FallbackReadyTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, c.url(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.settleReady(fmt.Errorf("websocket handshake failed: %w", err))
		return
	}

	conn.SetReadLimit(c.cfg.MaxMessageSize)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		c.settleReady(fmt.Errorf("channel closed during handshake"))
		return
	}
	c.conn = conn
	c.open = true
	c.mu.Unlock()

	c.cfg.Logger.Info("WebSocket channel open", "session_id", c.sessionID)
	c.settleReady(nil)

	go c.readLoop(conn)
}

func (c *WebSocketChannel) settleReady(err error) {
	c.readyOnce.Do(func() {
		c.readyErr = err
		close(c.readyCh)
	})
}

// Ready implements Channel. It resolves when the underlying open event fires
// and rejects on handshake error or timeout.
func (c *WebSocketChannel) Ready(ctx context.Context) error {
	select {
	case <-c.readyCh:
		return c.readyErr
	case <-ctx.Done():
		return fmt.Errorf("websocket channel not ready: %w", ctx.Err())
	}
}

// readLoop parses inbound text frames as structured payloads. Malformed
// frames are dropped rather than surfaced as errors.
func (c *WebSocketChannel) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			c.markNotOpen()
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			select {
			case <-c.closeCh:
			default:
				c.handlers.dispatchError(fmt.Errorf("websocket read failed: %w", err))
			}
			return
		}

		if msgType != websocket.TextMessage {
			continue
		}

		var evt types.ServerEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			c.cfg.Logger.Debug("dropping malformed inbound frame", "error", err)
			continue
		}
		c.handlers.dispatchMessage(evt)
	}
}

func (c *WebSocketChannel) markNotOpen() {
	c.mu.Lock()
	c.open = false
	c.mu.Unlock()
}

// SendBinary implements Channel. Sends while not open are silently dropped;
// this core does not buffer.
func (c *WebSocketChannel) SendBinary(data []byte) {
	c.send(websocket.BinaryMessage, data)
}

// SendControl implements Channel. The payload is serialized to a JSON text
// frame on the same connection.
func (c *WebSocketChannel) SendControl(msg types.ControlMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.handlers.dispatchError(fmt.Errorf("control message marshal failed: %w", err))
		return
	}
	c.send(websocket.TextMessage, data)
}

func (c *WebSocketChannel) send(msgType int, data []byte) {
	c.mu.Lock()
	if !c.open || c.conn == nil {
		c.mu.Unlock()
		c.cfg.Logger.Debug("dropping send on non-open websocket channel")
		return
	}
	conn := c.conn
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		c.handlers.dispatchError(fmt.Errorf("websocket write deadline failed: %w", err))
		return
	}
	if err := conn.WriteMessage(msgType, data); err != nil {
		c.markNotOpen()
		c.handlers.dispatchError(fmt.Errorf("websocket write failed: %w", err))
	}
}

// OnMessage implements Channel.
func (c *WebSocketChannel) OnMessage(handler func(types.ServerEvent)) {
	c.handlers.setMessage(handler)
}

// OnError implements Channel.
func (c *WebSocketChannel) OnError(handler func(error)) {
	c.handlers.setError(handler)
}

// IsOpen implements Channel.
func (c *WebSocketChannel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open && !c.closed
}

// Close implements Channel. Idempotent.
func (c *WebSocketChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.open = false
	conn := c.conn
	close(c.closeCh)
	c.mu.Unlock()

	c.settleReady(fmt.Errorf("channel closed"))

	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = conn.WriteMessage(websocket.CloseMessage, closeMsg)
	c.writeMu.Unlock()

	return conn.Close()
}
