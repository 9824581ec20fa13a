package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/quic-go/webtransport-go"
	"golang.org/x/sync/errgroup"

	"github.com/AltairaLabs/CaptureKit/types"
)

// datagramSession is the subset of a WebTransport session the low-latency
// channel uses. The concrete webtransport-go session satisfies it through
// realDialer; tests substitute fakes.
type datagramSession interface {
	// OpenUniStream opens an outbound unidirectional byte stream.
	OpenUniStream() (io.WriteCloser, error)

	// AcceptUniStream blocks until the remote side opens a unidirectional
	// stream toward us.
	AcceptUniStream(ctx context.Context) (io.Reader, error)

	// SendDatagram sends one lightweight unordered message.
	SendDatagram(data []byte) error

	// CloseSession tears the session down.
	CloseSession() error
}

// dialer establishes a WebTransport session. Separated from the channel so
// the handshake can be faked in tests.
type dialer interface {
	Dial(ctx context.Context, url string) (datagramSession, error)
}

// realDialer adapts webtransport-go's client to the dialer interface.
type realDialer struct{}

func (realDialer) Dial(ctx context.Context, url string) (datagramSession, error) {
	var d webtransport.Dialer
	resp, sess, err := d.Dial(ctx, url, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("webtransport dial failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return &realSession{sess: sess}, nil
}

// realSession wraps *webtransport.Session behind datagramSession.
type realSession struct {
	sess *webtransport.Session
}

func (s *realSession) OpenUniStream() (io.WriteCloser, error) {
	return s.sess.OpenUniStream()
}

func (s *realSession) AcceptUniStream(ctx context.Context) (io.Reader, error) {
	return s.sess.AcceptUniStream(ctx)
}

func (s *realSession) SendDatagram(data []byte) error {
	return s.sess.SendDatagram(data)
}

func (s *realSession) CloseSession() error {
	return s.sess.CloseWithError(0, "")
}

// WebTransportChannel is the multiplexed low-latency variant. One dedicated
// unidirectional output stream carries the session's concatenated chunk bytes
// for its whole lifetime. Control messages go out as datagrams; inbound
// structured messages arrive either as datagram replies or as
// newline-delimited JSON on server-opened unidirectional streams, which a
// background accept loop demultiplexes.
//
// A control message whose datagram write fails is dropped. Writing control
// bytes onto the chunk stream would interleave them with binary data the
// receiver has no framing to separate.
type WebTransportChannel struct {
	cfg       Config
	sessionID string
	dialer    dialer

	readyOnce sync.Once
	readyCh   chan struct{}
	readyErr  error

	mu          sync.Mutex
	writeMu     sync.Mutex // serializes chunk stream writes
	sess        datagramSession
	chunkStream io.WriteCloser
	open        bool
	closed      bool

	cancelBg context.CancelFunc
	handlers handlerSlots
}

// NewWebTransportChannel constructs the low-latency channel and begins the
// session handshake in the background. Call Ready to await usability.
func NewWebTransportChannel(cfg Config, sessionID string) *WebTransportChannel {
	return newWebTransportChannel(cfg, sessionID, realDialer{})
}

func newWebTransportChannel(cfg Config, sessionID string, d dialer) *WebTransportChannel {
	cfg.defaults()
	bgCtx, cancel := context.WithCancel(context.Background())
	c := &WebTransportChannel{
		cfg:       cfg,
		sessionID: sessionID,
		dialer:    d,
		readyCh:   make(chan struct{}),
		cancelBg:  cancel,
	}
	go c.establish(bgCtx)
	return c
}

// Kind implements Channel.
func (c *WebTransportChannel) Kind() Kind { return KindLowLatency }

func (c *WebTransportChannel) url() string {
	return fmt.Sprintf("%s/upload/%s", c.cfg.LowLatencyBaseURL, c.sessionID)
}

// establish performs the session handshake, opens the session-lifetime chunk
// stream, and starts the inbound accept loop.
func (c *WebTransportChannel) establish(ctx context.Context) {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.LowLatencyReadyTimeout)
	defer cancel()

	c.cfg.Logger.Debug("opening WebTransport session", "url", c.url())

	sess, err := c.dialer.Dial(dialCtx, c.url())
	if err != nil {
		c.settleReady(err)
		return
	}

	stream, err := sess.OpenUniStream()
	if err != nil {
		_ = sess.CloseSession()
		c.settleReady(fmt.Errorf("opening chunk stream failed: %w", err))
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = stream.Close()
		_ = sess.CloseSession()
		c.settleReady(fmt.Errorf("channel closed during handshake"))
		return
	}
	c.sess = sess
	c.chunkStream = stream
	c.open = true
	c.mu.Unlock()

	c.cfg.Logger.Info("WebTransport channel open", "session_id", c.sessionID)
	c.settleReady(nil)

	go c.acceptLoop(ctx, sess)
}

func (c *WebTransportChannel) settleReady(err error) {
	c.readyOnce.Do(func() {
		c.readyErr = err
		close(c.readyCh)
	})
}

// Ready implements Channel.
func (c *WebTransportChannel) Ready(ctx context.Context) error {
	select {
	case <-c.readyCh:
		return c.readyErr
	case <-ctx.Done():
		return fmt.Errorf("webtransport channel not ready: %w", ctx.Err())
	}
}

// acceptLoop continuously accepts server-opened unidirectional streams and
// decodes each as newline-delimited JSON. Control traffic may arrive on
// separate streams from data traffic, so each accepted stream gets its own
// reader goroutine.
func (c *WebTransportChannel) acceptLoop(ctx context.Context, sess datagramSession) {
	g, gctx := errgroup.WithContext(ctx)

	for {
		stream, err := sess.AcceptUniStream(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				c.markNotOpen()
				c.handlers.dispatchError(fmt.Errorf("webtransport accept failed: %w", err))
			}
			break
		}

		g.Go(func() error {
			c.readStream(gctx, stream)
			return nil
		})
	}

	_ = g.Wait()
}

// readStream incrementally decodes one inbound stream. Message framing does
// not align with network reads; the line decoder buffers partial lines across
// read operations.
func (c *WebTransportChannel) readStream(ctx context.Context, stream io.Reader) {
	dec := &lineDecoder{}
	buf := make([]byte, 4096)

	for ctx.Err() == nil {
		n, err := stream.Read(buf)
		if n > 0 {
			for _, line := range dec.Feed(buf[:n]) {
				c.dispatchLine(line)
			}
		}
		if err != nil {
			if rest := dec.Rest(); rest != nil {
				c.dispatchLine(rest)
			}
			return
		}
	}
}

func (c *WebTransportChannel) dispatchLine(line []byte) {
	var evt types.ServerEvent
	if err := json.Unmarshal(line, &evt); err != nil {
		c.cfg.Logger.Debug("dropping malformed inbound line", "error", err)
		return
	}
	c.handlers.dispatchMessage(evt)
}

// SendBinary implements Channel. Chunk bytes are appended to the dedicated
// output stream; delivery failures are reported but never halt the caller.
func (c *WebTransportChannel) SendBinary(data []byte) {
	c.mu.Lock()
	if !c.open || c.chunkStream == nil {
		c.mu.Unlock()
		c.cfg.Logger.Debug("dropping send on non-open webtransport channel")
		return
	}
	stream := c.chunkStream
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := stream.Write(data); err != nil {
		c.markNotOpen()
		c.handlers.dispatchError(fmt.Errorf("chunk stream write failed: %w", err))
	}
}

// SendControl implements Channel. On datagram failure the message is dropped;
// the server-side marker list is reconciled out of band.
func (c *WebTransportChannel) SendControl(msg types.ControlMessage) {
	c.mu.Lock()
	if !c.open || c.sess == nil {
		c.mu.Unlock()
		c.cfg.Logger.Debug("dropping control send on non-open webtransport channel")
		return
	}
	sess := c.sess
	c.mu.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		c.handlers.dispatchError(fmt.Errorf("control message marshal failed: %w", err))
		return
	}

	if err := sess.SendDatagram(data); err != nil {
		c.cfg.Logger.Warn("datagram send failed, dropping control message",
			"action", msg.Action, "error", err)
	}
}

func (c *WebTransportChannel) markNotOpen() {
	c.mu.Lock()
	c.open = false
	c.mu.Unlock()
}

// OnMessage implements Channel.
func (c *WebTransportChannel) OnMessage(handler func(types.ServerEvent)) {
	c.handlers.setMessage(handler)
}

// OnError implements Channel.
func (c *WebTransportChannel) OnError(handler func(error)) {
	c.handlers.setError(handler)
}

// IsOpen implements Channel.
func (c *WebTransportChannel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open && !c.closed
}

// Close implements Channel. Idempotent. Closes the chunk stream first so the
// receiver observes a clean end of data before session teardown.
func (c *WebTransportChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.open = false
	stream := c.chunkStream
	sess := c.sess
	c.mu.Unlock()

	c.cancelBg()
	c.settleReady(fmt.Errorf("channel closed"))

	if stream != nil {
		_ = stream.Close()
	}
	if sess != nil {
		return sess.CloseSession()
	}
	return nil
}
