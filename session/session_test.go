package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/CaptureKit/backend"
	"github.com/AltairaLabs/CaptureKit/codec"
	"github.com/AltairaLabs/CaptureKit/media"
	"github.com/AltairaLabs/CaptureKit/transport"
	"github.com/AltairaLabs/CaptureKit/types"
)

// fakeClock lets tests drive the session's notion of wall-clock time.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeStream struct {
	mu     sync.Mutex
	closed bool
}

func (s *fakeStream) Read(p []byte) (int, error) { return 0, io.EOF }

func (s *fakeStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeSource struct {
	mu       sync.Mutex
	err      error
	acquired []*fakeStream
}

func (s *fakeSource) Acquire(ctx context.Context, c codec.Constraints) (media.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	stream := &fakeStream{}
	s.acquired = append(s.acquired, stream)
	return stream, nil
}

func (s *fakeSource) lastStream() *fakeStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.acquired) == 0 {
		return nil
	}
	return s.acquired[len(s.acquired)-1]
}

// fakeEncoder is a hand-fed encoder: tests push chunks and the session
// pump consumes them.
type fakeEncoder struct {
	chunks   chan types.Chunk
	stopOnce sync.Once
	err      error
}

func newFakeEncoder() *fakeEncoder {
	return &fakeEncoder{chunks: make(chan types.Chunk, 16)}
}

func (e *fakeEncoder) Chunks() <-chan types.Chunk { return e.chunks }
func (e *fakeEncoder) Err() error                 { return e.err }

func (e *fakeEncoder) Stop() {
	e.stopOnce.Do(func() { close(e.chunks) })
}

func (e *fakeEncoder) push(data []byte, last bool) {
	e.chunks <- types.Chunk{Data: data, IsLast: last}
}

type fakeChannel struct {
	mu          sync.Mutex
	kind        transport.Kind
	open        bool
	closed      bool
	binaries    [][]byte
	controls    []types.ControlMessage
	onMessage   func(types.ServerEvent)
	onError     func(error)
	completeAck *types.ServerEvent
}

func (c *fakeChannel) Kind() transport.Kind            { return c.kind }
func (c *fakeChannel) Ready(ctx context.Context) error { return nil }

func (c *fakeChannel) SendBinary(data []byte) {
	c.mu.Lock()
	c.binaries = append(c.binaries, data)
	c.mu.Unlock()
}

func (c *fakeChannel) SendControl(msg types.ControlMessage) {
	c.mu.Lock()
	c.controls = append(c.controls, msg)
	handler := c.onMessage
	ack := c.completeAck
	c.mu.Unlock()

	if msg.Action == types.ActionComplete && ack != nil && handler != nil {
		evt := *ack
		go handler(evt)
	}
}

func (c *fakeChannel) OnMessage(handler func(types.ServerEvent)) {
	c.mu.Lock()
	c.onMessage = handler
	c.mu.Unlock()
}

func (c *fakeChannel) OnError(handler func(error)) {
	c.mu.Lock()
	c.onError = handler
	c.mu.Unlock()
}

func (c *fakeChannel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open && !c.closed
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	c.closed = true
	c.open = false
	c.mu.Unlock()
	return nil
}

func (c *fakeChannel) sentControls() []types.ControlMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.ControlMessage(nil), c.controls...)
}

func (c *fakeChannel) sentBinaries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.binaries)
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeSelector struct {
	ch  transport.Channel
	err error
}

func (s *fakeSelector) Select(ctx context.Context, sessionID string) (transport.Channel, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.ch, nil
}

type fakeBackend struct {
	mu            sync.Mutex
	beginErr      error
	beginHook     func(ctx context.Context)
	uploadErr     error
	completeErr   error
	began         int
	uploads       []int64
	completed     bool
	completeDur   float64
	completeTrim  *float64
	aborted       []string
	markerBatches [][]types.SceneMarker
}

func (b *fakeBackend) Begin(ctx context.Context, title string, sel codec.Selection) (*backend.BeginResponse, error) {
	if b.beginHook != nil {
		b.beginHook(ctx)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.beginErr != nil {
		return nil, b.beginErr
	}
	b.began++
	return &backend.BeginResponse{SessionID: fmt.Sprintf("sess-%d", b.began)}, nil
}

func (b *fakeBackend) UploadChunk(ctx context.Context, sessionID string, seq int64, data []byte) (*backend.ChunkReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.uploadErr != nil {
		return nil, b.uploadErr
	}
	b.uploads = append(b.uploads, seq)
	return &backend.ChunkReceipt{PartNumber: seq}, nil
}

func (b *fakeBackend) Complete(ctx context.Context, sessionID string, duration float64, trimEnd *float64) (*types.VideoDescriptor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.completeErr != nil {
		return nil, b.completeErr
	}
	b.completed = true
	b.completeDur = duration
	b.completeTrim = trimEnd
	return &types.VideoDescriptor{
		ID:       sessionID,
		Status:   types.VideoStatusReady,
		Duration: duration,
		TrimEnd:  trimEnd,
	}, nil
}

func (b *fakeBackend) Abort(ctx context.Context, sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.aborted = append(b.aborted, sessionID)
	return nil
}

func (b *fakeBackend) BatchCreateMarkers(ctx context.Context, videoID string, markers []types.SceneMarker) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.markerBatches = append(b.markerBatches, markers)
	return nil
}

func (b *fakeBackend) uploadedSeqs() []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int64(nil), b.uploads...)
}

// harness bundles one session with its collaborators and a fake clock.
type harness struct {
	session  *CaptureSession
	clock    *fakeClock
	source   *fakeSource
	backend  *fakeBackend
	channel  *fakeChannel
	encoders []*fakeEncoder
	mu       sync.Mutex
}

func newHarness(t *testing.T, mutate func(*Config, *harness)) *harness {
	t.Helper()

	h := &harness{
		clock:   newFakeClock(),
		source:  &fakeSource{},
		backend: &fakeBackend{},
		channel: &fakeChannel{kind: transport.KindLowLatency, open: true},
	}

	cfg := Config{
		Source:   h.source,
		Backend:  h.backend,
		Selector: &fakeSelector{ch: h.channel},
		Support:  codec.SupportFunc(func(string) bool { return true }),
		Encoder: func(stream media.Stream, sel codec.Selection) media.Encoder {
			enc := newFakeEncoder()
			h.mu.Lock()
			h.encoders = append(h.encoders, enc)
			h.mu.Unlock()
			return enc
		},
		GracePeriod:    time.Millisecond,
		AckTimeout:     100 * time.Millisecond,
		ElapsedTick:    5 * time.Millisecond,
		MarkerDebounce: 2 * time.Second,
		PingInterval:   -1,
	}
	if mutate != nil {
		mutate(&cfg, h)
	}

	s, err := New(cfg)
	require.NoError(t, err)
	s.now = h.clock.now
	h.session = s
	return h
}

func (h *harness) encoder() *fakeEncoder {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.encoders) == 0 {
		return nil
	}
	return h.encoders[len(h.encoders)-1]
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{Source: &fakeSource{}, Backend: &fakeBackend{}})
	require.Error(t, err)
}

func TestStartTransitionsToRecording(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.session.Start(context.Background(), "demo"))

	snap := h.session.Snapshot()
	assert.Equal(t, StateRecording, snap.State)
	assert.Equal(t, "sess-1", snap.SessionID)
	assert.Equal(t, transport.KindLowLatency, snap.TransportKind)
	require.NotNil(t, snap.Codec)
	assert.Equal(t, codec.AV1, snap.Codec.Name)
	assert.Empty(t, snap.Err)
}

func TestStartDeviceFailure(t *testing.T) {
	h := newHarness(t, func(cfg *Config, h *harness) {
		h.source.err = errors.New("permission denied")
	})

	err := h.session.Start(context.Background(), "demo")
	require.ErrorIs(t, err, ErrDeviceAcquisition)

	snap := h.session.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, "could not access a capture device", snap.Err)
	assert.Nil(t, snap.Codec)
	assert.Empty(t, snap.TransportKind)
}

func TestStartBackendFailureReleasesStream(t *testing.T) {
	h := newHarness(t, func(cfg *Config, h *harness) {
		h.backend.beginErr = errors.New("503")
	})

	err := h.session.Start(context.Background(), "demo")
	require.ErrorIs(t, err, ErrSessionCreation)
	assert.Equal(t, StateError, h.session.Snapshot().State)
	assert.True(t, h.source.lastStream().isClosed())
}

func TestStartTransportFailureReleasesStream(t *testing.T) {
	h := newHarness(t, func(cfg *Config, h *harness) {
		cfg.Selector = &fakeSelector{err: errors.New("both variants failed")}
	})

	err := h.session.Start(context.Background(), "demo")
	require.ErrorIs(t, err, ErrTransportEstablishment)
	assert.Equal(t, StateError, h.session.Snapshot().State)
	assert.True(t, h.source.lastStream().isClosed())
}

func TestStartWhileRecordingRejected(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.session.Start(context.Background(), "demo"))

	err := h.session.Start(context.Background(), "again")
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, StateRecording, h.session.Snapshot().State)
}

func TestStopOutsideRecordingIsNoOp(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.session.Stop(context.Background()))
	assert.Equal(t, StateIdle, h.session.Snapshot().State)

	h.source.err = errors.New("no device")
	_ = h.session.Start(context.Background(), "demo")
	require.Equal(t, StateError, h.session.Snapshot().State)

	require.NoError(t, h.session.Stop(context.Background()))
	assert.Equal(t, StateError, h.session.Snapshot().State)
}

// Stop while a start is still in flight must not disturb the start.
func TestStopDuringStartIsNoOp(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	h := newHarness(t, func(cfg *Config, h *harness) {
		h.backend.beginHook = func(ctx context.Context) {
			close(entered)
			<-release
		}
	})

	startErr := make(chan error, 1)
	go func() { startErr <- h.session.Start(context.Background(), "demo") }()
	<-entered
	snap := h.session.Snapshot()
	require.Equal(t, StateRequesting, snap.State)
	assert.Nil(t, snap.Codec)
	assert.Empty(t, snap.TransportKind)

	require.NoError(t, h.session.Stop(context.Background()))
	assert.Equal(t, StateRequesting, h.session.Snapshot().State)

	close(release)
	require.NoError(t, <-startErr)
	assert.Equal(t, StateRecording, h.session.Snapshot().State)
}

func TestStopAfterCompleteIsNoOp(t *testing.T) {
	h := newHarness(t, func(cfg *Config, h *harness) {
		h.channel.completeAck = &types.ServerEvent{
			Event:  types.EventComplete,
			Status: types.VideoStatusReady,
		}
	})

	require.NoError(t, h.session.Start(context.Background(), "demo"))
	require.NoError(t, h.session.Stop(context.Background()))
	require.Equal(t, StateComplete, h.session.Snapshot().State)
	controls := len(h.channel.sentControls())

	require.NoError(t, h.session.Stop(context.Background()))
	snap := h.session.Snapshot()
	assert.Equal(t, StateComplete, snap.State)
	assert.NotNil(t, snap.Result)
	assert.Len(t, h.channel.sentControls(), controls)
}

// A request-scoped start context must stop mattering once recording
// begins; only Cancel and Stop may interrupt a running session.
func TestStartContextExpiryLeavesRecordingRunning(t *testing.T) {
	h := newHarness(t, func(cfg *Config, h *harness) {
		h.channel.open = false
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.session.Start(ctx, "demo"))
	cancel()

	h.encoder().push([]byte("aaa"), false)
	waitFor(t, func() bool { return len(h.backend.uploadedSeqs()) == 1 },
		"fallback upload after start context expiry")
	assert.Equal(t, StateRecording, h.session.Snapshot().State)

	require.NoError(t, h.session.Stop(context.Background()))
	assert.Equal(t, StateComplete, h.session.Snapshot().State)
}

// Happy path over the low-latency channel: chunks travel the channel,
// the completion handshake yields the descriptor, and Smart-Stop trims
// the tail.
func TestStopOverChannelCompletes(t *testing.T) {
	h := newHarness(t, func(cfg *Config, h *harness) {
		h.channel.completeAck = &types.ServerEvent{
			Event:       types.EventComplete,
			Status:      types.VideoStatusReady,
			PlaybackURL: "x",
		}
	})

	require.NoError(t, h.session.Start(context.Background(), "demo"))

	h.encoder().push([]byte("aaa"), false)
	h.encoder().push([]byte("bbb"), false)
	waitFor(t, func() bool { return h.channel.sentBinaries() == 2 }, "chunks on channel")

	h.clock.advance(5 * time.Second)
	require.NoError(t, h.session.Stop(context.Background()))

	snap := h.session.Snapshot()
	require.Equal(t, StateComplete, snap.State)
	require.NotNil(t, snap.Result)
	assert.Equal(t, "sess-1", snap.Result.ID)
	assert.Equal(t, types.VideoStatusReady, snap.Result.Status)
	assert.Equal(t, "x", snap.Result.PlaybackURL)
	assert.Equal(t, 5.0, snap.Result.Duration)
	require.NotNil(t, snap.Result.TrimEnd)
	assert.Equal(t, 3.5, *snap.Result.TrimEnd)

	// The completion control message carried the same numbers.
	controls := h.channel.sentControls()
	require.NotEmpty(t, controls)
	last := controls[len(controls)-1]
	assert.Equal(t, types.ActionComplete, last.Action)
	assert.Equal(t, 5.0, last.Duration)
	require.NotNil(t, last.TrimEnd)
	assert.Equal(t, 3.5, *last.TrimEnd)

	// Stop released the transport.
	assert.True(t, h.channel.isClosed())
	assert.True(t, h.source.lastStream().isClosed())
}

func TestStopAckTimeoutFails(t *testing.T) {
	h := newHarness(t, func(cfg *Config, h *harness) {
		cfg.AckTimeout = 30 * time.Millisecond
		// No completeAck: the server never answers.
	})

	require.NoError(t, h.session.Start(context.Background(), "demo"))
	err := h.session.Stop(context.Background())
	require.ErrorIs(t, err, ErrCompletion)

	snap := h.session.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, "timed out waiting for completion acknowledgment", snap.Err)
	assert.Nil(t, snap.Codec)
	assert.Empty(t, snap.TransportKind)
	assert.True(t, h.channel.isClosed())
}

func TestStopOverRESTWhenChannelClosed(t *testing.T) {
	h := newHarness(t, func(cfg *Config, h *harness) {
		h.channel.open = false
	})

	require.NoError(t, h.session.Start(context.Background(), "demo"))

	// With the channel closed, markers stay local for reconciliation.
	require.NoError(t, h.session.AddMarker("chapter one"))

	h.encoder().push([]byte("aaa"), false)
	waitFor(t, func() bool { return len(h.backend.uploadedSeqs()) == 1 }, "REST chunk fallback")

	h.clock.advance(10 * time.Second)
	require.NoError(t, h.session.Stop(context.Background()))

	snap := h.session.Snapshot()
	require.Equal(t, StateComplete, snap.State)
	assert.True(t, h.backend.completed)
	assert.Equal(t, 10.0, h.backend.completeDur)
	require.NotNil(t, h.backend.completeTrim)
	assert.Equal(t, 8.5, *h.backend.completeTrim)

	require.Len(t, h.backend.markerBatches, 1)
	require.Len(t, h.backend.markerBatches[0], 1)
	assert.Equal(t, "chapter one", h.backend.markerBatches[0][0].Label)
}

func TestSmartStopClampsToZero(t *testing.T) {
	h := newHarness(t, func(cfg *Config, h *harness) {
		h.channel.open = false
	})

	require.NoError(t, h.session.Start(context.Background(), "demo"))
	h.clock.advance(time.Second)
	require.NoError(t, h.session.Stop(context.Background()))

	require.NotNil(t, h.backend.completeTrim)
	assert.Equal(t, 0.0, *h.backend.completeTrim)
}

func TestSmartStopDisabled(t *testing.T) {
	h := newHarness(t, func(cfg *Config, h *harness) {
		cfg.DisableSmartStop = true
		h.channel.open = false
	})

	require.NoError(t, h.session.Start(context.Background(), "demo"))
	h.clock.advance(10 * time.Second)
	require.NoError(t, h.session.Stop(context.Background()))

	assert.Nil(t, h.backend.completeTrim)
	assert.Equal(t, 10.0, h.backend.completeDur)
}

func TestCancelDuringStartEndsIdle(t *testing.T) {
	beginEntered := make(chan struct{})
	h := newHarness(t, func(cfg *Config, h *harness) {
		h.backend.beginHook = func(ctx context.Context) {
			close(beginEntered)
			<-ctx.Done()
		}
	})

	startDone := make(chan error, 1)
	go func() {
		startDone <- h.session.Start(context.Background(), "demo")
	}()

	<-beginEntered
	h.session.Cancel()

	err := <-startDone
	require.Error(t, err)

	snap := h.session.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.Err)
	waitFor(t, func() bool { return h.source.lastStream().isClosed() }, "stream released")
}

func TestCancelWhileRecording(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.session.Start(context.Background(), "demo"))
	require.NoError(t, h.session.AddMarker("keep me not"))

	h.session.Cancel()

	snap := h.session.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.SessionID)
	assert.Empty(t, snap.Markers)
	assert.Zero(t, snap.ElapsedSeconds)
	assert.True(t, h.channel.isClosed())
	assert.True(t, h.source.lastStream().isClosed())
	assert.Equal(t, []string{"sess-1"}, h.backend.aborted)
}

func TestCancelWhenIdleIsNoOp(t *testing.T) {
	h := newHarness(t, nil)
	h.session.Cancel()
	assert.Equal(t, StateIdle, h.session.Snapshot().State)
	assert.Empty(t, h.backend.aborted)
}

func TestSequenceNumbersResetPerStart(t *testing.T) {
	h := newHarness(t, func(cfg *Config, h *harness) {
		h.channel.open = false
	})

	require.NoError(t, h.session.Start(context.Background(), "first"))
	h.encoder().push([]byte("a"), false)
	h.encoder().push([]byte("b"), false)
	waitFor(t, func() bool { return len(h.backend.uploadedSeqs()) == 2 }, "first session chunks")
	require.NoError(t, h.session.Stop(context.Background()))

	require.NoError(t, h.session.Start(context.Background(), "second"))
	h.encoder().push([]byte("c"), false)
	waitFor(t, func() bool { return len(h.backend.uploadedSeqs()) == 3 }, "second session chunk")

	assert.Equal(t, []int64{1, 2, 1}, h.backend.uploadedSeqs())
}

func TestChunkFallbackFailureKeepsRecording(t *testing.T) {
	h := newHarness(t, func(cfg *Config, h *harness) {
		h.channel.open = false
		h.backend.uploadErr = errors.New("500")
	})

	require.NoError(t, h.session.Start(context.Background(), "demo"))
	h.encoder().push([]byte("a"), false)

	// Delivery failures are observational; capture keeps going.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateRecording, h.session.Snapshot().State)
}

func TestDeviceFailureMidRecording(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.session.Start(context.Background(), "demo"))

	enc := h.encoder()
	enc.err = errors.New("device unplugged")
	enc.Stop()

	waitFor(t, func() bool { return h.session.Snapshot().State == StateError }, "error state")
	snap := h.session.Snapshot()
	assert.Equal(t, "the capture device stopped delivering media", snap.Err)
	assert.True(t, h.source.lastStream().isClosed())
}

func TestMarkerDebounce(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.session.Start(context.Background(), "demo"))

	h.session.SignalFocusGained() // accepted, consumes the window
	h.clock.advance(500 * time.Millisecond)
	h.session.SignalVisibilityVisible() // inside the shared window
	h.clock.advance(100 * time.Millisecond)
	require.NoError(t, h.session.AddMarker("manual")) // manual bypasses the gate
	h.clock.advance(1900 * time.Millisecond)
	h.session.SignalFocusGained() // window elapsed

	snap := h.session.Snapshot()
	require.Len(t, snap.Markers, 3)
	assert.Equal(t, types.MarkerSourceFocusSwitch, snap.Markers[0].Source)
	assert.Equal(t, types.DefaultMarkerLabel, snap.Markers[0].Label)
	assert.Equal(t, 0.0, snap.Markers[0].Timestamp)
	assert.Equal(t, types.MarkerSourceManual, snap.Markers[1].Source)
	assert.Equal(t, "manual", snap.Markers[1].Label)
	assert.Equal(t, types.MarkerSourceFocusSwitch, snap.Markers[2].Source)
	assert.Equal(t, 2.5, snap.Markers[2].Timestamp)
}

func TestMarkersRequireRecording(t *testing.T) {
	h := newHarness(t, nil)

	err := h.session.AddMarker("too early")
	require.ErrorIs(t, err, ErrInvalidState)

	h.session.SignalFocusGained()
	assert.Empty(t, h.session.Snapshot().Markers)
}

func TestMarkersSentOverOpenChannel(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.session.Start(context.Background(), "demo"))
	h.clock.advance(3 * time.Second)

	require.NoError(t, h.session.AddMarker("chapter"))

	controls := h.channel.sentControls()
	require.Len(t, controls, 1)
	assert.Equal(t, types.ActionMarker, controls[0].Action)
	assert.Equal(t, "chapter", controls[0].Label)
	assert.Equal(t, types.MarkerSourceManual, controls[0].Source)
	assert.Equal(t, 3.0, controls[0].Timestamp)
}

func TestFallbackTransportKindReported(t *testing.T) {
	h := newHarness(t, func(cfg *Config, h *harness) {
		h.channel.kind = transport.KindFallback
	})

	require.NoError(t, h.session.Start(context.Background(), "demo"))
	assert.Equal(t, transport.KindFallback, h.session.Snapshot().TransportKind)
}

func TestServerEventHandlerSeesAcks(t *testing.T) {
	var mu sync.Mutex
	var seen []types.ServerEvent
	h := newHarness(t, func(cfg *Config, h *harness) {
		cfg.ServerEventHandler = func(evt types.ServerEvent) {
			mu.Lock()
			seen = append(seen, evt)
			mu.Unlock()
		}
	})

	require.NoError(t, h.session.Start(context.Background(), "demo"))

	h.channel.mu.Lock()
	handler := h.channel.onMessage
	h.channel.mu.Unlock()
	require.NotNil(t, handler)
	handler(types.ServerEvent{Event: types.EventChunkAck, PartNumber: 1})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	assert.Equal(t, int64(1), seen[0].PartNumber)
}

// End-to-end over the real REST client against a mock upload server:
// the channel never opens, so every chunk and the completion travel the
// REST fallback.
func TestSessionAgainstMockUploadServer(t *testing.T) {
	var mu sync.Mutex
	var seqs []int64
	var beginBody map[string]any
	var completeBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/videos":
			mu.Lock()
			json.NewDecoder(r.Body).Decode(&beginBody)
			mu.Unlock()
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{"session_id": "vid-9"})
		case r.Method == http.MethodPost && r.URL.Path == "/videos/vid-9/chunks":
			var seq int64
			fmt.Sscanf(r.URL.Query().Get("seq"), "%d", &seq)
			mu.Lock()
			seqs = append(seqs, seq)
			mu.Unlock()
			json.NewEncoder(w).Encode(map[string]any{"part_number": seq, "etag": "e"})
		case r.Method == http.MethodPost && r.URL.Path == "/videos/vid-9/complete":
			mu.Lock()
			json.NewDecoder(r.Body).Decode(&completeBody)
			mu.Unlock()
			json.NewEncoder(w).Encode(map[string]any{
				"id": "vid-9", "status": "ready", "playback_url": "https://cdn/vid-9",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := backend.NewClient(backend.Config{BaseURL: srv.URL})

	h := newHarness(t, func(cfg *Config, h *harness) {
		cfg.Backend = client
		h.channel.open = false
	})

	require.NoError(t, h.session.Start(context.Background(), "e2e"))
	h.encoder().push([]byte("one"), false)
	h.encoder().push([]byte("two"), false)
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seqs) == 2
	}, "chunks reach the server")

	h.clock.advance(7 * time.Second)
	require.NoError(t, h.session.Stop(context.Background()))

	snap := h.session.Snapshot()
	require.Equal(t, StateComplete, snap.State)
	require.NotNil(t, snap.Result)
	assert.Equal(t, "https://cdn/vid-9", snap.Result.PlaybackURL)

	mu.Lock()
	defer mu.Unlock()
	// The registration carries the short codec name, matching the
	// descriptor the session assembles at completion.
	assert.Equal(t, "av1", beginBody["codec"])
	assert.Equal(t, []int64{1, 2}, seqs)
	assert.Equal(t, 7.0, completeBody["duration"])
	assert.Equal(t, 5.5, completeBody["trim_end"])
}
