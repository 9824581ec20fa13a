// Package session implements the capture session state machine: it
// owns codec negotiation, device acquisition, transport selection, the
// chunk pump, scene markers, Smart-Stop, and the completion handshake.
// The session is the sole source of truth the UI layer observes, via
// Snapshot.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AltairaLabs/CaptureKit/backend"
	"github.com/AltairaLabs/CaptureKit/codec"
	"github.com/AltairaLabs/CaptureKit/events"
	"github.com/AltairaLabs/CaptureKit/logger"
	"github.com/AltairaLabs/CaptureKit/media"
	"github.com/AltairaLabs/CaptureKit/transport"
	"github.com/AltairaLabs/CaptureKit/types"
)

// Default timing parameters.
const (
	// DefaultGracePeriod is the bounded wait after the final chunk is
	// flushed, before the completion handshake.
	DefaultGracePeriod = 500 * time.Millisecond

	// DefaultAckTimeout bounds the wait for the completion
	// acknowledgment over the channel.
	DefaultAckTimeout = 15 * time.Second

	// DefaultElapsedTick is the resolution of the wall-clock elapsed
	// recomputation.
	DefaultElapsedTick = 100 * time.Millisecond

	// DefaultMarkerDebounce is the shared window for auto-detected
	// scene markers.
	DefaultMarkerDebounce = 2 * time.Second

	// DefaultPingInterval paces keepalive pings on the open channel.
	DefaultPingInterval = 30 * time.Second

	// SmartStopTrim is the tail cut from the raw duration, in seconds,
	// covering the dead time spent reaching for the stop control.
	SmartStopTrim = 1.5

	abortTimeout = 5 * time.Second
)

// Backend is the subset of the REST client the session drives. It is
// satisfied by *backend.Client.
type Backend interface {
	Begin(ctx context.Context, title string, sel codec.Selection) (*backend.BeginResponse, error)
	UploadChunk(ctx context.Context, sessionID string, seq int64, data []byte) (*backend.ChunkReceipt, error)
	Complete(ctx context.Context, sessionID string, duration float64, trimEnd *float64) (*types.VideoDescriptor, error)
	Abort(ctx context.Context, sessionID string) error
	BatchCreateMarkers(ctx context.Context, videoID string, markers []types.SceneMarker) error
}

// ChannelSelector picks the transport variant for a session. Satisfied
// by *transport.Selector.
type ChannelSelector interface {
	Select(ctx context.Context, sessionID string) (transport.Channel, error)
}

// EncoderFactory builds the encoder that slices a stream into chunks.
type EncoderFactory func(stream media.Stream, sel codec.Selection) media.Encoder

// Config wires a CaptureSession's collaborators.
type Config struct {
	// Source acquires the primary device stream. Required.
	Source media.Source

	// OverlaySource acquires the optional secondary (face overlay)
	// stream. Its failure is never fatal to the session.
	OverlaySource media.Source

	// Backend is the REST collaborator. Required.
	Backend Backend

	// Selector constructs the transport channel. Required.
	Selector ChannelSelector

	// Support is the codec capability probe. Nil means the capability
	// cannot be queried and negotiation returns the last resort.
	Support codec.Support

	// Bus receives capture lifecycle events. Optional.
	Bus *events.EventBus

	// Encoder overrides the default interval chunker. Optional.
	Encoder EncoderFactory

	// ServerEventHandler receives every inbound structured server event
	// (chunk acks included) so the embedding application can audit
	// delivery gaps. Optional.
	ServerEventHandler func(types.ServerEvent)

	// ChunkInterval is the encoder flush interval.
	// Default: media.DefaultChunkInterval.
	ChunkInterval time.Duration

	// GracePeriod, AckTimeout, ElapsedTick, MarkerDebounce and
	// PingInterval default to the package constants. PingInterval < 0
	// disables keepalive pings.
	GracePeriod    time.Duration
	AckTimeout     time.Duration
	ElapsedTick    time.Duration
	MarkerDebounce time.Duration
	PingInterval   time.Duration

	// DisableSmartStop leaves the raw duration untrimmed on stop.
	DisableSmartStop bool
}

func (c *Config) defaults() {
	if c.ChunkInterval <= 0 {
		c.ChunkInterval = media.DefaultChunkInterval
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = DefaultGracePeriod
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = DefaultAckTimeout
	}
	if c.ElapsedTick <= 0 {
		c.ElapsedTick = DefaultElapsedTick
	}
	if c.MarkerDebounce <= 0 {
		c.MarkerDebounce = DefaultMarkerDebounce
	}
	if c.PingInterval == 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.Encoder == nil {
		interval := c.ChunkInterval
		c.Encoder = func(stream media.Stream, sel codec.Selection) media.Encoder {
			return media.NewChunker(stream, media.ChunkerConfig{
				Interval: interval,
				Metadata: map[string]string{"mime_type": sel.MIMEType},
			})
		}
	}
}

// CaptureSession is the capture state machine. All exported methods are
// safe for concurrent use; state transitions are serialized under one
// lock and blocking work happens outside it.
type CaptureSession struct {
	cfg Config
	now func() time.Time

	mu             sync.Mutex
	state          State
	errMsg         string
	sessionID      string
	title          string
	sel            *codec.Selection
	kind           transport.Kind
	markers        []types.SceneMarker
	elapsed        float64
	startInstant   time.Time
	seq            int64
	result         *types.VideoDescriptor
	overlayEnabled bool

	resources *resourceRegistry
	channel   transport.Channel
	encoder   media.Encoder
	emitter   *events.Emitter
	gate      *markerGate
	pumpDone  chan struct{}
	runCancel context.CancelFunc

	completeMu sync.Mutex
	completeCh chan types.ServerEvent
}

// New creates an idle capture session.
func New(cfg Config) (*CaptureSession, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("session: Source is required")
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("session: Backend is required")
	}
	if cfg.Selector == nil {
		return nil, fmt.Errorf("session: Selector is required")
	}
	cfg.defaults()
	return &CaptureSession{
		cfg:     cfg,
		now:     time.Now,
		state:   StateIdle,
		emitter: events.NewEmitter(cfg.Bus, ""),
	}, nil
}

// EnableOverlay toggles acquisition of the secondary overlay stream.
// Takes effect at the next Start.
func (s *CaptureSession) EnableOverlay(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlayEnabled = enabled
}

// Snapshot returns the current state view for the UI layer.
func (s *CaptureSession) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := s.elapsed
	if s.state == StateRecording || s.state == StateStopping {
		elapsed = s.now().Sub(s.startInstant).Seconds()
	}

	snap := Snapshot{
		State:          s.state,
		Err:            s.errMsg,
		ElapsedSeconds: elapsed,
		SessionID:      s.sessionID,
		TransportKind:  s.kind,
		Markers:        append([]types.SceneMarker(nil), s.markers...),
		Result:         s.result,
	}
	if s.sel != nil {
		sel := *s.sel
		snap.Codec = &sel
	}
	return snap
}

// Start runs the start protocol: negotiate codec, acquire streams,
// begin the backend session, select a transport, and begin encoding.
// Legal from idle, complete, and error; each Start re-arms the session
// with fresh markers, error, elapsed time, and chunk counter. On
// failure the session lands in the error state with everything
// acquired so far released, and the failure is also returned.
func (s *CaptureSession) Start(ctx context.Context, title string) error {
	s.mu.Lock()
	switch s.state {
	case StateIdle, StateComplete, StateError:
	default:
		state := s.state
		s.mu.Unlock()
		return newError(ErrInvalidState, nil, fmt.Sprintf("start is not allowed while %s", state))
	}

	s.markers = nil
	s.errMsg = ""
	s.elapsed = 0
	s.seq = 0
	s.result = nil
	s.sessionID = ""
	s.kind = ""
	s.sel = nil
	s.title = title
	s.resources = newResourceRegistry()
	s.gate = newMarkerGate(s.cfg.MarkerDebounce)
	s.emitter = events.NewEmitter(s.cfg.Bus, "")

	runCtx, runCancel := context.WithCancel(context.Background())
	s.runCancel = runCancel
	res := s.resources
	overlay := s.overlayEnabled
	s.setStateLocked(StateRequesting)
	s.mu.Unlock()

	// The caller's context can abort the start steps, but it must not
	// outlive them: once recording begins, only Cancel and Stop may
	// interrupt the run.
	startDone := make(chan struct{})
	defer close(startDone)
	go func() {
		select {
		case <-ctx.Done():
			select {
			case <-startDone:
				// Establishment already finished; the run owns its
				// own lifetime now.
			default:
				runCancel()
			}
		case <-startDone:
		case <-runCtx.Done():
		}
	}()

	if err := s.establish(runCtx, title, overlay, res); err != nil {
		res.releaseAll()
		runCancel()

		s.mu.Lock()
		// Cancel may have already forced idle; leave that alone.
		if s.state == StateRequesting {
			s.errMsg = userMessage(err)
			s.setStateLocked(StateError)
			s.mu.Unlock()
			s.emitter.SessionFailed(err, "start")
		} else {
			s.mu.Unlock()
		}
		return err
	}
	return nil
}

// establish performs the sequential acquisition steps of Start.
func (s *CaptureSession) establish(ctx context.Context, title string, overlay bool, res *resourceRegistry) error {
	sel := codec.Negotiate(s.cfg.Support)
	constraints := codec.RecommendedConstraints(sel.Name)

	stream, err := s.cfg.Source.Acquire(ctx, constraints)
	if err != nil {
		return newError(ErrDeviceAcquisition, err, "could not access a capture device")
	}
	res.add(func() { stream.Close() })

	if overlay && s.cfg.OverlaySource != nil {
		ov, ovErr := s.cfg.OverlaySource.Acquire(ctx, constraints)
		if ovErr != nil {
			logger.Warn("session: overlay stream unavailable, continuing without it", "error", ovErr)
		} else {
			res.add(func() { ov.Close() })
		}
	}

	begin, err := s.cfg.Backend.Begin(ctx, title, sel)
	if err != nil {
		return newError(ErrSessionCreation, err, "could not start an upload session")
	}
	s.mu.Lock()
	s.sessionID = begin.SessionID
	s.emitter = events.NewEmitter(s.cfg.Bus, begin.SessionID)
	s.mu.Unlock()

	ch, err := s.cfg.Selector.Select(ctx, begin.SessionID)
	if err != nil {
		return newError(ErrTransportEstablishment, err, "could not establish an upload connection")
	}
	res.add(func() { ch.Close() })
	ch.OnMessage(s.handleServerEvent)
	ch.OnError(s.handleTransportError)

	enc := s.cfg.Encoder(stream, sel)
	res.add(enc.Stop)

	pumpDone := make(chan struct{})

	s.mu.Lock()
	if s.state != StateRequesting {
		// Canceled while establishing; the registry already released
		// everything registered above.
		s.mu.Unlock()
		close(pumpDone)
		if err := ctx.Err(); err != nil {
			return err
		}
		return context.Canceled
	}
	s.channel = ch
	s.encoder = enc
	s.sel = &sel
	s.kind = ch.Kind()
	s.startInstant = s.now()
	s.pumpDone = pumpDone
	sessionID := s.sessionID
	s.setStateLocked(StateRecording)
	s.mu.Unlock()

	go s.pump(ctx, enc, ch, sessionID, pumpDone)
	go s.trackElapsed(ctx)
	if s.cfg.PingInterval > 0 {
		go s.keepAlive(ctx, ch)
	}

	s.emitter.TransportSelected(string(ch.Kind()), ch.Kind() == transport.KindFallback)
	s.emitter.SessionStarted(title, sel.MIMEType, string(ch.Kind()))
	logger.Info("session: recording started",
		"session_id", sessionID, "codec", sel.MIMEType, "transport", ch.Kind())
	return nil
}

// pump delivers encoder chunks in emission order: over the channel when
// open, else through the per-chunk REST fallback keyed by sequence
// number. Delivery is best-effort and at-most-once; failures are
// reported, never retried, and never halt encoding.
func (s *CaptureSession) pump(ctx context.Context, enc media.Encoder, ch transport.Channel, sessionID string, done chan struct{}) {
	defer close(done)

	for chunk := range enc.Chunks() {
		s.mu.Lock()
		s.seq++
		seq := s.seq
		emitter := s.emitter
		s.mu.Unlock()

		if ch.IsOpen() {
			ch.SendBinary(chunk.Data)
			emitter.ChunkSent(seq, len(chunk.Data), string(ch.Kind()), chunk.IsLast)
			continue
		}

		if _, err := s.cfg.Backend.UploadChunk(ctx, sessionID, seq, chunk.Data); err != nil {
			logger.Warn("session: chunk fallback upload failed", "seq", seq, "error", err)
			emitter.TransportError("rest", newError(ErrChunkDelivery, err, "chunk upload failed"))
			continue
		}
		emitter.ChunkFallback(seq, len(chunk.Data), chunk.IsLast)
	}

	if err := enc.Err(); err != nil {
		s.failRecording(newError(ErrDeviceAcquisition, err, "the capture device stopped delivering media"))
	}
}

// failRecording handles a low-level device failure mid-recording.
func (s *CaptureSession) failRecording(err error) {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return
	}
	s.errMsg = userMessage(err)
	s.sel = nil
	s.kind = ""
	res := s.resources
	runCancel := s.runCancel
	s.setStateLocked(StateError)
	s.mu.Unlock()

	runCancel()
	res.releaseAll()
	s.emitter.SessionFailed(err, "recording")
}

// trackElapsed recomputes elapsed time from the wall clock so duration
// stays correct under timer throttling.
func (s *CaptureSession) trackElapsed(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ElapsedTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.state == StateRecording || s.state == StateStopping {
				s.elapsed = s.now().Sub(s.startInstant).Seconds()
			}
			s.mu.Unlock()
		}
	}
}

func (s *CaptureSession) keepAlive(ctx context.Context, ch transport.Channel) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ch.IsOpen() {
				ch.SendControl(types.ControlMessage{Action: types.ActionPing})
			}
		}
	}
}

// Stop runs the stop protocol. No-op outside recording: no transition
// occurs and no side effect is observable.
func (s *CaptureSession) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return nil
	}

	raw := s.now().Sub(s.startInstant).Seconds()
	s.elapsed = raw
	var trimEnd *float64
	if !s.cfg.DisableSmartStop {
		v := raw - SmartStopTrim
		if v < 0 {
			v = 0
		}
		trimEnd = &v
	}
	s.setStateLocked(StateStopping)
	enc := s.encoder
	ch := s.channel
	sessionID := s.sessionID
	pumpDone := s.pumpDone
	res := s.resources
	runCancel := s.runCancel
	title := s.title
	sel := *s.sel
	markers := append([]types.SceneMarker(nil), s.markers...)
	s.mu.Unlock()

	// Streams, transport, and background goroutines are released on
	// every path below.
	defer runCancel()
	defer res.releaseAll()

	// Finalize the encoder; the final chunk travels the normal delivery
	// path, then the grace period gives it time on the wire.
	enc.Stop()
	select {
	case <-pumpDone:
	case <-ctx.Done():
	}
	time.Sleep(s.cfg.GracePeriod)

	var result *types.VideoDescriptor
	var err error
	if ch.IsOpen() {
		result, err = s.completeOverChannel(ctx, ch, sessionID, title, sel, raw, trimEnd)
	} else {
		result, err = s.completeOverREST(ctx, sessionID, raw, trimEnd, markers)
	}

	s.mu.Lock()
	if s.state != StateStopping {
		// Canceled during stop; cancel owns the outcome.
		s.mu.Unlock()
		return err
	}
	if err != nil {
		s.errMsg = userMessage(err)
		s.sel = nil
		s.kind = ""
		s.setStateLocked(StateError)
		s.mu.Unlock()
		s.emitter.SessionFailed(err, "stop")
		return err
	}
	s.result = result
	chunkCount := s.seq
	s.setStateLocked(StateComplete)
	s.mu.Unlock()

	s.emitter.SessionCompleted(time.Duration(raw*float64(time.Second)), trimEnd, chunkCount, result.PlaybackURL)
	logger.Info("session: recording completed",
		"session_id", sessionID, "duration", raw, "chunks", chunkCount)
	return nil
}

// completeOverChannel sends the completion control message and waits
// for the acknowledgment, assembling the descriptor from the ack plus
// locally known fields.
func (s *CaptureSession) completeOverChannel(ctx context.Context, ch transport.Channel, sessionID, title string, sel codec.Selection, raw float64, trimEnd *float64) (*types.VideoDescriptor, error) {
	ackCh := make(chan types.ServerEvent, 1)
	s.completeMu.Lock()
	s.completeCh = ackCh
	s.completeMu.Unlock()
	defer func() {
		s.completeMu.Lock()
		s.completeCh = nil
		s.completeMu.Unlock()
	}()

	ch.SendControl(types.ControlMessage{
		Action:   types.ActionComplete,
		Duration: raw,
		TrimEnd:  trimEnd,
	})

	select {
	case evt := <-ackCh:
		if evt.Error != "" {
			return nil, newError(ErrCompletion, errors.New(evt.Error), "the server rejected completion")
		}
		return &types.VideoDescriptor{
			ID:          sessionID,
			Title:       title,
			Status:      evt.Status,
			Duration:    raw,
			Codec:       string(sel.Name),
			TrimEnd:     trimEnd,
			PlaybackURL: evt.PlaybackURL,
		}, nil
	case <-time.After(s.cfg.AckTimeout):
		return nil, newError(ErrCompletion, nil, "timed out waiting for completion acknowledgment")
	case <-ctx.Done():
		return nil, newError(ErrCompletion, ctx.Err(), "stop interrupted")
	}
}

// completeOverREST finalizes through the REST collaborator when no
// channel is open, then reconciles locally retained markers.
func (s *CaptureSession) completeOverREST(ctx context.Context, sessionID string, raw float64, trimEnd *float64, markers []types.SceneMarker) (*types.VideoDescriptor, error) {
	result, err := s.cfg.Backend.Complete(ctx, sessionID, raw, trimEnd)
	if err != nil {
		return nil, newError(ErrCompletion, err, "could not finalize the session")
	}
	if len(markers) > 0 {
		if mErr := s.cfg.Backend.BatchCreateMarkers(ctx, sessionID, markers); mErr != nil {
			logger.Warn("session: marker reconciliation failed", "session_id", sessionID, "error", mErr)
		}
	}
	return result, nil
}

// Cancel forces idle from any non-idle state: release every resource,
// best-effort abort to the backend (failure swallowed), reset markers,
// elapsed time, and session identifier. Cancel always succeeds locally.
func (s *CaptureSession) Cancel() {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	prev := s.state
	sessionID := s.sessionID
	res := s.resources
	runCancel := s.runCancel
	emitter := s.emitter

	s.markers = nil
	s.errMsg = ""
	s.elapsed = 0
	s.seq = 0
	s.sessionID = ""
	s.result = nil
	s.kind = ""
	s.sel = nil
	s.channel = nil
	s.encoder = nil
	s.setStateLocked(StateIdle)
	s.mu.Unlock()

	if runCancel != nil {
		runCancel()
	}
	if res != nil {
		res.releaseAll()
	}

	if sessionID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), abortTimeout)
		defer cancel()
		if err := s.cfg.Backend.Abort(ctx, sessionID); err != nil {
			// Swallowed: cancellation must always succeed locally.
			logger.Debug("session: abort notification failed", "session_id", sessionID, "error", err)
		}
	}

	emitter.SessionCanceled(string(prev))
	logger.Info("session: canceled", "session_id", sessionID, "from", prev)
}

// AddMarker records a manual scene marker. Manual markers bypass the
// debounce window: explicit user action is never rate-limited. Only
// legal while recording.
func (s *CaptureSession) AddMarker(label string) error {
	if label == "" {
		label = types.DefaultMarkerLabel
	}

	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return newError(ErrInvalidState, nil, "markers require an active recording")
	}
	marker, ch, emitter := s.appendMarkerLocked(label, types.MarkerSourceManual)
	s.mu.Unlock()

	s.deliverMarker(marker, ch, emitter)
	return nil
}

// SignalFocusGained feeds a platform focus-gain signal into the marker
// detector. Ignored outside recording.
func (s *CaptureSession) SignalFocusGained() {
	s.autoMarker(types.MarkerSourceFocusSwitch)
}

// SignalVisibilityVisible feeds a visibility-becomes-visible signal
// into the marker detector. Ignored outside recording.
func (s *CaptureSession) SignalVisibilityVisible() {
	s.autoMarker(types.MarkerSourceVisibility)
}

func (s *CaptureSession) autoMarker(source types.MarkerSource) {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return
	}
	now := s.now()
	if !s.gate.allow(now) {
		elapsed := now.Sub(s.startInstant).Seconds()
		emitter := s.emitter
		s.mu.Unlock()
		emitter.MarkerSuppressed(elapsed, source)
		return
	}
	marker, ch, emitter := s.appendMarkerLocked(types.DefaultMarkerLabel, source)
	s.mu.Unlock()

	s.deliverMarker(marker, ch, emitter)
}

// appendMarkerLocked appends a marker in detection order. Caller holds
// the lock and has verified the recording state.
func (s *CaptureSession) appendMarkerLocked(label string, source types.MarkerSource) (types.SceneMarker, transport.Channel, *events.Emitter) {
	marker := types.SceneMarker{
		Timestamp: s.now().Sub(s.startInstant).Seconds(),
		Label:     label,
		Source:    source,
	}
	s.markers = append(s.markers, marker)
	return marker, s.channel, s.emitter
}

// deliverMarker pushes the marker over the channel when open. A closed
// channel keeps the marker locally; the marker batch endpoint
// reconciles on completion.
func (s *CaptureSession) deliverMarker(marker types.SceneMarker, ch transport.Channel, emitter *events.Emitter) {
	if ch != nil && ch.IsOpen() {
		ch.SendControl(types.ControlMessage{
			Action:    types.ActionMarker,
			Timestamp: marker.Timestamp,
			Label:     marker.Label,
			Source:    marker.Source,
		})
	}
	emitter.MarkerAdded(marker)
}

func (s *CaptureSession) handleServerEvent(evt types.ServerEvent) {
	if h := s.cfg.ServerEventHandler; h != nil {
		h(evt)
	}

	switch evt.Event {
	case types.EventComplete:
		s.completeMu.Lock()
		ackCh := s.completeCh
		s.completeMu.Unlock()
		if ackCh != nil {
			select {
			case ackCh <- evt:
			default:
			}
		}
	case types.EventChunkAck:
		logger.Debug("session: chunk acknowledged", "part_number", evt.PartNumber)
	case types.EventMarkerAck:
		logger.Debug("session: marker acknowledged", "timestamp", evt.Timestamp)
	case types.EventPong:
	default:
		logger.Debug("session: unhandled server event", "event", evt.Event)
	}
}

// handleTransportError is purely observational: chunk delivery failures
// are reported for diagnostics but never change session state and never
// halt capture.
func (s *CaptureSession) handleTransportError(err error) {
	s.mu.Lock()
	kind := s.kind
	emitter := s.emitter
	s.mu.Unlock()

	logger.Warn("session: transport error", "transport", kind, "error", err)
	emitter.TransportError(string(kind), err)
}

// setStateLocked transitions the state and publishes the change.
// Caller holds the lock; the bus delivers asynchronously.
func (s *CaptureSession) setStateLocked(to State) {
	from := s.state
	s.state = to
	s.emitter.StateChanged(string(from), string(to))
}

// userMessage extracts the human-readable description, keeping
// transport internals out of the UI-facing error field.
func userMessage(err error) string {
	var ce *categoryError
	if errors.As(err, &ce) {
		return ce.message
	}
	return err.Error()
}
