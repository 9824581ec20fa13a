package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/AltairaLabs/CaptureKit/codec"
)

// GstSupport returns a codec support probe backed by the local GStreamer
// installation. A MIME/codec string is supported when every element the
// recording pipeline would need for it can be instantiated. Probe results
// are cached per element.
func GstSupport() codec.Support {
	return codec.SupportFunc(func(mimeType string) bool {
		elems := elementsForMIME(mimeType)
		if elems == nil {
			return false
		}
		for _, name := range elems {
			if !haveElement(name) {
				return false
			}
		}
		return true
	})
}

// elementsForMIME maps a recording MIME/codec string to the GStreamer
// elements required to encode it. Returns nil for strings outside the
// webm family.
func elementsForMIME(mimeType string) []string {
	base, params, _ := strings.Cut(mimeType, ";")
	if strings.TrimSpace(base) != "video/webm" {
		return nil
	}

	elems := []string{"webmmux"}

	var codecs string
	for _, p := range strings.Split(params, ";") {
		if k, v, ok := strings.Cut(strings.TrimSpace(p), "="); ok && k == "codecs" {
			codecs = v
		}
	}

	for _, c := range strings.Split(codecs, ",") {
		c = strings.TrimSpace(c)
		switch {
		case c == "":
			// Bare container: recorded with the default encoder.
		case c == "av1" || strings.HasPrefix(c, "av01"):
			elems = append(elems, "av1enc")
		case c == "vp9":
			elems = append(elems, "vp9enc")
		case c == "vp8":
			elems = append(elems, "vp8enc")
		case c == "opus":
			elems = append(elems, "opusenc")
		default:
			return nil
		}
	}
	return elems
}

var elementCache struct {
	mu    sync.Mutex
	known map[string]bool
}

func haveElement(name string) bool {
	elementCache.mu.Lock()
	defer elementCache.mu.Unlock()

	if ok, seen := elementCache.known[name]; seen {
		return ok
	}
	if elementCache.known == nil {
		elementCache.known = make(map[string]bool)
	}

	gst.Init(nil)
	_, err := gst.NewElement(name)
	elementCache.known[name] = err == nil
	return err == nil
}

// CheckGStreamerAvailable verifies that GStreamer itself is usable by
// instantiating a trivial element. Call before constructing a GstSource
// to fail fast on hosts without the runtime installed.
func CheckGStreamerAvailable() error {
	gst.Init(nil)
	if _, err := gst.NewElement("fakesrc"); err != nil {
		return fmt.Errorf("gstreamer unavailable: %w", err)
	}
	return nil
}

// GstSourceConfig configures a GStreamer-backed capture source.
type GstSourceConfig struct {
	// Selection is the negotiated codec the pipeline encodes to.
	Selection codec.Selection

	// VideoDevice is the v4l2 device path. Empty selects the platform
	// default video source.
	VideoDevice string

	// IncludeAudio adds a default audio source encoded with Opus. Only
	// honored when the negotiated codec carries an audio track.
	IncludeAudio bool

	// OverlayPNG, when non-empty, is composited onto the top-right
	// corner of every frame. The image is scaled to fit the frame
	// before the pipeline starts; see PrepareOverlay.
	OverlayPNG []byte

	// Logger receives pipeline lifecycle logs. Default: no logging.
	Logger Logger
}

// GstSource acquires live streams from local devices through a
// GStreamer encoding pipeline.
//
// Pipeline structure:
//
//	videosrc → videoconvert → [gdkpixbufoverlay] → videoscale →
//	videorate → capsfilter → encoder → webmmux → appsink
//
// with an optional audiosrc → audioconvert → opusenc branch feeding the
// muxer.
type GstSource struct {
	cfg GstSourceConfig
}

// NewGstSource validates the GStreamer runtime and returns a source for
// the given configuration.
func NewGstSource(cfg GstSourceConfig) (*GstSource, error) {
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	if err := CheckGStreamerAvailable(); err != nil {
		return nil, err
	}
	return &GstSource{cfg: cfg}, nil
}

// videoEncoder returns the encoder element name for the negotiated
// codec. The bare container falls back to the baseline encoder, which
// every supported host carries.
func (s *GstSource) videoEncoder() string {
	switch s.cfg.Selection.Name {
	case codec.AV1:
		return "av1enc"
	case codec.VP9:
		return "vp9enc"
	default:
		return "vp8enc"
	}
}

// Acquire implements Source. The returned stream delivers the muxed
// webm byte stream; closing it tears the pipeline down.
func (s *GstSource) Acquire(ctx context.Context, c codec.Constraints) (Stream, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	videosrc, err := s.newVideoSrc()
	if err != nil {
		return nil, err
	}

	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}
	scale, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoscale: %w", err)
	}
	rate, err := gst.NewElement("videorate")
	if err != nil {
		return nil, fmt.Errorf("failed to create videorate: %w", err)
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("failed to create capsfilter: %w", err)
	}
	capsStr := fmt.Sprintf("video/x-raw,width=%d,height=%d,framerate=%d/1",
		c.IdealWidth, c.IdealHeight, c.IdealFrameRate)
	capsfilter.SetProperty("caps", gst.NewCapsFromString(capsStr))

	encoder, err := gst.NewElement(s.videoEncoder())
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", s.videoEncoder(), err)
	}
	// Real-time deadline so the encoder never stalls the ticker that
	// cuts chunks downstream.
	if s.cfg.Selection.Name == codec.VP8 || s.cfg.Selection.Name == codec.WebM || s.cfg.Selection.Name == codec.VP9 {
		encoder.SetProperty("deadline", int64(1))
	}

	mux, err := gst.NewElement("webmmux")
	if err != nil {
		return nil, fmt.Errorf("failed to create webmmux: %w", err)
	}
	// Live muxing: emit clusters continuously instead of seeking back
	// to patch the header.
	mux.SetProperty("streamable", true)

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)

	videoChain := []*gst.Element{videosrc, convert}

	overlay, cleanup, err := s.newOverlay(c)
	if err != nil {
		return nil, err
	}
	if overlay != nil {
		videoChain = append(videoChain, overlay)
	}
	videoChain = append(videoChain, scale, rate, capsfilter, encoder, mux, appsink.Element)

	pipeline.AddMany(videoChain...)
	if err := gst.ElementLinkMany(videoChain...); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to link video elements: %w", err)
	}

	if s.cfg.IncludeAudio && strings.Contains(s.cfg.Selection.MIMEType, "opus") {
		if err := s.addAudioBranch(pipeline, mux); err != nil {
			cleanup()
			return nil, err
		}
	}

	stream := &gstStream{
		pipeline: pipeline,
		data:     make(chan []byte, 64),
		done:     make(chan struct{}),
		cleanup:  cleanup,
		log:      s.cfg.Logger,
	}

	appsink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: stream.onNewSample,
		EOSFunc:       func(*app.Sink) { stream.endOfStream() },
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to start pipeline: %w", err)
	}
	s.cfg.Logger.Debugf("media: gstreamer pipeline started, caps=%q encoder=%s", capsStr, s.videoEncoder())

	go func() {
		select {
		case <-ctx.Done():
			stream.Close()
		case <-stream.done:
		}
	}()

	return stream, nil
}

func (s *GstSource) newVideoSrc() (*gst.Element, error) {
	if s.cfg.VideoDevice != "" {
		src, err := gst.NewElement("v4l2src")
		if err != nil {
			return nil, fmt.Errorf("failed to create v4l2src: %w", err)
		}
		src.SetProperty("device", s.cfg.VideoDevice)
		return src, nil
	}
	src, err := gst.NewElement("autovideosrc")
	if err != nil {
		return nil, fmt.Errorf("failed to create autovideosrc: %w", err)
	}
	return src, nil
}

// newOverlay scales the configured overlay image to fit the frame and
// returns a gdkpixbufoverlay element anchored to the top-right corner.
// The cleanup func removes the temporary overlay file.
func (s *GstSource) newOverlay(c codec.Constraints) (*gst.Element, func(), error) {
	noop := func() {}
	if len(s.cfg.OverlayPNG) == 0 {
		return nil, noop, nil
	}

	scaled, err := PrepareOverlay(s.cfg.OverlayPNG, c.IdealWidth/4, c.IdealHeight/4)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to prepare overlay: %w", err)
	}

	path := filepath.Join(os.TempDir(), fmt.Sprintf("capture-overlay-%d.png", os.Getpid()))
	if err := os.WriteFile(path, scaled, 0o600); err != nil {
		return nil, noop, fmt.Errorf("failed to write overlay: %w", err)
	}
	cleanup := func() { os.Remove(path) }

	overlay, err := gst.NewElement("gdkpixbufoverlay")
	if err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("failed to create gdkpixbufoverlay: %w", err)
	}
	overlay.SetProperty("location", path)
	overlay.SetProperty("relative-x", 0.95)
	overlay.SetProperty("relative-y", 0.05)
	return overlay, cleanup, nil
}

func (s *GstSource) addAudioBranch(pipeline *gst.Pipeline, mux *gst.Element) error {
	audiosrc, err := gst.NewElement("autoaudiosrc")
	if err != nil {
		return fmt.Errorf("failed to create autoaudiosrc: %w", err)
	}
	aconvert, err := gst.NewElement("audioconvert")
	if err != nil {
		return fmt.Errorf("failed to create audioconvert: %w", err)
	}
	opusenc, err := gst.NewElement("opusenc")
	if err != nil {
		return fmt.Errorf("failed to create opusenc: %w", err)
	}
	pipeline.AddMany(audiosrc, aconvert, opusenc)
	if err := gst.ElementLinkMany(audiosrc, aconvert, opusenc, mux); err != nil {
		return fmt.Errorf("failed to link audio elements: %w", err)
	}
	return nil
}

// gstStream adapts the appsink sample flow to the Stream interface.
type gstStream struct {
	pipeline *gst.Pipeline
	data     chan []byte
	leftover []byte
	log      Logger

	closeOnce sync.Once
	done      chan struct{}
	eosOnce   sync.Once
	cleanup   func()
}

func (g *gstStream) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	raw := mapInfo.Bytes()
	if len(raw) == 0 {
		buffer.Unmap()
		return gst.FlowOK
	}
	// Copy out; GStreamer reuses the buffer.
	out := make([]byte, len(raw))
	copy(out, raw)
	buffer.Unmap()

	select {
	case g.data <- out:
		return gst.FlowOK
	case <-g.done:
		return gst.FlowEOS
	}
}

func (g *gstStream) endOfStream() {
	g.eosOnce.Do(func() { close(g.data) })
}

func (g *gstStream) Read(p []byte) (int, error) {
	if len(g.leftover) > 0 {
		n := copy(p, g.leftover)
		g.leftover = g.leftover[n:]
		return n, nil
	}
	select {
	case buf, ok := <-g.data:
		if !ok {
			return 0, io.EOF
		}
		n := copy(p, buf)
		g.leftover = buf[n:]
		return n, nil
	case <-g.done:
		return 0, io.EOF
	}
}

func (g *gstStream) Close() error {
	g.closeOnce.Do(func() {
		close(g.done)
		if err := g.pipeline.SetState(gst.StateNull); err != nil {
			g.log.Warnf("media: pipeline teardown failed: %v", err)
		}
		g.cleanup()
	})
	return nil
}
