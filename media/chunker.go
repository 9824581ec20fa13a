package media

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/AltairaLabs/CaptureKit/types"
)

// Default encoder settings.
const (
	// DefaultChunkInterval is how often accumulated encoder output is
	// flushed as a chunk.
	DefaultChunkInterval = 3 * time.Second

	defaultReadBufferSize = 32 * 1024
)

// Encoder slices a live stream into timestamped chunks.
//
// Chunks are delivered in emission order with 1-based, strictly
// increasing sequence numbers. The channel is closed after the final
// chunk, which carries IsLast.
type Encoder interface {
	// Chunks returns the channel of encoded chunks.
	Chunks() <-chan types.Chunk

	// Stop flushes any buffered bytes as a final IsLast chunk, closes
	// the chunk channel, and releases the underlying stream. Safe to
	// call more than once.
	Stop()

	// Err reports the first mid-capture stream error, if any. Valid
	// after the chunk channel is closed.
	Err() error
}

// ChunkerConfig configures a Chunker.
type ChunkerConfig struct {
	// Interval between chunk flushes. Default: DefaultChunkInterval.
	Interval time.Duration

	// ReadBufferSize is the size of the stream read buffer.
	ReadBufferSize int

	// Metadata is copied onto every emitted chunk (MIME type, codec).
	Metadata map[string]string

	// Logger receives encoder lifecycle logs. Default: no logging.
	Logger Logger
}

func (c ChunkerConfig) defaults() ChunkerConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultChunkInterval
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = defaultReadBufferSize
	}
	if c.Logger == nil {
		c.Logger = noopLogger{}
	}
	return c
}

// Logger is the minimal logging interface used by this package.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Warnf(string, ...any)  {}

// Chunker is the interval-based Encoder implementation. It drains a
// Stream continuously and flushes whatever accumulated since the last
// flush every Interval.
type Chunker struct {
	stream   Stream
	cfg      ChunkerConfig
	chunks   chan types.Chunk
	seq      int64
	stopOnce sync.Once
	stopped  chan struct{}

	mu       sync.Mutex
	pending  bytes.Buffer
	readErr  error
	readDone chan struct{}
}

// NewChunker starts draining stream and returns the running Chunker.
func NewChunker(stream Stream, cfg ChunkerConfig) *Chunker {
	c := &Chunker{
		stream:   stream,
		cfg:      cfg.defaults(),
		chunks:   make(chan types.Chunk, 8),
		stopped:  make(chan struct{}),
		readDone: make(chan struct{}),
	}
	go c.readLoop()
	go c.flushLoop()
	return c
}

// Chunks implements Encoder.
func (c *Chunker) Chunks() <-chan types.Chunk { return c.chunks }

// Stop implements Encoder. It closes the stream, waits for the tail of
// its output to drain, and emits the final chunk.
func (c *Chunker) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopped)
		if err := c.stream.Close(); err != nil {
			c.cfg.Logger.Warnf("media: stream close failed: %v", err)
		}
	})
}

// Err implements Encoder.
func (c *Chunker) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}

func (c *Chunker) readLoop() {
	defer close(c.readDone)
	buf := make([]byte, c.cfg.ReadBufferSize)
	for {
		n, err := c.stream.Read(buf)
		if n > 0 {
			c.mu.Lock()
			c.pending.Write(buf[:n])
			c.mu.Unlock()
		}
		if err != nil {
			if err != io.EOF && !c.isStopped() {
				c.mu.Lock()
				c.readErr = err
				c.mu.Unlock()
				c.cfg.Logger.Warnf("media: stream read failed: %v", err)
			}
			return
		}
	}
}

func (c *Chunker) flushLoop() {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if chunk, ok := c.take(false); ok {
				c.chunks <- chunk
			}
		case <-c.stopped:
			c.finish()
			return
		case <-c.readDone:
			// Stream ended on its own; treat it as a stop so the
			// consumer still sees a terminal chunk.
			c.Stop()
			c.finish()
			return
		}
	}
}

// finish drains the stream tail and emits the final chunk.
func (c *Chunker) finish() {
	<-c.readDone
	chunk, _ := c.take(true)
	c.chunks <- chunk
	close(c.chunks)
	c.cfg.Logger.Debugf("media: encoder stopped, %d chunks emitted", c.seq)
}

// take cuts the pending buffer into a chunk. A non-final flush with no
// pending bytes produces nothing; the final flush always produces a
// chunk so IsLast is delivered even when the tail is empty.
func (c *Chunker) take(last bool) (types.Chunk, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending.Len() == 0 && !last {
		return types.Chunk{}, false
	}
	data := make([]byte, c.pending.Len())
	copy(data, c.pending.Bytes())
	c.pending.Reset()
	c.seq++
	return types.Chunk{
		Data:        data,
		SequenceNum: c.seq,
		Timestamp:   time.Now(),
		IsLast:      last,
		Metadata:    c.cfg.Metadata,
	}, true
}

func (c *Chunker) isStopped() bool {
	select {
	case <-c.stopped:
		return true
	default:
		return false
	}
}
