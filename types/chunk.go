// Package types defines the shared contracts of the capture core: media
// chunks, wire-level control messages and server events, scene markers, and
// the finalized video descriptor returned by the completion handshake.
package types

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Chunk represents a bounded segment of encoded media emitted by the local
// encoder during capture.
//
// Example usage:
//
//	chunk := &types.Chunk{
//	    Data:        segment,
//	    SequenceNum: 1,
//	    Timestamp:   time.Now(),
//	    Metadata:    map[string]string{"mime_type": "video/webm;codecs=vp9"},
//	}
type Chunk struct {
	// Data contains the raw encoded media bytes for this chunk.
	Data []byte `json:"data"`

	// SequenceNum orders chunks within a session. The first chunk of every
	// session is 1; numbers are strictly increasing with no client-side
	// reordering. The upload sink uses them to detect gaps.
	SequenceNum int64 `json:"sequence_num"`

	// Timestamp indicates when this chunk was emitted by the encoder.
	Timestamp time.Time `json:"timestamp"`

	// IsLast marks the final chunk flushed when the encoder stops.
	IsLast bool `json:"is_last"`

	// Metadata contains chunk-specific metadata (MIME type, encoding, etc.)
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ChunkReader reads from an io.Reader and produces Chunks.
// Useful for converting continuous encoder output into bounded segments.
//
// Example usage:
//
//	reader := types.NewChunkReader(encoderOutput, 64*1024)
//	for {
//	    chunk, err := reader.NextChunk(ctx)
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    channel.SendBinary(chunk.Data)
//	}
type ChunkReader struct {
	reader   io.Reader
	metadata map[string]string
	seqNum   int64
	buffer   []byte
}

// NewChunkReader creates a ChunkReader that cuts r into chunks of at most
// chunkSize bytes. Sequence numbers start at 1.
func NewChunkReader(r io.Reader, chunkSize int) *ChunkReader {
	return &ChunkReader{
		reader: r,
		buffer: make([]byte, chunkSize),
	}
}

// SetMetadata attaches metadata (MIME type, encoding) copied onto every
// subsequent chunk.
func (cr *ChunkReader) SetMetadata(md map[string]string) {
	cr.metadata = md
}

// NextChunk reads the next chunk from the reader.
// Returns io.EOF when the stream is complete.
// The returned chunk's IsLast field is true on the final chunk.
func (cr *ChunkReader) NextChunk(ctx context.Context) (*Chunk, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	n, err := cr.reader.Read(cr.buffer)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("error reading chunk: %w", err)
	}

	if n == 0 && err == io.EOF {
		return nil, io.EOF
	}

	cr.seqNum++
	chunk := &Chunk{
		Data:        make([]byte, n),
		SequenceNum: cr.seqNum,
		Timestamp:   time.Now(),
		IsLast:      err == io.EOF,
		Metadata:    cr.metadata,
	}
	copy(chunk.Data, cr.buffer[:n])

	return chunk, nil
}
