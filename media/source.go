// Package media acquires live capture streams from local devices and
// slices their encoded output into timestamped chunks for upload.
package media

import (
	"context"
	"io"

	"github.com/AltairaLabs/CaptureKit/codec"
)

// Stream is a live encoded media stream acquired from a capture device.
//
// Read blocks until encoded bytes are available or the stream ends.
// A stream that ends naturally returns io.EOF; any other error means
// the underlying device failed mid-capture.
type Stream interface {
	io.ReadCloser
}

// Source acquires live media streams from a capture device.
type Source interface {
	// Acquire opens a stream honoring the given constraints. Ideal
	// values are targets, not requirements: a source may fall back to
	// whatever the device can deliver up to the configured maximums.
	// Acquire fails only when no device is available at all or the
	// user denied access to it.
	Acquire(ctx context.Context, c codec.Constraints) (Stream, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, c codec.Constraints) (Stream, error)

// Acquire implements Source.
func (f SourceFunc) Acquire(ctx context.Context, c codec.Constraints) (Stream, error) {
	return f(ctx, c)
}
