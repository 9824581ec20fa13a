package types

import "time"

// Video lifecycle states reported by the backend.
const (
	// VideoStatusRecording means chunks are still being ingested.
	VideoStatusRecording = "recording"
	// VideoStatusReady means the upload was finalized and playback is available.
	VideoStatusReady = "ready"
	// VideoStatusCancelled means the session was aborted before completion.
	VideoStatusCancelled = "cancelled"
)

// VideoDescriptor is the finalized record of a recorded session, assembled
// from the completion acknowledgment plus locally known fields.
type VideoDescriptor struct {
	// ID is the session identifier assigned by the backend at begin time.
	ID string `json:"id"`

	// Title is the optional user-supplied title.
	Title string `json:"title,omitempty"`

	// Status is the session lifecycle state (VideoStatus* constants).
	Status string `json:"status"`

	// Duration is the raw recorded duration in seconds.
	Duration float64 `json:"duration,omitempty"`

	// Codec is the negotiated codec short name (av1, vp9, vp8, webm).
	Codec string `json:"codec,omitempty"`

	// TrimStart and TrimEnd bound the effective playable range in seconds.
	// Trimming is metadata-only; captured bytes are never discarded.
	TrimStart *float64 `json:"trim_start,omitempty"`
	TrimEnd   *float64 `json:"trim_end,omitempty"`

	// CreatedAt is when the session was begun.
	CreatedAt time.Time `json:"created_at,omitempty"`

	// PlaybackURL is a time-limited playback reference, present once Status
	// is ready.
	PlaybackURL string `json:"playback_url,omitempty"`
}
