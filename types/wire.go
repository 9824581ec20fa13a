package types

// Control message actions sent from client to server over the channel.
const (
	// ActionMarker records a scene marker during recording.
	ActionMarker = "marker"
	// ActionComplete finalizes the session with duration and optional trim.
	ActionComplete = "complete"
	// ActionPing requests a liveness pong from the server.
	ActionPing = "ping"
)

// Server event names delivered back over the channel.
const (
	// EventChunkAck acknowledges receipt of a single binary chunk.
	EventChunkAck = "chunk_ack"
	// EventMarkerAck acknowledges a recorded scene marker.
	EventMarkerAck = "marker_ack"
	// EventComplete carries the completion acknowledgment for ActionComplete.
	EventComplete = "complete"
	// EventPong answers ActionPing.
	EventPong = "pong"
)

// ControlMessage is a small client→server control payload. Binary chunk data
// never travels through ControlMessage; chunks are sent as raw binary frames
// or stream bytes.
type ControlMessage struct {
	// Action identifies the control operation (ActionMarker, ActionComplete,
	// ActionPing).
	Action string `json:"action"`

	// Timestamp is the marker position in seconds (ActionMarker).
	Timestamp float64 `json:"timestamp,omitempty"`

	// Label is the marker display label (ActionMarker).
	Label string `json:"label,omitempty"`

	// Source is the marker origin (ActionMarker).
	Source MarkerSource `json:"source,omitempty"`

	// Duration is the raw recorded duration in seconds (ActionComplete).
	Duration float64 `json:"duration,omitempty"`

	// TrimEnd is the Smart-Stop trim bound in seconds (ActionComplete).
	// Nil means no trim was computed.
	TrimEnd *float64 `json:"trim_end,omitempty"`
}

// ServerEvent is a structured server→client payload received on the channel.
// Unknown fields are ignored; unknown events are delivered to the message
// handler as-is so embedding applications can audit them.
type ServerEvent struct {
	// Event identifies the event kind (EventChunkAck, EventMarkerAck,
	// EventComplete, EventPong).
	Event string `json:"event"`

	// Status is the session status carried by EventComplete (e.g. "ready").
	Status string `json:"status,omitempty"`

	// PlaybackURL is the time-limited playback reference from EventComplete.
	PlaybackURL string `json:"playback_url,omitempty"`

	// PartNumber is the acknowledged chunk sequence number (EventChunkAck).
	PartNumber int64 `json:"part_number,omitempty"`

	// Timestamp and Label echo the marker fields (EventMarkerAck).
	Timestamp float64 `json:"timestamp,omitempty"`
	Label     string  `json:"label,omitempty"`

	// Error carries a server-side error description, if any.
	Error string `json:"error,omitempty"`
}
