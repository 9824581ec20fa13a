package session

import (
	"github.com/AltairaLabs/CaptureKit/codec"
	"github.com/AltairaLabs/CaptureKit/transport"
	"github.com/AltairaLabs/CaptureKit/types"
)

// State is the capture session lifecycle state.
type State string

// Session states. complete and error both permit re-arming via a fresh
// Start call; Cancel forces idle from any non-idle state.
const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateRecording  State = "recording"
	StateStopping   State = "stopping"
	StateComplete   State = "complete"
	StateError      State = "error"
)

// Snapshot is the immutable state view exposed to the UI layer. It is
// assembled under the session lock and safe to retain.
type Snapshot struct {
	// State is the current lifecycle state.
	State State

	// Err is the human-readable failure description, empty unless State
	// is error. Transport internals are never exposed here.
	Err string

	// ElapsedSeconds is the wall-clock recording time, recomputed from
	// the start instant rather than accumulated.
	ElapsedSeconds float64

	// SessionID is the backend-assigned identifier, empty before the
	// begin call succeeds.
	SessionID string

	// Codec is the negotiated selection, nil before negotiation.
	Codec *codec.Selection

	// TransportKind reports which channel variant carries the session,
	// empty before selection.
	TransportKind transport.Kind

	// Markers are the accepted scene markers in detection order.
	Markers []types.SceneMarker

	// Result is the finalized descriptor, set once State is complete.
	Result *types.VideoDescriptor
}
