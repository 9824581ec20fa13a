package types

// MarkerSource identifies how a scene marker was detected.
type MarkerSource string

// Marker sources.
const (
	// MarkerSourceFocusSwitch marks a platform focus-gain signal.
	MarkerSourceFocusSwitch MarkerSource = "focus_switch"
	// MarkerSourceVisibility marks a visibility-becomes-visible signal.
	MarkerSourceVisibility MarkerSource = "visibility"
	// MarkerSourceManual marks an explicit user action.
	MarkerSourceManual MarkerSource = "manual"
)

// DefaultMarkerLabel is the descriptive label attached to auto-detected
// markers.
const DefaultMarkerLabel = "Scene change"

// SceneMarker is a timestamped, labeled point of interest within a recording,
// rendered later as a navigable chapter point. Markers are append-only in
// detection order; the sequence is not re-sorted by timestamp.
type SceneMarker struct {
	// Timestamp is the marker position in seconds of elapsed recording time.
	// Always >= 0.
	Timestamp float64 `json:"timestamp"`

	// Label is the human-readable marker label.
	Label string `json:"label"`

	// Source records how the marker was detected.
	Source MarkerSource `json:"source"`
}
