// Package codec implements recording-codec negotiation. A fixed preference
// chain is probed against the host platform's media-recording capability and
// the first supported entry wins. Negotiation never fails: when nothing in
// the chain is supported, or the capability cannot be queried at all, the
// bare-container last resort is returned so downstream code never has to
// special-case an absent codec.
package codec

// Name is the short name of a negotiated codec tier.
type Name string

// Codec short names, ordered best compression tier first.
const (
	// AV1 is the best-compression tier.
	AV1 Name = "av1"
	// VP9 is the mid tier, paired with Opus audio where available.
	VP9 Name = "vp9"
	// VP8 is the baseline tier.
	VP8 Name = "vp8"
	// WebM is the bare-container last resort.
	WebM Name = "webm"
)

// Selection is the immutable result of negotiation. It is created once per
// session at start and never mutated.
type Selection struct {
	// MIMEType is the wire-level MIME/codec string handed to the encoder.
	MIMEType string `json:"mime_type"`

	// Name is the codec short name.
	Name Name `json:"name"`

	// IsBestAvailable reports whether the best-compression tier was selected.
	IsBestAvailable bool `json:"is_best_available"`
}

// Support reports whether the host platform can record the given MIME/codec
// string. A typical implementation delegates to the platform encoder's
// capability query; see media.GstSupport for the GStreamer-backed probe.
type Support interface {
	IsMIMETypeSupported(mimeType string) bool
}

// SupportFunc adapts a plain function to the Support interface.
type SupportFunc func(mimeType string) bool

// IsMIMETypeSupported implements Support.
func (f SupportFunc) IsMIMETypeSupported(mimeType string) bool { return f(mimeType) }

// preferences is the fixed negotiation chain, best tier first. The last
// entry is the universal fallback and must stay last.
var preferences = []Selection{
	{MIMEType: "video/webm;codecs=av01.0.08M.08,opus", Name: AV1, IsBestAvailable: true},
	{MIMEType: "video/webm;codecs=av1,opus", Name: AV1, IsBestAvailable: true},
	{MIMEType: "video/webm;codecs=vp9,opus", Name: VP9, IsBestAvailable: false},
	{MIMEType: "video/webm;codecs=vp9", Name: VP9, IsBestAvailable: false},
	{MIMEType: "video/webm;codecs=vp8,opus", Name: VP8, IsBestAvailable: false},
	{MIMEType: "video/webm;codecs=vp8", Name: VP8, IsBestAvailable: false},
	{MIMEType: "video/webm", Name: WebM, IsBestAvailable: false},
}

// Negotiate probes the preference chain in order and returns the first entry
// support reports as recordable. A nil support probe means the capability
// cannot be queried; the last-resort entry is returned in that case and when
// nothing in the chain is supported.
func Negotiate(support Support) Selection {
	lastResort := preferences[len(preferences)-1]

	if support == nil {
		return lastResort
	}

	for _, pref := range preferences {
		if support.IsMIMETypeSupported(pref.MIMEType) {
			return pref
		}
	}

	return lastResort
}

// Constraints are the recommended capture parameters for a codec tier.
// Ideal values are the target the device should aim for; Max values cap what
// the device may deliver.
type Constraints struct {
	IdealWidth  int `json:"ideal_width"`
	IdealHeight int `json:"ideal_height"`
	MaxWidth    int `json:"max_width"`
	MaxHeight   int `json:"max_height"`

	IdealFrameRate int `json:"ideal_frame_rate"`
	MaxFrameRate   int `json:"max_frame_rate"`
}

// RecommendedConstraints maps a codec tier to its capture resolution and
// frame-rate ceilings. Higher tiers compress better at equal visual quality,
// so they are allowed higher resolutions. Total over Name: unknown names get
// the baseline default.
func RecommendedConstraints(name Name) Constraints {
	switch name {
	case AV1:
		return Constraints{
			IdealWidth: 2560, IdealHeight: 1440,
			MaxWidth: 3840, MaxHeight: 2160,
			IdealFrameRate: 30, MaxFrameRate: 60,
		}
	case VP9:
		return Constraints{
			IdealWidth: 1920, IdealHeight: 1080,
			MaxWidth: 2560, MaxHeight: 1440,
			IdealFrameRate: 30, MaxFrameRate: 60,
		}
	default:
		// VP8, bare WebM, and anything unrecognized.
		return Constraints{
			IdealWidth: 1280, IdealHeight: 720,
			MaxWidth: 1920, MaxHeight: 1080,
			IdealFrameRate: 30, MaxFrameRate: 30,
		}
	}
}
