package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNegotiate_FirstSupportedWins(t *testing.T) {
	tests := []struct {
		name      string
		supported func(mime string) bool
		wantName  Name
		wantBest  bool
	}{
		{
			name:      "everything supported selects av1",
			supported: func(string) bool { return true },
			wantName:  AV1,
			wantBest:  true,
		},
		{
			name:      "vp9 only",
			supported: func(mime string) bool { return strings.Contains(mime, "vp9") },
			wantName:  VP9,
			wantBest:  false,
		},
		{
			name:      "vp8 only",
			supported: func(mime string) bool { return strings.Contains(mime, "vp8") },
			wantName:  VP8,
			wantBest:  false,
		},
		{
			name:      "nothing supported falls back to bare container",
			supported: func(string) bool { return false },
			wantName:  WebM,
			wantBest:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := Negotiate(SupportFunc(tt.supported))
			assert.Equal(t, tt.wantName, sel.Name)
			assert.Equal(t, tt.wantBest, sel.IsBestAvailable)
			assert.NotEmpty(t, sel.MIMEType)
		})
	}
}

func TestNegotiate_NilProbeReturnsLastResort(t *testing.T) {
	sel := Negotiate(nil)

	assert.Equal(t, WebM, sel.Name)
	assert.Equal(t, "video/webm", sel.MIMEType)
	assert.False(t, sel.IsBestAvailable)
}

func TestNegotiate_PrefersOpusPairing(t *testing.T) {
	// When both the opus-paired and bare vp9 strings are supported, the
	// opus pairing appears earlier in the chain and must win.
	sel := Negotiate(SupportFunc(func(mime string) bool {
		return strings.Contains(mime, "vp9")
	}))

	assert.Contains(t, sel.MIMEType, "opus")
}

func TestRecommendedConstraints_Total(t *testing.T) {
	for _, name := range []Name{AV1, VP9, VP8, WebM, Name("h266"), Name("")} {
		c := RecommendedConstraints(name)
		assert.Positive(t, c.IdealWidth, "name %q", name)
		assert.Positive(t, c.IdealHeight, "name %q", name)
		assert.Positive(t, c.MaxFrameRate, "name %q", name)
		assert.GreaterOrEqual(t, c.MaxWidth, c.IdealWidth, "name %q", name)
	}
}

func TestRecommendedConstraints_TierOrdering(t *testing.T) {
	av1 := RecommendedConstraints(AV1)
	vp9 := RecommendedConstraints(VP9)
	vp8 := RecommendedConstraints(VP8)

	assert.Greater(t, av1.MaxWidth, vp9.MaxWidth)
	assert.Greater(t, vp9.MaxWidth, vp8.MaxWidth)
	assert.Equal(t, RecommendedConstraints(Name("unknown")), vp8)
}
