package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestElementsForMIME(t *testing.T) {
	tests := []struct {
		mime string
		want []string
	}{
		{"video/webm;codecs=av01.0.08M.08,opus", []string{"webmmux", "av1enc", "opusenc"}},
		{"video/webm;codecs=av1,opus", []string{"webmmux", "av1enc", "opusenc"}},
		{"video/webm;codecs=vp9,opus", []string{"webmmux", "vp9enc", "opusenc"}},
		{"video/webm;codecs=vp9", []string{"webmmux", "vp9enc"}},
		{"video/webm;codecs=vp8", []string{"webmmux", "vp8enc"}},
		{"video/webm", []string{"webmmux"}},
		{"video/mp4;codecs=h264", nil},
		{"audio/ogg", nil},
		{"video/webm;codecs=h264", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, elementsForMIME(tt.mime), "mime %q", tt.mime)
	}
}
