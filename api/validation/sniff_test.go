package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSniff(t *testing.T) {
	tests := []struct {
		name   string
		prefix []byte
		want   MediaType
		ok     bool
	}{
		{"png", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}, MediaPNG, true},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0, 0, 0, 0, 0}, MediaJPEG, true},
		{"gif", []byte("GIF89a______"), MediaGIF, true},
		{"webm", []byte{0x1A, 0x45, 0xDF, 0xA3, 0, 0, 0, 0, 0, 0, 0, 0}, MediaWebM, true},
		{"mp3 id3", []byte("ID3\x04________"), MediaMP3, true},
		{"mp4", []byte{0, 0, 0, 0x20, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm'}, MediaMP4, true},
		{"mov", []byte{0, 0, 0, 0x14, 'f', 't', 'y', 'p', 'q', 't', ' ', ' '}, MediaMOV, true},
		{"wav", []byte("RIFF\x24\x08\x00\x00WAVE"), MediaWAV, true},
		{"plain text", []byte("hello world!"), "", false},
		{"short prefix", []byte{0x00, 0x01}, "", false},
		{"empty", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Sniff(tt.prefix)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
