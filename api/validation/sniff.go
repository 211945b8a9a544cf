package validation

import (
	"bytes"
)

type MediaType string

const (
	MediaMP4  MediaType = "video/mp4"
	MediaWebM MediaType = "video/webm"
	MediaMOV  MediaType = "video/quicktime"
	MediaPNG  MediaType = "image/png"
	MediaJPEG MediaType = "image/jpeg"
	MediaGIF  MediaType = "image/gif"
	MediaWAV  MediaType = "audio/wav"
	MediaMP3  MediaType = "audio/mpeg"
)

var magicBytes = map[MediaType][]byte{
	MediaWebM: {0x1A, 0x45, 0xDF, 0xA3},
	MediaPNG:  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	MediaJPEG: {0xFF, 0xD8, 0xFF},
	MediaGIF:  {0x47, 0x49, 0x46, 0x38},
	MediaMP3:  {0x49, 0x44, 0x33},
}

// Sniff identifies a media asset from the first bytes of its payload.
// Callers that cannot supply a content-type header use this as a fallback.
func Sniff(prefix []byte) (MediaType, bool) {
	for mediaType, signature := range magicBytes {
		if bytes.HasPrefix(prefix, signature) {
			return mediaType, true
		}
	}

	// ISO BMFF containers carry their brand at offset 4.
	if len(prefix) >= 12 && bytes.Equal(prefix[4:8], []byte("ftyp")) {
		if bytes.Equal(prefix[8:11], []byte("qt ")) {
			return MediaMOV, true
		}
		return MediaMP4, true
	}

	if len(prefix) >= 12 && bytes.Equal(prefix[:4], []byte("RIFF")) && bytes.Equal(prefix[8:12], []byte("WAVE")) {
		return MediaWAV, true
	}

	return "", false
}
