package export

import (
	"mediastudio/api/models"
)

// Project is the slice of an editor project the export path cares about.
type Project struct {
	ID          string
	Name        string
	Width       int
	Height      int
	FPS         int
	DurationSec float64
}

// Settings is what the user picked in the export dialog. Zero fields fall
// back to project-derived defaults.
type Settings struct {
	Format       string
	Codec        string
	Quality      string
	Width        int
	Height       int
	FPS          int
	AudioCodec   string
	AudioBitrate int
	DurationSec  float64
}

func (s Settings) wire() models.JobSettings {
	return models.JobSettings{
		Format:       s.Format,
		Codec:        s.Codec,
		Quality:      s.Quality,
		Width:        s.Width,
		Height:       s.Height,
		FPS:          s.FPS,
		AudioCodec:   s.AudioCodec,
		AudioBitrate: s.AudioBitrate,
		DurationSec:  s.DurationSec,
	}
}

// settingsFor layers the caller's overrides on top of project-derived
// defaults. The result is frozen onto the job before it starts.
func settingsFor(p Project, override *Settings) Settings {
	s := Settings{
		Format:       "mp4",
		Codec:        "h264",
		Quality:      "high",
		Width:        p.Width,
		Height:       p.Height,
		FPS:          p.FPS,
		AudioCodec:   "aac",
		AudioBitrate: 128_000,
		DurationSec:  p.DurationSec,
	}
	if s.Width == 0 {
		s.Width = 1920
	}
	if s.Height == 0 {
		s.Height = 1080
	}
	if s.FPS == 0 {
		s.FPS = 30
	}

	if override != nil {
		if override.Format != "" {
			s.Format = override.Format
		}
		if override.Codec != "" {
			s.Codec = override.Codec
		}
		if override.Quality != "" {
			s.Quality = override.Quality
		}
		if override.Width > 0 {
			s.Width = override.Width
		}
		if override.Height > 0 {
			s.Height = override.Height
		}
		if override.FPS > 0 {
			s.FPS = override.FPS
		}
		if override.AudioCodec != "" {
			s.AudioCodec = override.AudioCodec
		}
		if override.AudioBitrate > 0 {
			s.AudioBitrate = override.AudioBitrate
		}
		if override.DurationSec > 0 {
			s.DurationSec = override.DurationSec
		}
	}

	return s
}

// qualityBitsPerPixel drives the size heuristic. Display-only; the encoder
// owes us nothing here.
var qualityBitsPerPixel = map[string]float64{
	"low":    0.04,
	"medium": 0.08,
	"high":   0.12,
	"ultra":  0.20,
}

// EstimatedFileSize is a deterministic heuristic:
// width x height x fps x bits-per-pixel x duration, plus the audio track.
func EstimatedFileSize(p Project, override *Settings) int64 {
	s := settingsFor(p, override)

	bpp, ok := qualityBitsPerPixel[s.Quality]
	if !ok {
		bpp = qualityBitsPerPixel["medium"]
	}

	videoBits := float64(s.Width) * float64(s.Height) * float64(s.FPS) * bpp * s.DurationSec
	audioBits := float64(s.AudioBitrate) * s.DurationSec

	return int64((videoBits + audioBits) / 8)
}
