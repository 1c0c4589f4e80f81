package decode

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// decodeWAV decodes integer PCM WAV data. Non-PCM payloads (float, ADPCM,
// A-law, ...) return errTranscode.
func decodeWAV(data []byte, maxDur time.Duration) (*pcm, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a valid wav file")
	}
	channels := int(dec.NumChans)
	rate := int(dec.SampleRate)
	depth := int(dec.BitDepth)
	if channels <= 0 || rate <= 0 {
		return nil, fmt.Errorf("wav: invalid header (%d channels, %d Hz)", channels, rate)
	}
	switch {
	case dec.WavAudioFormat == wavFormatPCM && (depth == 8 || depth == 16 || depth == 24 || depth == 32):
	case dec.WavAudioFormat == wavFormatExtensible && (depth == 16 || depth == 24):
	default:
		return nil, errTranscode
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav: read samples: %w", err)
	}

	ints := buf.Data
	if n := maxFrames(maxDur, rate); n >= 0 && n*channels < len(ints) {
		ints = ints[:n*channels]
	}

	samples := make([]float64, len(ints))
	if depth == 8 {
		// 8-bit WAV is unsigned.
		for i, v := range ints {
			samples[i] = float64(v-128) / 128
		}
	} else {
		scale := 1 / float64(int64(1)<<(depth-1))
		for i, v := range ints {
			samples[i] = float64(v) * scale
		}
	}
	return &pcm{samples: samples, channels: channels, sampleRate: rate}, nil
}
