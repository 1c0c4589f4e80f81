package decode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// decodeMP3 decodes MPEG-1/2 Layer III data. go-mp3 always produces
// 16-bit little-endian stereo.
func decodeMP3(data []byte, maxDur time.Duration) (*pcm, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	const channels, frameBytes = 2, 4
	rate := dec.SampleRate()

	var r io.Reader = dec
	if n := maxFrames(maxDur, rate); n >= 0 {
		r = io.LimitReader(dec, int64(n*frameBytes))
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("mp3: read samples: %w", err)
	}

	n := len(raw) / 2
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		samples[i] = float64(s) / 32768.0
	}
	return &pcm{samples: samples, channels: channels, sampleRate: rate}, nil
}
