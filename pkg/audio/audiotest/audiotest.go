// Package audiotest generates synthetic audio fixtures for tests.
package audiotest

import (
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Tone returns a sine wave of the given frequency and peak amplitude.
func Tone(freq, amp float64, dur time.Duration, rate int) []float64 {
	n := int(dur.Seconds() * float64(rate))
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return out
}

// Noise returns uniform white noise in [-amp, amp] from a seeded source.
func Noise(seed uint64, amp float64, dur time.Duration, rate int) []float64 {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	n := int(dur.Seconds() * float64(rate))
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * (2*r.Float64() - 1)
	}
	return out
}

// Mix adds b into a sample-wise, returning a new slice of len(a).
func Mix(a, b []float64) []float64 {
	out := make([]float64, len(a))
	copy(out, a)
	for i := 0; i < len(a) && i < len(b); i++ {
		out[i] += b[i]
	}
	return out
}

// Interleave builds interleaved multi-channel samples from per-channel
// slices of equal length.
func Interleave(channels ...[]float64) []float64 {
	if len(channels) == 0 {
		return nil
	}
	n := len(channels[0])
	out := make([]float64, 0, n*len(channels))
	for i := 0; i < n; i++ {
		for _, ch := range channels {
			out = append(out, ch[i])
		}
	}
	return out
}

// WAV encodes interleaved samples as a 16-bit PCM WAV file and returns its
// bytes.
func WAV(tb testing.TB, samples []float64, rate, channels int) []byte {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "fixture.wav")
	WriteWAV(tb, path, samples, rate, channels)
	data, err := os.ReadFile(path)
	if err != nil {
		tb.Fatalf("read wav fixture: %v", err)
	}
	return data
}

// WriteWAV encodes interleaved samples as a 16-bit PCM WAV file at path,
// creating parent directories as needed.
func WriteWAV(tb testing.TB, path string, samples []float64, rate, channels int) {
	tb.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatalf("create fixture dir: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		tb.Fatalf("create wav fixture: %v", err)
	}
	defer f.Close()

	ints := make([]int, len(samples))
	for i, s := range samples {
		s = math.Max(-1, math.Min(1, s))
		ints[i] = int(math.Round(s * 32767))
	}
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Data:           ints,
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		tb.Fatalf("encode wav fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		tb.Fatalf("close wav encoder: %v", err)
	}
}
