package resampler

import (
	"errors"
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// DefaultQuality is the preset used by Resample.
const DefaultQuality = resampling.QualityHigh

// ErrInvalidRate is returned for non-positive sample rates.
var ErrInvalidRate = errors.New("resampler: invalid sample rate")

// Resample converts mono samples recorded at srcRate to dstRate with
// DefaultQuality.
func Resample(samples []float64, srcRate, dstRate int) ([]float64, error) {
	return ResampleQuality(samples, srcRate, dstRate, DefaultQuality)
}

// ResampleQuality is Resample with an explicit quality preset. The whole
// buffer is processed and flushed in one pass, and the result is fitted to
// exactly floor(len(samples) * dstRate / srcRate) samples so every caller
// sees the same frame alignment.
func ResampleQuality(samples []float64, srcRate, dstRate int, quality resampling.QualityPreset) ([]float64, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("%w: %d -> %d", ErrInvalidRate, srcRate, dstRate)
	}
	if srcRate == dstRate || len(samples) == 0 {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out, nil
	}

	out, err := resampling.ResampleMono(samples, float64(srcRate), float64(dstRate), quality)
	if err != nil {
		return nil, fmt.Errorf("resampler: %d -> %d: %w", srcRate, dstRate, err)
	}
	return fitLength(out, OutputLen(len(samples), srcRate, dstRate)), nil
}

// OutputLen is the number of samples Resample returns for n input samples.
func OutputLen(n, srcRate, dstRate int) int {
	return int(int64(n) * int64(dstRate) / int64(srcRate))
}

// fitLength trims or zero-pads out to n samples.
func fitLength(out []float64, n int) []float64 {
	if len(out) >= n {
		return out[:n:n]
	}
	padded := make([]float64, n)
	copy(padded, out)
	return padded
}

// Downmix averages interleaved frames of the given channel count into mono.
// A trailing partial frame is dropped.
func Downmix(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		out := make([]float64, len(interleaved))
		copy(out, interleaved)
		return out
	}
	frames := len(interleaved) / channels
	out := make([]float64, frames)
	inv := 1 / float64(channels)
	for f := 0; f < frames; f++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += interleaved[f*channels+c]
		}
		out[f] = sum * inv
	}
	return out
}
