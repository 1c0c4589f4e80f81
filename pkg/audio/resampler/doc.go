// Package resampler converts float64 audio between sample rates.
//
// Rate conversion is done by github.com/tphakala/go-audio-resampling, a
// pure Go polyphase resampler (no CGO/FFI dependencies). Whole buffers are
// processed and flushed at once and the output length is fixed by the
// input length and the two rates.
//
// It supports:
//   - Sample rate conversion (e.g., 44100Hz to 22050Hz)
//   - Channel conversion (interleaved multi-channel to mono)
//
// Example usage:
//
//	mono := resampler.Downmix(interleaved, 2)
//	out, err := resampler.Resample(mono, 44100, 22050)
//	if err != nil {
//	    log.Fatal(err)
//	}
package resampler
