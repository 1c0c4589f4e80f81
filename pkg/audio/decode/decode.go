// Package decode turns encoded audio bytes into a mono Waveform at a fixed
// sample rate.
//
// WAV (PCM) and MP3 are decoded natively. Any other container, and WAV
// files with non-PCM payloads, are transcoded to 16-bit PCM WAV by an
// external ffmpeg process first. Every path ends in the same downmix,
// truncate and resample steps, so the waveform a file produces does not
// depend on which process decoded it.
package decode

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/haivivi/noisemap/pkg/audio"
	"github.com/haivivi/noisemap/pkg/audio/resampler"
	"github.com/haivivi/noisemap/pkg/errs"
)

// Sentinel causes carried inside KindDecode errors.
var (
	ErrEmptyAudio           = errors.New("decode: empty audio buffer")
	ErrToolchainUnavailable = errors.New("decode: ffmpeg not available")
	ErrNoSamples            = errors.New("decode: no samples decoded")
)

// errTranscode marks input the native decoders cannot handle but ffmpeg can.
var errTranscode = errors.New("decode: needs transcoding")

// DefaultFFmpeg is the executable looked up on PATH when Config.FFmpegPath
// is empty.
const DefaultFFmpeg = "ffmpeg"

// Config controls decoding.
type Config struct {
	// SampleRate is the output rate in Hz. Required.
	SampleRate int

	// MaxDuration truncates the output. Zero keeps everything.
	MaxDuration time.Duration

	// FFmpegPath names the ffmpeg executable. Defaults to DefaultFFmpeg.
	FFmpegPath string

	// TempDir holds transient files for the ffmpeg path. Defaults to
	// os.TempDir().
	TempDir string
}

// Decoder decodes audio buffers. It is safe for concurrent use.
type Decoder struct {
	cfg Config
}

// New creates a Decoder.
func New(cfg Config) *Decoder {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = DefaultFFmpeg
	}
	return &Decoder{cfg: cfg}
}

// SampleRate returns the output sample rate.
func (d *Decoder) SampleRate() int { return d.cfg.SampleRate }

// MaxDuration returns the truncation window.
func (d *Decoder) MaxDuration() time.Duration { return d.cfg.MaxDuration }

// Format is the container detected from leading bytes.
type Format int

const (
	FormatUnknown Format = iota
	FormatWAV
	FormatMP3
)

func (f Format) String() string {
	switch f {
	case FormatWAV:
		return "wav"
	case FormatMP3:
		return "mp3"
	}
	return "unknown"
}

// Sniff identifies the container from the first bytes of data.
func Sniff(data []byte) Format {
	if len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")) {
		return FormatWAV
	}
	if len(data) >= 3 && bytes.Equal(data[0:3], []byte("ID3")) {
		return FormatMP3
	}
	// MPEG audio frame sync; layer bits 00 would be ADTS AAC.
	if len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 && (data[1]>>1)&0x3 != 0 {
		return FormatMP3
	}
	return FormatUnknown
}

// pcm is interleaved audio at its source rate.
type pcm struct {
	samples    []float64
	channels   int
	sampleRate int
}

// Decode decodes data into a Waveform at the configured sample rate.
// All failures are *errs.Error of kind KindDecode.
func (d *Decoder) Decode(ctx context.Context, data []byte) (*audio.Waveform, error) {
	const op = "decode"
	if len(data) == 0 {
		return nil, errs.Wrap(errs.KindDecode, op, "no audio data", ErrEmptyAudio)
	}
	if d.cfg.SampleRate <= 0 {
		return nil, errs.Newf(errs.KindInternal, op, "invalid target sample rate %d", d.cfg.SampleRate)
	}

	var (
		src *pcm
		err error
	)
	switch Sniff(data) {
	case FormatWAV:
		src, err = decodeWAV(data, d.cfg.MaxDuration)
		if errors.Is(err, errTranscode) {
			src, err = d.transcode(ctx, data)
		}
	case FormatMP3:
		src, err = decodeMP3(data, d.cfg.MaxDuration)
	default:
		src, err = d.transcode(ctx, data)
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindDecode, op, "invalid audio", err)
	}
	return d.finish(src)
}

// finish downmixes, truncates and resamples decoded PCM.
func (d *Decoder) finish(src *pcm) (*audio.Waveform, error) {
	const op = "decode"
	if src.channels <= 0 || src.sampleRate <= 0 {
		return nil, errs.Newf(errs.KindDecode, op, "invalid stream: %d channels at %d Hz", src.channels, src.sampleRate)
	}
	mono := resampler.Downmix(src.samples, src.channels)
	in := &audio.Waveform{Samples: mono, SampleRate: src.sampleRate}
	in.Truncate(d.cfg.MaxDuration)
	if in.Len() == 0 {
		return nil, errs.Wrap(errs.KindDecode, op, "invalid audio", ErrNoSamples)
	}

	out, err := resampler.Resample(in.Samples, in.SampleRate, d.cfg.SampleRate)
	if err != nil {
		return nil, errs.Wrap(errs.KindDecode, op, "resample failed", err)
	}
	w := &audio.Waveform{Samples: out, SampleRate: d.cfg.SampleRate}
	w.Truncate(d.cfg.MaxDuration)
	if w.Len() == 0 {
		return nil, errs.Wrap(errs.KindDecode, op, "invalid audio", ErrNoSamples)
	}
	return w, nil
}

// maxFrames returns the number of frames kept at rate, or -1 for no limit.
func maxFrames(maxDur time.Duration, rate int) int {
	if maxDur <= 0 {
		return -1
	}
	return int(maxDur.Seconds()*float64(rate)) + 1
}
