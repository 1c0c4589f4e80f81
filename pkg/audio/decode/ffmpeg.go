package decode

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// CheckToolchain reports whether the configured ffmpeg executable can be
// resolved. Formats other than WAV and MP3 cannot be decoded without it.
func (d *Decoder) CheckToolchain() error {
	if _, err := exec.LookPath(d.cfg.FFmpegPath); err != nil {
		return fmt.Errorf("%w: %v", ErrToolchainUnavailable, err)
	}
	return nil
}

// transcode converts data to 16-bit PCM WAV with ffmpeg and decodes the
// result natively. Channel layout and sample rate are left untouched so the
// common downmix and resample steps apply. Temporary files are removed on
// every return path.
func (d *Decoder) transcode(ctx context.Context, data []byte) (*pcm, error) {
	bin, err := exec.LookPath(d.cfg.FFmpegPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrToolchainUnavailable, err)
	}

	dir, err := os.MkdirTemp(d.cfg.TempDir, "noisemap-decode-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("decode: remove temp dir", "dir", dir, "error", err)
		}
	}()

	in := filepath.Join(dir, "input")
	out := filepath.Join(dir, "output.wav")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, fmt.Errorf("write temp input: %w", err)
	}

	args := []string{"-nostdin", "-hide_banner", "-loglevel", "error", "-i", in}
	if d.cfg.MaxDuration > 0 {
		args = append(args, "-t", strconv.FormatFloat(d.cfg.MaxDuration.Seconds(), 'f', -1, 64))
	}
	args = append(args, "-vn", "-c:a", "pcm_s16le", "-f", "wav", "-y", out)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("ffmpeg: %s", msg)
	}

	wavData, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("read transcoded audio: %w", err)
	}
	src, err := decodeWAV(wavData, d.cfg.MaxDuration)
	if err != nil {
		return nil, fmt.Errorf("decode transcoded audio: %w", err)
	}
	return src, nil
}
