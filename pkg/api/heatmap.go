package api

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/haivivi/noisemap/pkg/errs"
)

// DefaultWindow is the heatmap range when the client sends none.
const DefaultWindow = 24 * time.Hour

// MaxWindow bounds the heatmap range.
const MaxWindow = 366 * 24 * time.Hour

// HeatmapPoint is one located prediction.
type HeatmapPoint struct {
	ID         string  `json:"id"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Timestamp  string  `json:"timestamp"`
	Label      string  `json:"label"`
	NoiseLevel float64 `json:"noise_level"`
	Confidence float64 `json:"confidence"`
	AudioURL   string  `json:"audio_url,omitempty"`
}

// ParseWindow parses a heatmap range such as "24h", "90m" or "7d".
// Empty means DefaultWindow.
func ParseWindow(s string) (time.Duration, error) {
	const op = "api.heatmap"
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultWindow, nil
	}
	var d time.Duration
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, errs.Newf(errs.KindInvalidInput, op, "invalid range %q", s)
		}
		d = time.Duration(n) * 24 * time.Hour
	} else {
		var err error
		if d, err = time.ParseDuration(s); err != nil {
			return 0, errs.Newf(errs.KindInvalidInput, op, "invalid range %q", s)
		}
	}
	if d <= 0 || d > MaxWindow {
		return 0, errs.Newf(errs.KindInvalidInput, op, "range %q outside (0, %dd]", s, int(MaxWindow/(24*time.Hour)))
	}
	return d, nil
}

// Heatmap returns located predictions made within window, newest first, at
// most limit of them (limit <= 0 means all). Records without a location do
// not count toward limit. audioURL maps an archived AudioKey to a client
// URL; nil omits it.
func (p *Predictor) Heatmap(ctx context.Context, window time.Duration, limit int, audioURL func(id string) string) ([]HeatmapPoint, error) {
	points := []HeatmapPoint{}
	if p.Records == nil {
		return points, nil
	}
	recs, err := p.Records.Range(ctx, p.now().Add(-window), 0)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "api.heatmap", "query records", err)
	}
	for _, r := range recs {
		if limit > 0 && len(points) == limit {
			break
		}
		if !r.HasLocation() {
			continue
		}
		pt := HeatmapPoint{
			ID:         r.ID,
			Lat:        *r.Latitude,
			Lng:        *r.Longitude,
			Timestamp:  r.Timestamp.UTC().Format(time.RFC3339),
			Label:      r.Label,
			NoiseLevel: r.NoiseLevel,
			Confidence: r.Confidence,
		}
		if r.AudioKey != "" && audioURL != nil {
			pt.AudioURL = audioURL(r.ID)
		}
		points = append(points, pt)
	}
	return points, nil
}

// Audio returns the archived upload of a record.
func (p *Predictor) Audio(ctx context.Context, id string) ([]byte, string, error) {
	const op = "api.audio"
	if p.Records == nil || p.Blobs == nil {
		return nil, "", errs.New(errs.KindInvalidInput, op, "audio archive is disabled")
	}
	rec, err := p.Records.Get(ctx, id)
	if err != nil {
		return nil, "", errs.Wrap(errs.KindInvalidInput, op, "unknown record", err)
	}
	if rec.AudioKey == "" {
		return nil, "", errs.New(errs.KindInvalidInput, op, "record has no archived audio")
	}
	data, err := p.Blobs.Get(ctx, rec.AudioKey)
	if err != nil {
		return nil, "", errs.Wrap(errs.KindStorage, op, "fetch audio", err)
	}
	return data, rec.AudioKey, nil
}
