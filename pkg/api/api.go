// Package api holds the transport-neutral request flow shared by the HTTP
// server and the Lambda handler: classify an upload, optionally archive it,
// record the prediction, and answer heatmap queries.
//
// Both transports render the same PredictResponse, HeatmapPoint and
// ErrorResponse bodies.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haivivi/noisemap/pkg/audio/decode"
	"github.com/haivivi/noisemap/pkg/classify"
	"github.com/haivivi/noisemap/pkg/errs"
	"github.com/haivivi/noisemap/pkg/metrics"
	"github.com/haivivi/noisemap/pkg/records"
	"github.com/haivivi/noisemap/pkg/storage"
)

// UploadPrefix is the BlobStore prefix of archived uploads.
const UploadPrefix = "uploads/"

// PredictRequest is one classification request.
type PredictRequest struct {
	Audio    []byte
	Filename string
	Location *Location
	DeviceID string
	// Timestamp is when the clip was recorded. Zero means now.
	Timestamp time.Time
	// AudioKey marks audio that already lives in the BlobStore; it is
	// recorded as is and never archived again.
	AudioKey string
}

// PredictResponse is the body of a successful prediction.
type PredictResponse struct {
	ID               string  `json:"id"`
	PredictedClass   string  `json:"predicted_class"`
	Label            string  `json:"label"`
	Confidence       float64 `json:"confidence"`
	NoiseLevel       float64 `json:"noise_level"`
	LocationReceived string  `json:"location_received"`
	Message          string  `json:"message"`
}

// Predictor runs the prediction flow. Records, Blobs and Metrics are
// optional.
type Predictor struct {
	Service *classify.Service
	Records records.Store
	Blobs   storage.BlobStore
	Metrics *metrics.Metrics
	// Archive stores raw uploads under UploadPrefix when Blobs is set.
	Archive bool
	Now     func() time.Time
}

func (p *Predictor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Predict classifies req.Audio and records the outcome. No record is
// written and no label is returned when classification fails.
func (p *Predictor) Predict(ctx context.Context, req *PredictRequest) (*PredictResponse, error) {
	const op = "api.predict"
	start := time.Now()

	res, err := p.Service.Classify(ctx, req.Audio)
	if err != nil {
		p.Metrics.ObserveFailure(err, time.Since(start))
		slog.Warn("prediction failed", "kind", errs.KindOf(err), "bytes", len(req.Audio), "error", err)
		return nil, err
	}
	p.Metrics.ObservePrediction(res.Label, time.Since(start))

	id, err := uuid.NewV7()
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, op, "generate id", err)
	}
	ts := req.Timestamp
	if ts.IsZero() {
		ts = p.now()
	}

	rec := &records.Record{
		ID:         id.String(),
		Timestamp:  ts,
		DeviceID:   req.DeviceID,
		Label:      res.Label,
		Confidence: res.Confidence,
		NoiseLevel: res.NoiseLevel,
		AudioKey:   req.AudioKey,
	}
	if req.Location != nil {
		lat, lng := req.Location.Lat, req.Location.Lng
		rec.Latitude, rec.Longitude = &lat, &lng
	}

	if p.Archive && p.Blobs != nil && req.AudioKey == "" {
		key := UploadKey(ts, rec.ID, req.Filename, req.Audio)
		if err := p.Blobs.Put(ctx, key, req.Audio); err != nil {
			return nil, errs.Wrap(errs.KindStorage, op, "archive upload", err)
		}
		rec.AudioKey = key
	}

	if p.Records != nil {
		if err := p.Records.Put(ctx, rec); err != nil {
			return nil, errs.Wrap(errs.KindStorage, op, "store record", err)
		}
	}

	slog.Info("prediction",
		"id", rec.ID,
		"label", res.Label,
		"confidence", res.Confidence,
		"noise_level", res.NoiseLevel,
		"located", req.Location != nil,
		"device", req.DeviceID,
		"elapsed", time.Since(start))

	return &PredictResponse{
		ID:               rec.ID,
		PredictedClass:   res.Label,
		Label:            res.Label,
		Confidence:       res.Confidence,
		NoiseLevel:       res.NoiseLevel,
		LocationReceived: req.Location.String(),
		Message:          fmt.Sprintf("classified as %s (%.1f%% confidence)", res.Label, res.Confidence*100),
	}, nil
}

// UploadKey returns the archive key for an upload:
// uploads/{YYYYMMDD}/{id}{ext}. The extension comes from the client file
// name, or from the content when the name has none.
func UploadKey(ts time.Time, id, filename string, data []byte) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" || len(ext) > 6 || strings.ContainsAny(ext, `/\ `) {
		switch decode.Sniff(data) {
		case decode.FormatWAV:
			ext = ".wav"
		case decode.FormatMP3:
			ext = ".mp3"
		default:
			ext = ".bin"
		}
	}
	return UploadPrefix + ts.UTC().Format("20060102") + "/" + id + ext
}
