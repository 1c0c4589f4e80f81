package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/haivivi/noisemap/pkg/classify/classifytest"
	"github.com/haivivi/noisemap/pkg/errs"
	"github.com/haivivi/noisemap/pkg/records"
	"github.com/haivivi/noisemap/pkg/storage"
)

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newPredictor(t *testing.T) (*Predictor, *records.Memory, *storage.Local) {
	t.Helper()
	blobs, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	recs := records.NewMemory()
	return &Predictor{
		Service: classifytest.Service(t),
		Records: recs,
		Blobs:   blobs,
		Archive: true,
		Now:     func() time.Time { return fixedNow },
	}, recs, blobs
}

func TestPredict(t *testing.T) {
	ctx := context.Background()
	p, recs, blobs := newPredictor(t)
	loc, _ := NewLocation(40.7128, -74.006)

	resp, err := p.Predict(ctx, &PredictRequest{
		Audio:    classifytest.WAV(t, "drilling", 7),
		Filename: "recording.WAV",
		Location: loc,
		DeviceID: "pi-01",
	})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if resp.Label != "drilling" || resp.PredictedClass != resp.Label {
		t.Errorf("label = %q / %q, want drilling", resp.Label, resp.PredictedClass)
	}
	if resp.Confidence <= 0 || resp.Confidence > 1 {
		t.Errorf("confidence = %v", resp.Confidence)
	}
	if resp.LocationReceived != "40.712800, -74.006000" {
		t.Errorf("location_received = %q", resp.LocationReceived)
	}
	if !strings.Contains(resp.Message, "drilling") {
		t.Errorf("message = %q", resp.Message)
	}

	rec, err := recs.Get(ctx, resp.ID)
	if err != nil {
		t.Fatalf("record not stored: %v", err)
	}
	if rec.DeviceID != "pi-01" || !rec.HasLocation() || !rec.Timestamp.Equal(fixedNow) {
		t.Errorf("record = %+v", rec)
	}
	want := "uploads/20261019/" + resp.ID + ".wav"
	if rec.AudioKey != want {
		t.Errorf("AudioKey = %q, want %q", rec.AudioKey, want)
	}
	if ok, err := blobs.Exists(ctx, want); err != nil || !ok {
		t.Errorf("archived upload missing: %v %v", ok, err)
	}
}

func TestPredict_Failure(t *testing.T) {
	ctx := context.Background()
	p, recs, _ := newPredictor(t)

	_, err := p.Predict(ctx, &PredictRequest{Audio: []byte("not audio at all")})
	if !errs.Is(err, errs.KindDecode) {
		t.Fatalf("err = %v, want decode", err)
	}
	if StatusOf(err) != http.StatusBadRequest {
		t.Errorf("StatusOf = %d", StatusOf(err))
	}
	got, _ := recs.Range(ctx, time.Time{}, 0)
	if len(got) != 0 {
		t.Errorf("failed prediction stored %d records", len(got))
	}
}

type failingStore struct{ storage.BlobStore }

func (failingStore) Put(context.Context, string, []byte) error { return errors.New("bucket gone") }

func TestPredict_ArchiveFailure(t *testing.T) {
	p, _, _ := newPredictor(t)
	p.Blobs = failingStore{}

	_, err := p.Predict(context.Background(), &PredictRequest{Audio: classifytest.WAV(t, "traffic", 1)})
	if !errs.Is(err, errs.KindStorage) {
		t.Fatalf("err = %v, want storage", err)
	}
	if StatusOf(err) != http.StatusBadGateway {
		t.Errorf("StatusOf = %d", StatusOf(err))
	}
}

func TestPredict_ExistingAudioKey(t *testing.T) {
	ctx := context.Background()
	p, recs, blobs := newPredictor(t)

	resp, err := p.Predict(ctx, &PredictRequest{
		Audio:    classifytest.WAV(t, "traffic", 2),
		AudioKey: "device/clip.wav",
	})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	rec, _ := recs.Get(ctx, resp.ID)
	if rec.AudioKey != "device/clip.wav" {
		t.Errorf("AudioKey = %q", rec.AudioKey)
	}
	if ok, _ := blobs.Exists(ctx, UploadKey(fixedNow, resp.ID, "", nil)); ok {
		t.Error("audio fetched from the store was archived again")
	}
	if resp.LocationReceived != "unknown" {
		t.Errorf("location_received = %q", resp.LocationReceived)
	}
}

func TestHeatmap(t *testing.T) {
	ctx := context.Background()
	p, recs, _ := newPredictor(t)

	lat, lng := 51.5, -0.12
	put := func(id string, age time.Duration, located bool) {
		r := &records.Record{ID: id, Timestamp: fixedNow.Add(-age), Label: "siren", Confidence: 0.9, NoiseLevel: -20}
		if located {
			r.Latitude, r.Longitude = &lat, &lng
		}
		if id == "b" {
			r.AudioKey = "uploads/x.wav"
		}
		if err := recs.Put(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	put("a", time.Hour, true)
	put("b", 2*time.Hour, true)
	put("c", 3*time.Hour, false)
	put("d", 30*time.Hour, true)

	points, err := p.Heatmap(ctx, 24*time.Hour, 0, func(id string) string { return "/audio/" + id })
	if err != nil {
		t.Fatalf("Heatmap: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2: %+v", len(points), points)
	}
	if points[0].ID != "a" || points[1].ID != "b" {
		t.Errorf("order = %s,%s, want a,b", points[0].ID, points[1].ID)
	}
	if points[0].AudioURL != "" || points[1].AudioURL != "/audio/b" {
		t.Errorf("audio urls = %q, %q", points[0].AudioURL, points[1].AudioURL)
	}
	if points[0].Timestamp != "2026-10-19T11:00:00Z" {
		t.Errorf("timestamp = %q", points[0].Timestamp)
	}

	p.Records = nil
	points, err = p.Heatmap(ctx, time.Hour, 0, nil)
	if err != nil || points == nil || len(points) != 0 {
		t.Errorf("no store: points=%v err=%v, want empty non-nil", points, err)
	}
}

func TestHeatmapLimitCountsLocatedOnly(t *testing.T) {
	ctx := context.Background()
	p, recs, _ := newPredictor(t)

	lat, lng := 40.7, -74.0
	// Newest records carry no location; older located ones must still fill
	// the limit.
	for i, located := range []bool{false, false, false, true, true, true} {
		r := &records.Record{
			ID:        strconv.Itoa(i),
			Timestamp: fixedNow.Add(-time.Duration(i+1) * time.Minute),
			Label:     "traffic",
		}
		if located {
			r.Latitude, r.Longitude = &lat, &lng
		}
		if err := recs.Put(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	points, err := p.Heatmap(ctx, time.Hour, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 2 || points[0].ID != "3" || points[1].ID != "4" {
		t.Errorf("points = %+v, want ids 3,4", points)
	}
}

func TestAudio(t *testing.T) {
	ctx := context.Background()
	p, _, _ := newPredictor(t)
	clip := classifytest.WAV(t, "traffic", 3)

	resp, err := p.Predict(ctx, &PredictRequest{Audio: clip})
	if err != nil {
		t.Fatal(err)
	}
	data, key, err := p.Audio(ctx, resp.ID)
	if err != nil {
		t.Fatalf("Audio: %v", err)
	}
	if !bytes.Equal(data, clip) || !strings.HasSuffix(key, ".wav") {
		t.Errorf("Audio returned %d bytes at %q", len(data), key)
	}

	_, _, err = p.Audio(ctx, "missing")
	if StatusOf(err) != http.StatusNotFound {
		t.Errorf("missing record status = %d (%v)", StatusOf(err), err)
	}
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		lat, lng string
		want     string
		wantErr  bool
	}{
		{"", "", "unknown", false},
		{"unknown", "unknown", "unknown", false},
		{"12.5", "-3.25", "12.500000, -3.250000", false},
		{" 0 ", "0", "0.000000, 0.000000", false},
		{"12.5", "", "", true},
		{"north", "1", "", true},
		{"91", "0", "", true},
		{"0", "-180.5", "", true},
		{"NaN", "0", "", true},
	}
	for _, tt := range tests {
		loc, err := ParseLocation(tt.lat, tt.lng)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLocation(%q, %q) err = %v, wantErr %v", tt.lat, tt.lng, err, tt.wantErr)
			continue
		}
		if err != nil {
			if !errs.Is(err, errs.KindInvalidInput) {
				t.Errorf("ParseLocation(%q, %q) kind = %s", tt.lat, tt.lng, errs.KindOf(err))
			}
			continue
		}
		if got := loc.String(); got != tt.want {
			t.Errorf("ParseLocation(%q, %q) = %q, want %q", tt.lat, tt.lng, got, tt.want)
		}
	}
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"", 24 * time.Hour, false},
		{"24h", 24 * time.Hour, false},
		{"90m", 90 * time.Minute, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"0h", 0, true},
		{"-1h", 0, true},
		{"400d", 0, true},
		{"week", 0, true},
		{"xd", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseWindow(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseWindow(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseWindow(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestUploadKey(t *testing.T) {
	wav := classifytest.WAV(t, "traffic", 0)
	tests := []struct {
		filename string
		data     []byte
		want     string
	}{
		{"clip.MP3", nil, "uploads/20261019/id.mp3"},
		{"blob", wav, "uploads/20261019/id.wav"},
		{"", []byte("ID3xxxx"), "uploads/20261019/id.mp3"},
		{"", []byte("??"), "uploads/20261019/id.bin"},
	}
	for _, tt := range tests {
		if got := UploadKey(fixedNow, "id", tt.filename, tt.data); got != tt.want {
			t.Errorf("UploadKey(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestErrorResponse(t *testing.T) {
	err := errs.New(errs.KindFeatureExtraction, "features.extract", "waveform is silent")
	body := NewErrorResponse(err)
	if body.Error.Kind != errs.KindFeatureExtraction || body.Error.Message != "waveform is silent" {
		t.Errorf("body = %+v", body)
	}
	if StatusOf(err) != http.StatusUnprocessableEntity {
		t.Errorf("StatusOf = %d", StatusOf(err))
	}
	if StatusOf(&http.MaxBytesError{Limit: 10}) != http.StatusRequestEntityTooLarge {
		t.Error("MaxBytesError should map to 413")
	}
}
