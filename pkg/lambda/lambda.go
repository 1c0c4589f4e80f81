// Package lambda serves the classifier behind API Gateway.
//
// A POST carries the audio in one of three ways:
//
//   - multipart/form-data with an "audio" file and optional latitude,
//     longitude and device_id fields (the browser client);
//   - application/json naming an object already in the blob store
//     (the field device):
//
//     {"mp3_key": "uploads/pi-01/1718000000.mp3", "device_id": "pi-01",
//     "gps_lat": 40.71, "gps_long": -74.0, "timestamp": 1718000000}
//
//   - any other content type, taken as the raw audio file.
//
// GET /heatmap and GET /health mirror the HTTP server. Responses and
// failures have the same JSON shape as the HTTP server.
package lambda

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/haivivi/noisemap/pkg/api"
	"github.com/haivivi/noisemap/pkg/errs"
	"github.com/haivivi/noisemap/pkg/storage"
)

// DefaultMaxBodyBytes bounds the decoded request body.
const DefaultMaxBodyBytes = 6 << 20

// Options configures a Handler.
type Options struct {
	MaxBodyBytes int64
	HeatmapLimit int
	// AllowOrigin is sent as Access-Control-Allow-Origin. Empty sends "*".
	AllowOrigin string
}

// Handler answers API Gateway proxy events.
type Handler struct {
	predictor *api.Predictor
	opts      Options
}

// New creates a Handler around p. p.Blobs is required for JSON requests.
func New(p *api.Predictor, opts Options) *Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.AllowOrigin == "" {
		opts.AllowOrigin = "*"
	}
	return &Handler{predictor: p, opts: opts}
}

// Handle is the lambda.Start entry point.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	switch {
	case req.HTTPMethod == http.MethodOptions:
		return h.respond(http.StatusNoContent, nil), nil
	case req.HTTPMethod == http.MethodGet && strings.HasSuffix(req.Path, "/heatmap"):
		return h.heatmap(ctx, req), nil
	case req.HTTPMethod == http.MethodGet && strings.HasSuffix(req.Path, "/health"):
		return h.respond(http.StatusOK, h.predictor.Health()), nil
	case req.HTTPMethod == http.MethodGet:
		return h.fail(errs.New(errs.KindInvalidInput, "lambda", "unknown route "+req.Path)), nil
	}

	preq, err := h.parsePredict(ctx, req)
	if err != nil {
		return h.fail(err), nil
	}
	resp, err := h.predictor.Predict(ctx, preq)
	if err != nil {
		return h.fail(err), nil
	}
	return h.respond(http.StatusOK, resp), nil
}

func (h *Handler) heatmap(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	window, err := api.ParseWindow(req.QueryStringParameters["range"])
	if err != nil {
		return h.fail(err)
	}
	points, err := h.predictor.Heatmap(ctx, window, h.opts.HeatmapLimit, nil)
	if err != nil {
		return h.fail(err)
	}
	return h.respond(http.StatusOK, points)
}

func (h *Handler) parsePredict(ctx context.Context, req events.APIGatewayProxyRequest) (*api.PredictRequest, error) {
	const op = "lambda.parse"
	body, err := requestBody(req)
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > h.opts.MaxBodyBytes {
		return nil, errs.Newf(errs.KindInvalidInput, op, "body of %d bytes exceeds %d", len(body), h.opts.MaxBodyBytes)
	}

	mediaType, params, _ := mime.ParseMediaType(header(req.Headers, "Content-Type"))
	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		return parseMultipart(body, params["boundary"])
	case mediaType == "application/json" || (mediaType == "" && bytes.HasPrefix(bytes.TrimSpace(body), []byte("{"))):
		return h.parseJSON(ctx, body)
	default:
		return &api.PredictRequest{Audio: body}, nil
	}
}

func requestBody(req events.APIGatewayProxyRequest) ([]byte, error) {
	if !req.IsBase64Encoded {
		return []byte(req.Body), nil
	}
	body, err := base64.StdEncoding.DecodeString(req.Body)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidInput, "lambda.parse", "body is not valid base64", err)
	}
	return body, nil
}

func parseMultipart(body []byte, boundary string) (*api.PredictRequest, error) {
	const op = "lambda.multipart"
	if boundary == "" {
		return nil, errs.New(errs.KindInvalidInput, op, "multipart body without boundary")
	}
	var (
		preq     api.PredictRequest
		lat, lng string
		found    bool
	)
	mr := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errs.Wrap(errs.KindInvalidInput, op, "malformed multipart body", err)
		}
		data, err := io.ReadAll(part)
		if err != nil {
			return nil, errs.Wrap(errs.KindInvalidInput, op, "read part", err)
		}
		switch part.FormName() {
		case "audio":
			preq.Audio, preq.Filename, found = data, part.FileName(), true
		case "latitude":
			lat = string(data)
		case "longitude":
			lng = string(data)
		case "device_id":
			preq.DeviceID = strings.TrimSpace(string(data))
		}
	}
	if !found {
		return nil, errs.New(errs.KindInvalidInput, op, "no audio file provided")
	}
	loc, err := api.ParseLocation(lat, lng)
	if err != nil {
		return nil, err
	}
	preq.Location = loc
	return &preq, nil
}

func (h *Handler) parseJSON(ctx context.Context, body []byte) (*api.PredictRequest, error) {
	const op = "lambda.json"
	var jr jsonRequest
	if err := json.Unmarshal(body, &jr); err != nil {
		return nil, errs.Wrap(errs.KindInvalidInput, op, "malformed JSON body", err)
	}
	key := jr.AudioKey
	if key == "" {
		key = jr.MP3Key
	}
	if key == "" {
		return nil, errs.New(errs.KindInvalidInput, op, "mp3_key or audio_key is required")
	}
	if h.predictor.Blobs == nil {
		return nil, errs.New(errs.KindInternal, op, "no blob store configured")
	}

	preq := &api.PredictRequest{
		Filename:  key,
		DeviceID:  jr.DeviceID,
		Timestamp: jr.Timestamp.Time(),
		AudioKey:  key,
	}
	switch {
	case jr.Lat.Set && jr.Lng.Set:
		loc, err := api.NewLocation(jr.Lat.Value, jr.Lng.Value)
		if err != nil {
			return nil, err
		}
		preq.Location = loc
	case jr.Lat.Set != jr.Lng.Set:
		return nil, errs.New(errs.KindInvalidInput, op, "gps_lat and gps_long must be sent together")
	}

	data, err := h.predictor.Blobs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			return nil, errs.Wrap(errs.KindInvalidInput, op, "no audio object "+key, err)
		}
		return nil, errs.Wrap(errs.KindStorage, op, "fetch audio", err)
	}
	preq.Audio = data
	return preq, nil
}

func (h *Handler) respond(status int, body any) events.APIGatewayProxyResponse {
	resp := events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":                 "application/json",
			"Access-Control-Allow-Origin":  h.opts.AllowOrigin,
			"Access-Control-Allow-Methods": "GET,POST,OPTIONS",
			"Access-Control-Allow-Headers": "Content-Type",
		},
	}
	if body == nil {
		return resp
	}
	data, err := json.Marshal(body)
	if err != nil {
		resp.StatusCode = http.StatusInternalServerError
		data, _ = json.Marshal(api.NewErrorResponse(err))
	}
	resp.Body = string(data)
	return resp
}

func (h *Handler) fail(err error) events.APIGatewayProxyResponse {
	return h.respond(api.StatusOf(err), api.NewErrorResponse(err))
}

func header(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
