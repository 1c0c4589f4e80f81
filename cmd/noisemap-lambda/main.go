// Command noisemap-lambda serves the classifier as an AWS Lambda function
// behind API Gateway.
//
// Configuration comes from NOISEMAP_* environment variables. The bundle is
// loaded from the blob store once per cold start.
package main

import (
	"context"
	"log/slog"
	"os"

	awslambda "github.com/aws/aws-lambda-go/lambda"

	"github.com/haivivi/noisemap/pkg/api"
	"github.com/haivivi/noisemap/pkg/classify"
	"github.com/haivivi/noisemap/pkg/config"
	"github.com/haivivi/noisemap/pkg/features"
	"github.com/haivivi/noisemap/pkg/lambda"
	"github.com/haivivi/noisemap/pkg/storage"
)

func main() {
	h, err := setup(context.Background())
	if err != nil {
		slog.Error("cold start failed", "error", err)
		os.Exit(1)
	}
	awslambda.Start(h.Handle)
}

func setup(ctx context.Context) (*lambda.Handler, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg, err := config.Load(os.Getenv("NOISEMAP_CONFIG"))
	if err != nil {
		return nil, err
	}
	// CloudWatch parses JSON log lines.
	if os.Getenv("NOISEMAP_LOG_FORMAT") == "" {
		cfg.Log.Format = "json"
	}
	if err := cfg.Log.SetupLogging(os.Stderr); err != nil {
		return nil, err
	}

	blobs, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	recipe, err := cfg.Recipe()
	if err != nil {
		return nil, err
	}
	svc, err := classify.Load(ctx, blobs, cfg.Bundle.Key, recipe,
		features.WithFFmpeg(cfg.Audio.FFmpegPath), features.WithTempDir(cfg.Audio.TempDir))
	if err != nil {
		return nil, err
	}
	store, err := cfg.Records.Open()
	if err != nil {
		return nil, err
	}

	if err := svc.CheckToolchain(); err != nil {
		slog.Warn("ffmpeg unavailable, only WAV and MP3 uploads will decode", "error", err)
	}
	slog.Info("cold start", "recipe", svc.Bundle().Fingerprint, "labels", svc.Labels(), "records", cfg.Records.Backend)
	return lambda.New(&api.Predictor{
		Service: svc,
		Records: store,
		Blobs:   blobs,
		Archive: cfg.Server.ArchiveUploads,
	}, lambda.Options{
		MaxBodyBytes: min(cfg.Server.MaxUploadBytes, lambda.DefaultMaxBodyBytes),
		HeatmapLimit: cfg.Server.HeatmapLimit,
	}), nil
}
