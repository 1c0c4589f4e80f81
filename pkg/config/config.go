// Package config loads noisemap settings.
//
// Settings are resolved in increasing precedence:
//
//  1. built-in defaults (Default)
//  2. a YAML file (Load)
//  3. NOISEMAP_* environment variables, optionally read from a .env file
//  4. command-line flags, applied by the caller
//
// Example file:
//
//	server:
//	  addr: ":8080"
//	  max_upload_bytes: 10485760
//	  archive_uploads: true
//	  cors_origins: ["https://noise.example.org"]
//	storage:
//	  backend: s3
//	  bucket: noise-map-models
//	bundle:
//	  key: urban_noise_classifier.nmb
//	records:
//	  backend: badger
//	  dir: /var/lib/noisemap/records
//	audio:
//	  sample_rate: 22050
//	  max_duration: 5
//	log:
//	  level: info
//	  format: json
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"github.com/haivivi/noisemap/pkg/features"
	"github.com/haivivi/noisemap/pkg/model"
	"github.com/haivivi/noisemap/pkg/storage"
)

// Records backends.
const (
	RecordsBadger = "badger"
	RecordsMemory = "memory"
)

// Config is the complete noisemap configuration.
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Storage storage.Config `yaml:"storage"`
	Bundle  BundleConfig   `yaml:"bundle"`
	Records RecordsConfig  `yaml:"records"`
	Audio   AudioConfig    `yaml:"audio"`
	Train   TrainConfig    `yaml:"train"`
	Log     LogConfig      `yaml:"log"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
	ArchiveUploads bool     `yaml:"archive_uploads"`
	CORSOrigins    []string `yaml:"cors_origins"`
	// ShutdownTimeout is in seconds.
	ShutdownTimeout float64 `yaml:"shutdown_timeout"`
	// HeatmapLimit caps the number of records returned by /heatmap.
	HeatmapLimit int `yaml:"heatmap_limit"`
}

// BundleConfig locates the trained model.
type BundleConfig struct {
	// Key is the object key in the blob store.
	Key string `yaml:"key"`
}

// RecordsConfig selects the prediction record store.
type RecordsConfig struct {
	Backend  string `yaml:"backend"`
	Dir      string `yaml:"dir"`
	InMemory bool   `yaml:"in_memory"`
	// Retention in hours; records older than this are pruned. 0 keeps all.
	Retention float64 `yaml:"retention"`
}

// AudioConfig adjusts the feature recipe and decoder.
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	// MaxDuration is in seconds.
	MaxDuration float64 `yaml:"max_duration"`
	FFmpegPath  string  `yaml:"ffmpeg"`
	TempDir     string  `yaml:"temp_dir"`
}

// TrainConfig holds training defaults.
type TrainConfig struct {
	Corpus   string  `yaml:"corpus"`
	HoldOut  float64 `yaml:"hold_out"`
	Workers  int     `yaml:"workers"`
	Trees    int     `yaml:"trees"`
	MaxDepth int     `yaml:"max_depth"`
	Seed     uint64  `yaml:"seed"`
	Scaling  string  `yaml:"scaling"`
}

// LogConfig selects the default slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	forest := model.DefaultForestConfig()
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			MaxUploadBytes:  10 << 20,
			ShutdownTimeout: 10,
			HeatmapLimit:    5000,
		},
		Storage: storage.Config{
			Backend: storage.BackendLocal,
			Dir:     "data",
		},
		Bundle: BundleConfig{
			Key: model.DefaultBundleKey,
		},
		Records: RecordsConfig{
			Backend: RecordsMemory,
		},
		Audio: AudioConfig{
			SampleRate:  features.DefaultSampleRate,
			MaxDuration: features.DefaultMaxDuration.Seconds(),
			FFmpegPath:  "ffmpeg",
		},
		Train: TrainConfig{
			HoldOut:  0.2,
			Trees:    forest.NumTrees,
			MaxDepth: forest.MaxDepth,
			Seed:     forest.Seed,
			Scaling:  string(model.ScalingStandard),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path over the defaults and then applies
// NOISEMAP_* environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.UnmarshalWithOptions(data, cfg, yaml.Strict()); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding variables already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				slog.Debug("no .env file, using process environment", "path", p)
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("config: server.max_upload_bytes must be positive")
	}
	if c.Server.HeatmapLimit < 0 {
		return fmt.Errorf("config: server.heatmap_limit must not be negative")
	}
	switch c.Storage.Backend {
	case "", storage.BackendLocal, storage.BackendS3:
	default:
		return fmt.Errorf("config: unknown storage.backend %q", c.Storage.Backend)
	}
	switch c.Records.Backend {
	case RecordsMemory:
	case RecordsBadger:
		if c.Records.Dir == "" && !c.Records.InMemory {
			return fmt.Errorf("config: records.dir is required for the badger backend")
		}
	default:
		return fmt.Errorf("config: unknown records.backend %q", c.Records.Backend)
	}
	if c.Bundle.Key == "" {
		return fmt.Errorf("config: bundle.key is required")
	}
	if _, err := c.Recipe(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Train.HoldOut < 0 || c.Train.HoldOut >= 1 {
		return fmt.Errorf("config: train.hold_out must be in [0, 1)")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: unknown log.format %q", c.Log.Format)
	}
	return nil
}

// Recipe returns the canonical feature recipe adjusted by the audio
// settings.
func (c *Config) Recipe() (features.Recipe, error) {
	r := features.Canonical()
	if c.Audio.SampleRate > 0 {
		r = r.WithSampleRate(c.Audio.SampleRate)
	}
	if c.Audio.MaxDuration > 0 {
		r = r.WithMaxDuration(seconds(c.Audio.MaxDuration))
	}
	return r, r.Validate()
}

// ForestConfig returns the forest parameters from the train section.
func (c *Config) ForestConfig() model.ForestConfig {
	f := model.DefaultForestConfig()
	if c.Train.Trees > 0 {
		f.NumTrees = c.Train.Trees
	}
	if c.Train.MaxDepth > 0 {
		f.MaxDepth = c.Train.MaxDepth
	}
	f.Seed = c.Train.Seed
	f.Workers = c.Train.Workers
	return f
}

// ShutdownTimeout returns the graceful shutdown budget.
func (c *Config) ShutdownTimeout() time.Duration {
	return seconds(c.Server.ShutdownTimeout)
}

// Retention returns the record retention window, 0 for unlimited.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Records.Retention * float64(time.Hour))
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
