package config

import (
	"fmt"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "NOISEMAP_"

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

type envVar struct {
	name string
	set  func(c *Config, v string) error
}

var envVars = []envVar{
	{"ADDR", func(c *Config, v string) error { c.Server.Addr = v; return nil }},
	{"MAX_UPLOAD_BYTES", func(c *Config, v string) error { return parseInt64(v, &c.Server.MaxUploadBytes) }},
	{"ARCHIVE_UPLOADS", func(c *Config, v string) error { return parseBool(v, &c.Server.ArchiveUploads) }},
	{"CORS_ORIGINS", func(c *Config, v string) error { c.Server.CORSOrigins = splitList(v); return nil }},
	{"HEATMAP_LIMIT", func(c *Config, v string) error { return parseInt(v, &c.Server.HeatmapLimit) }},

	{"STORAGE_BACKEND", func(c *Config, v string) error { c.Storage.Backend = v; return nil }},
	{"STORAGE_DIR", func(c *Config, v string) error { c.Storage.Dir = v; return nil }},
	{"S3_BUCKET", func(c *Config, v string) error { c.Storage.Bucket = v; return nil }},
	{"S3_PREFIX", func(c *Config, v string) error { c.Storage.Prefix = v; return nil }},
	{"S3_REGION", func(c *Config, v string) error { c.Storage.Region = v; return nil }},
	{"S3_ENDPOINT", func(c *Config, v string) error { c.Storage.Endpoint = v; return nil }},
	{"S3_PATH_STYLE", func(c *Config, v string) error { return parseBool(v, &c.Storage.PathStyle) }},

	{"BUNDLE_KEY", func(c *Config, v string) error { c.Bundle.Key = v; return nil }},

	{"RECORDS_BACKEND", func(c *Config, v string) error { c.Records.Backend = v; return nil }},
	{"RECORDS_DIR", func(c *Config, v string) error { c.Records.Dir = v; return nil }},
	{"RECORDS_RETENTION", func(c *Config, v string) error { return parseFloat(v, &c.Records.Retention) }},

	{"SAMPLE_RATE", func(c *Config, v string) error { return parseInt(v, &c.Audio.SampleRate) }},
	{"MAX_DURATION", func(c *Config, v string) error { return parseFloat(v, &c.Audio.MaxDuration) }},
	{"FFMPEG", func(c *Config, v string) error { c.Audio.FFmpegPath = v; return nil }},
	{"TEMP_DIR", func(c *Config, v string) error { c.Audio.TempDir = v; return nil }},

	{"LOG_LEVEL", func(c *Config, v string) error { c.Log.Level = v; return nil }},
	{"LOG_FORMAT", func(c *Config, v string) error { c.Log.Format = v; return nil }},
}

// EnvNames lists every recognised environment variable.
func EnvNames() []string {
	names := make([]string, len(envVars))
	for i, e := range envVars {
		names[i] = EnvPrefix + e.name
	}
	return names
}

// ApplyEnv overrides fields from NOISEMAP_* variables. Empty values are
// ignored.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	for _, e := range envVars {
		v, ok := lookup(EnvPrefix + e.name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := e.set(c, strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("config: %s%s: %w", EnvPrefix, e.name, err)
		}
	}
	return nil
}

func parseInt(v string, dst *int) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func parseInt64(v string, dst *int64) error {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func parseFloat(v string, dst *float64) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return err
	}
	*dst = f
	return nil
}

func parseBool(v string, dst *bool) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
