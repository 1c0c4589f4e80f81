package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Backend names accepted by Config.Backend.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Config selects and configures a BlobStore.
type Config struct {
	Backend string `yaml:"backend"`

	// Dir is the root of the local backend.
	Dir string `yaml:"dir"`

	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
	// Endpoint overrides the S3 endpoint for compatible stores.
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// Open builds the configured store. The S3 backend loads credentials from
// the default AWS chain (environment, shared config, instance role).
func Open(ctx context.Context, cfg Config) (BlobStore, error) {
	switch cfg.Backend {
	case "", BackendLocal:
		if cfg.Dir == "" {
			return nil, fmt.Errorf("storage: local backend needs a directory")
		}
		return NewLocal(cfg.Dir)
	case BackendS3:
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("storage: s3 backend needs a bucket")
		}
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("storage: load aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			o.UsePathStyle = cfg.PathStyle
		})
		return NewS3(client, cfg.Bucket, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}
