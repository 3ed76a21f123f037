// Package bootstrap wires internal/config into concrete Redis and S3
// clients, the way the teacher's cmd/*/main.go construct a
// SQLiteRepository from a --db flag — here there are two external
// systems to dial instead of one file to open.
package bootstrap

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"subtitle-pipeline/internal/blob"
	"subtitle-pipeline/internal/config"
	"subtitle-pipeline/internal/store"
)

// NewStore dials Redis per cfg.RedisURL and wraps it as a store.Store.
func NewStore(cfg *config.Config) (store.Store, *redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	return store.NewRedisStore(client), client, nil
}

// NewBlobStore constructs an S3-backed blob.Store per cfg. It does so
// for every transcription provider, including mock.
func NewBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	if cfg.AWSRegion != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.AWSRegion))
	}
	if cfg.AWSAccessKeyID != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return blob.NewS3Store(client, cfg.S3Bucket), nil
}
