// Package s3 offloads snapshot payloads to an S3 bucket. Offload is
// optional; a nil *Uploader is a valid no-op.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/modules/snapshots"
)

// Uploader pushes exported snapshots to S3 under snapshots/<id>.json.
type Uploader struct {
	bucket   string
	uploader *manager.Uploader
	log      zerolog.Logger
}

// New builds an uploader from the S3 section of the configuration. Returns
// (nil, nil) when no bucket is configured.
func New(ctx context.Context, cfg config.S3Config, log zerolog.Logger) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	// Explicit keys override the default credential chain.
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg)
	return &Uploader{
		bucket:   cfg.Bucket,
		uploader: manager.NewUploader(client),
		log:      log.With().Str("component", "s3_uploader").Logger(),
	}, nil
}

// Upload writes the snapshot as JSON to the bucket. Safe on a nil receiver.
func (u *Uploader) Upload(ctx context.Context, snapshot *snapshots.Snapshot) error {
	if u == nil {
		return nil
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot %s: %w", snapshot.ID, err)
	}

	key := fmt.Sprintf("snapshots/%s.json", snapshot.ID)
	_, err = u.uploader.Upload(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload snapshot %s: %w", snapshot.ID, err)
	}

	u.log.Info().Str("snapshot_id", snapshot.ID).Str("key", key).Msg("Uploaded snapshot to S3")
	return nil
}
