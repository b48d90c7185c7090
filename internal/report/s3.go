package report

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/drlab-io/drlab/internal/config"
)

// S3Archive implements Archive on an S3-compatible object store (AWS S3
// or MinIO). Used by multi-node deployments where the filesystem backend
// is not shared.
type S3Archive struct {
	client *s3.Client
	bucket string
	logger zerolog.Logger
}

// NewS3Archive creates an S3-backed archive from configuration. When no
// static credentials are configured, the default credentials chain is used.
func NewS3Archive(ctx context.Context, cfg config.S3ReportsConfig, logger zerolog.Logger) (*S3Archive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 report archive requires a bucket")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &S3Archive{
		client: client,
		bucket: cfg.Bucket,
		logger: logger.With().Str("component", "report_archive").Logger(),
	}, nil
}

// Store archives a report document for the batch.
func (a *S3Archive) Store(ctx context.Context, batchNumber string, r io.Reader) error {
	key := objectKey(batchNumber)
	contentType := "application/pdf"

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &a.bucket,
		Key:         &key,
		Body:        r,
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to archive report %s: %w", batchNumber, err)
	}

	a.logger.Info().Str("batch_number", batchNumber).Str("key", key).Msg("report archived")
	return nil
}

// Open retrieves an archived report.
func (a *S3Archive) Open(ctx context.Context, batchNumber string) (io.ReadCloser, error) {
	key := objectKey(batchNumber)
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &a.bucket,
		Key:    &key,
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to open report %s: %w", batchNumber, err)
	}
	return out.Body, nil
}

// Exists reports whether a report is archived for the batch.
func (a *S3Archive) Exists(ctx context.Context, batchNumber string) (bool, error) {
	key := objectKey(batchNumber)
	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &a.bucket,
		Key:    &key,
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check report %s: %w", batchNumber, err)
	}
	return true, nil
}

var _ Archive = (*S3Archive)(nil)
