// Package recording stores finished call recordings in S3.
package recording

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrNoBucket is returned when an uploader is built without a bucket.
var ErrNoBucket = errors.New("recording: bucket is required")

// PutObjectAPI is the S3 call the uploader needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader writes WAV recordings to a bucket.
type S3Uploader struct {
	client PutObjectAPI
	bucket string
	prefix string
	now    func() time.Time
	logger *slog.Logger
}

// NewS3Uploader creates an uploader over client.
func NewS3Uploader(client PutObjectAPI, bucket, prefix string, logger *slog.Logger) (*S3Uploader, error) {
	if bucket == "" {
		return nil, ErrNoBucket
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Uploader{
		client: client,
		bucket: bucket,
		prefix: prefix,
		now:    time.Now,
		logger: logger.With("component", "recording"),
	}, nil
}

// NewFromEnv loads the default AWS credential chain for region and builds an
// uploader. An empty bucket disables recording and returns nil, nil.
func NewFromEnv(ctx context.Context, region, bucket, prefix string, logger *slog.Logger) (*S3Uploader, error) {
	if bucket == "" {
		return nil, nil
	}

	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("recording: load aws config: %w", err)
	}

	return NewS3Uploader(s3.NewFromConfig(cfg), bucket, prefix, logger)
}

// Key returns the object key for a recording.
func (u *S3Uploader) Key(sessionID, bridgeID string) string {
	if sessionID == "" {
		sessionID = "unknown"
	}
	name := fmt.Sprintf("%s-%s.wav", u.now().UTC().Format("20060102T150405Z"), bridgeID)
	return path.Join(u.prefix, sessionID, name)
}

// Upload stores wav under Key(sessionID, bridgeID).
func (u *S3Uploader) Upload(ctx context.Context, sessionID, bridgeID string, wav []byte) error {
	key := u.Key(sessionID, bridgeID)

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(wav),
		ContentType:   aws.String("audio/wav"),
		ContentLength: aws.Int64(int64(len(wav))),
		Metadata: map[string]string{
			"session-id": sessionID,
			"bridge-id":  bridgeID,
		},
	})
	if err != nil {
		return fmt.Errorf("recording: put %s: %w", key, err)
	}

	u.logger.Info("recording uploaded", "bucket", u.bucket, "key", key, "bytes", len(wav))
	return nil
}
