// Package publish uploads generated scores to S3.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"                                 //nolint:staticcheck // TODO: Migrate to aws-sdk-go-v2
	"github.com/aws/aws-sdk-go/aws/session"                         //nolint:staticcheck
	"github.com/aws/aws-sdk-go/service/s3/s3manager"                //nolint:staticcheck
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface" //nolint:staticcheck

	"github.com/Conceptual-Machines/magda-composer/internal/config"
	"github.com/Conceptual-Machines/magda-composer/internal/logger"
)

const midiContentType = "audio/midi"

// Publisher uploads files to a bucket. A nil or bucketless Publisher is disabled.
type Publisher struct {
	uploader s3manageriface.UploaderAPI
	bucket   string
	prefix   string
}

// New creates a publisher from config. Returns a disabled publisher when S3_BUCKET is empty.
func New(cfg *config.Config) (*Publisher, error) {
	if cfg.S3Bucket == "" {
		return &Publisher{}, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.AWSRegion),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewWithUploader(s3manager.NewUploader(sess), cfg.S3Bucket, cfg.S3Prefix), nil
}

// NewWithUploader wires an existing uploader
func NewWithUploader(uploader s3manageriface.UploaderAPI, bucket, prefix string) *Publisher {
	return &Publisher{uploader: uploader, bucket: bucket, prefix: prefix}
}

// Enabled reports whether uploads are configured
func (p *Publisher) Enabled() bool {
	return p != nil && p.uploader != nil && p.bucket != ""
}

// Key returns the object key for a file name
func (p *Publisher) Key(name string) string {
	return path.Join(strings.TrimPrefix(p.prefix, "/"), name)
}

// Publish uploads a MIDI file and returns its location
func (p *Publisher) Publish(ctx context.Context, name string, data []byte) (string, error) {
	if !p.Enabled() {
		return "", nil
	}

	key := p.Key(name)
	out, err := p.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(midiContentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	logger.Info("Published score", logger.Fields{"bucket": p.bucket, "key": key, "location": out.Location})
	return out.Location, nil
}
