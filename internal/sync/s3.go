package sync

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options locates the snapshot object.
type S3Options struct {
	Bucket string
	// Prefix is prepended to the object name. Snapshots are written as
	// <prefix>sessions-<unix seconds>.jsonl plus <prefix>sessions-latest.jsonl.
	Prefix   string
	Region   string
	Endpoint string
}

// S3Destination writes session snapshots to an S3-compatible bucket.
type S3Destination struct {
	client *s3.Client
	opts   S3Options
	now    func() time.Time
}

// NewS3Destination creates an S3 destination. If Endpoint is set,
// path-style addressing is enabled (for MinIO and similar).
func NewS3Destination(ctx context.Context, opts S3Options) (*S3Destination, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 destination: bucket is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if opts.Endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Destination{
		client: s3.NewFromConfig(cfg, s3opts...),
		opts:   opts,
		now:    time.Now,
	}, nil
}

// Keys returns the object keys a snapshot taken at t is written to.
func (d *S3Destination) Keys(t time.Time) []string {
	return []string{
		fmt.Sprintf("%ssessions-%d.jsonl", d.opts.Prefix, t.Unix()),
		d.opts.Prefix + "sessions-latest.jsonl",
	}
}

// Write uploads data under a timestamped key and the latest key.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	for _, key := range d.Keys(d.now()) {
		_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(d.opts.Bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/x-ndjson"),
		})
		if err != nil {
			return fmt.Errorf("s3 put object %s: %w", key, err)
		}
	}
	return nil
}
