// Package archive stores exported GST returns in object storage.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	"payaid/internal/platform/resilience"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var ErrDisabled = errors.New("report archiving is not configured")

// ObjectStore is the subset of object storage the archiver needs.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key, contentType string, body []byte) error
}

// S3Store writes objects with the AWS SDK. Endpoint may point at any
// S3-compatible service; it switches the client to path-style addressing.
type S3Store struct {
	client *s3.Client
}

type S3Options struct {
	Region   string
	Endpoint string
}

func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	region := opts.Region
	if region == "" {
		region = "ap-south-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{client: client}, nil
}

func (s *S3Store) Put(ctx context.Context, bucket, key, contentType string, body []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// Archiver uploads report files through a circuit breaker so a failing
// object store rejects fast instead of tying up request handlers.
type Archiver struct {
	store   ObjectStore
	bucket  string
	breaker *resilience.Breaker
}

func NewArchiver(store ObjectStore, bucket string, breaker *resilience.Breaker) *Archiver {
	if breaker == nil {
		breaker = resilience.NewBreaker(resilience.Options{})
	}
	return &Archiver{store: store, bucket: bucket, breaker: breaker}
}

func (a *Archiver) Bucket() string {
	if a == nil {
		return ""
	}
	return a.bucket
}

// Put uploads body under key. It returns resilience.ErrOpen while the
// breaker is open.
func (a *Archiver) Put(ctx context.Context, key, contentType string, body []byte) error {
	if a == nil || a.store == nil || a.bucket == "" {
		return ErrDisabled
	}
	return a.breaker.Do(ctx, func(ctx context.Context) error {
		return a.store.Put(ctx, a.bucket, key, contentType, body)
	})
}

// Check reports whether uploads are currently being accepted.
func (a *Archiver) Check(context.Context) error {
	if a == nil {
		return nil
	}
	if a.breaker.State() == resilience.StateOpen {
		return resilience.ErrOpen
	}
	return nil
}

// ObjectKey is the layout for archived returns:
// tenants/<tenant>/gst/<period>/<report>.csv
func ObjectKey(tenantID, period, report string) string {
	return path.Join("tenants", tenantID, "gst", period, report+".csv")
}
