// Package storage uploads run artifacts to an S3-compatible bucket.
package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/podlog-shipper/internal/errors"
)

// PutObjectAPI is the subset of *s3.Client the uploader uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config holds S3 client configuration.
type Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	UsePathStyle    bool
}

// Object is a single blob to write.
type Object struct {
	Key             string
	Body            []byte
	ContentType     string
	ContentEncoding string
}

// Uploader writes objects into one bucket.
type Uploader struct {
	client PutObjectAPI
	bucket string
	logger zerolog.Logger
}

// NewUploader builds an S3 client. Static credentials are used when both the
// key ID and secret are set, otherwise the SDK's default chain applies.
// Nothing is validated here; bad credentials surface on the first Put.
func NewUploader(ctx context.Context, cfg Config, logger zerolog.Logger) (*Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, perrors.Config("loading AWS config", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.Retryer = aws.NopRetryer{}
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return NewUploaderFromClient(client, cfg.Bucket, logger), nil
}

// NewUploaderFromClient creates an uploader around an existing client (for testing).
func NewUploaderFromClient(client PutObjectAPI, bucket string, logger zerolog.Logger) *Uploader {
	return &Uploader{
		client: client,
		bucket: bucket,
		logger: logger.With().Str("component", "storage").Str("bucket", bucket).Logger(),
	}
}

// Bucket returns the destination bucket name.
func (u *Uploader) Bucket() string {
	return u.bucket
}

// Put writes obj with a single PutObject call.
func (u *Uploader) Put(ctx context.Context, obj Object) error {
	in := &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(obj.Key),
		Body:          bytes.NewReader(obj.Body),
		ContentLength: aws.Int64(int64(len(obj.Body))),
	}
	if obj.ContentType != "" {
		in.ContentType = aws.String(obj.ContentType)
	}
	if obj.ContentEncoding != "" {
		in.ContentEncoding = aws.String(obj.ContentEncoding)
	}

	if _, err := u.client.PutObject(ctx, in); err != nil {
		return perrors.Storage(fmt.Sprintf("putting s3://%s/%s", u.bucket, obj.Key), err)
	}

	u.logger.Debug().Str("key", obj.Key).Int("bytes", len(obj.Body)).Msg("object written")
	return nil
}
