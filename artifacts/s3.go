package artifacts

import (
	"bytes"
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/teranos/govpipe/errors"
)

// PutObjectAPI is the subset of the S3 client the sink uses
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config holds configuration for S3Sink
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string // Optional custom endpoint (MinIO, LocalStack)
	Prefix   string // Optional key prefix
}

// S3Sink writes artifacts as S3 objects. A single PutObject is atomic
// from a reader's point of view.
type S3Sink struct {
	client PutObjectAPI
	bucket string
	prefix string
}

// NewS3Sink creates an S3 sink using the default AWS credential chain
func NewS3Sink(ctx context.Context, cfg S3Config) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, errors.WithHint(errors.New("s3 artifacts backend needs a bucket"),
			"set artifacts.s3.bucket or PIPELINE_ARTIFACTS_S3_BUCKET")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3SinkWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3SinkWithClient wraps an existing client
func NewS3SinkWithClient(client PutObjectAPI, bucket, prefix string) *S3Sink {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Sink{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Sink) objectKey(key string) string {
	return s.prefix + key
}

// Location returns the s3:// URI of key
func (s *S3Sink) Location(key string) string {
	return "s3://" + s.bucket + "/" + s.objectKey(key)
}

// Put uploads data as one object
func (s *S3Sink) Put(ctx context.Context, key string, data []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return errors.Wrap(err, "s3 put failed")
	}
	return nil
}
