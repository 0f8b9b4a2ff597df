package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ignite/personal-audit/internal/config"
	"github.com/ignite/personal-audit/internal/pkg/logger"
)

// S3API is the subset of the S3 client used here.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// AWSStorage provides S3-backed reads and writes
type AWSStorage struct {
	s3Client S3API
	region   string
}

// NewAWSStorage creates a new AWS storage instance. Static credentials win
// over a profile; with neither the default credential chain is used.
func NewAWSStorage(ctx context.Context, cfg config.StorageConfig) (*AWSStorage, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}

	if cfg.HasStaticCredentials() {
		creds := credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"", // session token (empty for static creds)
		)
		opts = append(opts, awsconfig.WithCredentialsProvider(creds))
	} else if profile := cfg.GetAWSProfile(); profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return NewAWSStorageWithClient(s3.NewFromConfig(awsCfg), cfg.AWSRegion), nil
}

// NewAWSStorageWithClient wraps an existing client.
func NewAWSStorageWithClient(client S3API, region string) *AWSStorage {
	return &AWSStorage{s3Client: client, region: region}
}

// GetObject retrieves an object body from S3
func (s *AWSStorage) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	result, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("s3://%s/%s: %w", bucket, key, ErrNotFound)
		}
		return nil, fmt.Errorf("getting object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("reading S3 object body: %w", err)
	}

	logger.Debug("fetched S3 object", "bucket", bucket, "key", key, "bytes", len(data))
	return data, nil
}

// PutObject uploads data to S3
func (s *AWSStorage) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.s3Client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("putting object to S3: %w", err)
	}

	logger.Debug("stored S3 object", "bucket", bucket, "key", key, "bytes", len(data))
	return nil
}

// ObjectExists checks for an object with HeadObject.
func (s *AWSStorage) ObjectExists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return false, nil
	}
	return false, fmt.Errorf("checking S3 object: %w", err)
}
