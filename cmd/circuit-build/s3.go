package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/eigmax/zkMIPS/log"
)

// S3Config holds the configuration for artifact uploads
type S3Config struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
}

// NewDefaultS3Config returns a new S3Config with default values
func NewDefaultS3Config() *S3Config {
	return &S3Config{
		Enabled: false,
		Region:  "us-east-1",
		Bucket:  "zkmips-circuits",
		Prefix:  "dev",
	}
}

// S3Uploader publishes built artifact shape directories to an S3 compatible
// object store, laid out so the artifacts downloader can fetch them back:
// <prefix>/<shape>-<version>/<file>.
type S3Uploader struct {
	client *s3.Client
	config *S3Config
}

// NewS3Uploader creates a new S3Uploader with the provided configuration
func NewS3Uploader(cfg *S3Config) (*S3Uploader, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("s3 upload not enabled")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}

	sdkConfig, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}

	client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Uploader{client: client, config: cfg}, nil
}

// TestS3Connection checks the bucket is reachable with the configured
// credentials before any expensive compilation starts.
func TestS3Connection(ctx context.Context, cfg *S3Config) error {
	uploader, err := NewS3Uploader(cfg)
	if err != nil {
		return err
	}
	_, err = uploader.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket %q not reachable: %w", cfg.Bucket, err)
	}
	return nil
}

// UploadFile uploads a single file under the given shape directory key and
// returns the object key
func (u *S3Uploader) UploadFile(ctx context.Context, shapeDir, filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Warnw("failed to close file", "error", err)
		}
	}()

	objectKey := fmt.Sprintf("%s/%s/%s", u.config.Prefix, shapeDir, filepath.Base(filePath))
	log.Infow("uploading file to S3",
		"file", filepath.Base(filePath),
		"bucket", u.config.Bucket,
		"key", objectKey)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.config.Bucket),
		Key:    aws.String(objectKey),
		Body:   file,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file %s: %w", filePath, err)
	}
	return objectKey, nil
}

// UploadShapeDir uploads every file of one built shape directory and returns
// the uploaded object keys
func (u *S3Uploader) UploadShapeDir(ctx context.Context, dirPath string) ([]string, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dirPath, err)
	}
	shapeDir := filepath.Base(dirPath)
	var keys []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		key, err := u.UploadFile(ctx, shapeDir, filepath.Join(dirPath, entry.Name()))
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}
