package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/relabs-tech/jsonserver/core/document"
	"github.com/relabs-tech/jsonserver/core/logger"
)

// S3Configuration contains the configuration for the S3 driver
type S3Configuration struct {
	AWSRegion     string
	AWSBucketName string
	// Key is the object key of the document, e.g. "db.json"
	Key string
	// AccessID and AccessKey are optional, the default credential chain is used when empty
	AccessID  string
	AccessKey string
}

// S3API is the subset of the S3 client used by the S3 driver
type S3API interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 stores the document as a single object in an AWS S3 bucket
type S3 struct {
	client   S3API
	uploader *manager.Uploader
	bucket   string
	key      string

	mutex  sync.Mutex
	digest [sha256.Size]byte
	known  bool
}

// NewS3 returns a new S3 driver using the AWS default configuration
func NewS3(ctx context.Context, s3Config S3Configuration) (*S3, error) {
	if s3Config.AWSBucketName == "" {
		return nil, fmt.Errorf("AWSBucketName must not be empty")
	}
	options := []func(*config.LoadOptions) error{}
	if s3Config.AWSRegion != "" {
		options = append(options, config.WithRegion(s3Config.AWSRegion))
	}
	if s3Config.AccessID != "" {
		options = append(options, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s3Config.AccessID, s3Config.AccessKey, "")))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("cannot load aws configuration: %w", err)
	}
	logger.Default().Debugln("S3 storage enabled")
	return NewS3WithClient(s3.NewFromConfig(awsConfig), s3Config.AWSBucketName, s3Config.Key), nil
}

// NewS3WithClient returns a new S3 driver for an existing client
func NewS3WithClient(client S3API, bucket, key string) *S3 {
	if key == "" {
		key = "db.json"
	}
	return &S3{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		key:      key,
	}
}

// Load implements Driver
func (s *S3) Load(ctx context.Context) (document.Document, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, s.bucket, s.key)
		}
		return nil, fmt.Errorf("cannot get s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("cannot read s3://%s/%s: %w", s.bucket, s.key, err)
	}
	digest := sha256.Sum256(data)
	if s.known && digest == s.digest {
		return nil, ErrUnchanged
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("s3://%s/%s: %w", s.bucket, s.key, err)
	}
	s.digest = digest
	s.known = true
	return doc, nil
}

// Save implements Driver
func (s *S3) Save(ctx context.Context, doc document.Document) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := Encode(doc)
	if err != nil {
		return err
	}
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", s.bucket, s.key, err)
	}
	s.digest = sha256.Sum256(data)
	s.known = true
	return nil
}
