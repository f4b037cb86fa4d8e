package repository

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	appConfig "github.com/mansoorceksport/imagedrop/internal/config"
	"github.com/mansoorceksport/imagedrop/internal/domain"
)

// S3Storage implements domain.FileStorage on an S3-compatible bucket
// (SeaweedFS, MinIO, AWS S3)
type S3Storage struct {
	client *s3.Client
	bucket string
	names  NameGenerator
}

// NewS3Storage creates a new S3 storage backend
func NewS3Storage(ctx context.Context, cfg appConfig.S3Config, names NameGenerator) (*S3Storage, error) {
	// We use static credentials "any"/"any" because SeaweedFS/MinIO often require signatures
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("any", "any", "")),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config, %v", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true // Required for many S3-compatible stores including SeaweedFS
	})

	storage := &S3Storage{
		client: client,
		bucket: cfg.Bucket,
		names:  names,
	}

	if err := storage.ensureBucket(ctx); err != nil {
		return nil, err
	}

	return storage, nil
}

// Save uploads the file under a freshly generated key
func (s *S3Storage) Save(ctx context.Context, file *domain.UploadedFile) (string, error) {
	key := StoredName(s.names, file.Filename)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(file.Data),
		ContentType: aws.String(file.ContentType),
		// Refuse to replace an existing object with the same key
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file to S3: %w", err)
	}

	return key, nil
}

// Delete removes an object; S3 treats a missing key as success
func (s *S3Storage) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s from S3: %w", name, err)
	}
	return nil
}

// List returns every key in the bucket in key order
func (s *S3Storage) List(ctx context.Context) ([]string, error) {
	var names []string

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list bucket %s: %w", s.bucket, err)
		}
		for _, obj := range page.Contents {
			names = append(names, aws.ToString(obj.Key))
		}
	}

	return names, nil
}

// ensureBucket checks if bucket exists, creating it if necessary
func (s *S3Storage) ensureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})

	if err != nil {
		// HeadBucket does not tell a missing bucket from a denied one; try to create it
		_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
			Bucket: aws.String(s.bucket),
		})
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}
