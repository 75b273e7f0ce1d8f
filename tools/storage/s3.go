package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3ArtifactState implements ArtifactState and ArtifactWriter backed by S3.

type S3ArtifactState struct {
	bucket string
	key    string
	s3     *s3.Client
}

func NewS3ArtifactState(s3Client *s3.Client, bucket, key string) *S3ArtifactState {
	return &S3ArtifactState{
		bucket: bucket,
		key:    key,
		s3:     s3Client,
	}
}

func (s *S3ArtifactState) Load(ctx context.Context) ([]byte, error) {
	resp, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact %q from S3: %w", s.key, err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (s *S3ArtifactState) Save(ctx context.Context, data []byte) error {
	_, err := s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to put artifact %q to S3: %w", s.key, err)
	}
	return nil
}
