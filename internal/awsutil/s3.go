package awsutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Client defines the photo and export bucket operations.
type S3Client interface {
	PresignPutObject(ctx context.Context, bucket, key, contentType string, expires time.Duration) (string, error)
	PresignGetObject(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	PutObject(ctx context.Context, bucket, key, contentType string, body io.Reader) error
}

type s3Client struct {
	client  *s3.Client
	presign *s3.PresignClient
}

// NewS3Client creates an S3Client from an S3 service client.
func NewS3Client(client *s3.Client) S3Client {
	return &s3Client{
		client:  client,
		presign: s3.NewPresignClient(client),
	}
}

func (c *s3Client) PresignPutObject(ctx context.Context, bucket, key, contentType string, expires time.Duration) (string, error) {
	resp, err := c.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("presign put %s: %w", key, err)
	}
	return resp.URL, nil
}

func (c *s3Client) PresignGetObject(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	resp, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", key, err)
	}
	return resp.URL, nil
}

func (c *s3Client) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	resp, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	return resp.Body, nil
}

func (c *s3Client) PutObject(ctx context.Context, bucket, key, contentType string, body io.Reader) error {
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// MaxObjectSize bounds ReadObject; larger photos are rejected.
const MaxObjectSize = 25 << 20

// ReadObject downloads an object into memory, failing when it exceeds
// MaxObjectSize.
func ReadObject(ctx context.Context, c S3Client, bucket, key string) ([]byte, error) {
	body, err := c.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, MaxObjectSize+1))
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	if len(data) > MaxObjectSize {
		return nil, fmt.Errorf("object %s exceeds %d bytes", key, MaxObjectSize)
	}
	return data, nil
}

// WriteObject uploads data under key.
func WriteObject(ctx context.Context, c S3Client, bucket, key, contentType string, data []byte) error {
	return c.PutObject(ctx, bucket, key, contentType, bytes.NewReader(data))
}
