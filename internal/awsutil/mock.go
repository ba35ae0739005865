package awsutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// MockS3 is an in-memory S3Client for tests. Objects are keyed by
// "bucket/key".
type MockS3 struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Types   map[string]string
	GetErr  error
	PutErr  error
}

func (m *MockS3) PresignPutObject(ctx context.Context, bucket, key, contentType string, expires time.Duration) (string, error) {
	return fmt.Sprintf("https://%s.s3.example.com/%s?put", bucket, key), nil
}

func (m *MockS3) PresignGetObject(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	return fmt.Sprintf("https://%s.s3.example.com/%s?get", bucket, key), nil
}

func (m *MockS3) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.Objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("get object %s: NoSuchKey", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MockS3) PutObject(ctx context.Context, bucket, key, contentType string, body io.Reader) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Objects == nil {
		m.Objects = map[string][]byte{}
	}
	if m.Types == nil {
		m.Types = map[string]string{}
	}
	m.Objects[bucket+"/"+key] = data
	m.Types[bucket+"/"+key] = contentType
	return nil
}

// MockSQS records sent messages.
type MockSQS struct {
	mu       sync.Mutex
	Messages []string
	Err      error
}

func (m *MockSQS) SendMessage(ctx context.Context, queueURL, body string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, body)
	return nil
}

// MockSecrets serves secrets from a map.
type MockSecrets struct {
	Secrets map[string]string
}

func (m *MockSecrets) GetSecret(ctx context.Context, arn string) (string, error) {
	if v, ok := m.Secrets[arn]; ok {
		return v, nil
	}
	return "", fmt.Errorf("secret not found: %s", arn)
}

func (m *MockSecrets) GetSecretJSON(ctx context.Context, arn string) (map[string]string, error) {
	raw, err := m.GetSecret(ctx, arn)
	if err != nil {
		return nil, err
	}
	var result map[string]string
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, err
	}
	return result, nil
}
