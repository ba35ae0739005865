// Package awsutil provides the AWS clients used by the Lambdas: S3 for photos
// and exports, SQS for the analysis queue and Secrets Manager for credentials.
package awsutil

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsProvider retrieves and caches secrets from AWS Secrets Manager.
type SecretsProvider interface {
	GetSecret(ctx context.Context, secretARN string) (string, error)
	GetSecretJSON(ctx context.Context, secretARN string) (map[string]string, error)
}

// SecretsManagerAPI is the subset of the Secrets Manager client we use.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type secretsProvider struct {
	client SecretsManagerAPI
	cache  map[string]string
	mu     sync.Mutex
}

// NewSecretsProvider creates a SecretsProvider backed by Secrets Manager.
func NewSecretsProvider(client SecretsManagerAPI) SecretsProvider {
	return &secretsProvider{
		client: client,
		cache:  make(map[string]string),
	}
}

func (s *secretsProvider) GetSecret(ctx context.Context, secretARN string) (string, error) {
	if secretARN == "" {
		return "", fmt.Errorf("get secret: empty ARN")
	}

	s.mu.Lock()
	if v, ok := s.cache[secretARN]; ok {
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretARN),
	})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", secretARN, err)
	}
	val := aws.ToString(out.SecretString)

	s.mu.Lock()
	s.cache[secretARN] = val
	s.mu.Unlock()
	return val, nil
}

func (s *secretsProvider) GetSecretJSON(ctx context.Context, secretARN string) (map[string]string, error) {
	raw, err := s.GetSecret(ctx, secretARN)
	if err != nil {
		return nil, err
	}
	var result map[string]string
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("parse secret JSON: %w", err)
	}
	return result, nil
}

// SecretField returns one field of a JSON secret. A secret that is a bare
// string rather than a JSON object is returned whole.
func SecretField(ctx context.Context, p SecretsProvider, secretARN, field string) (string, error) {
	raw, err := p.GetSecret(ctx, secretARN)
	if err != nil {
		return "", err
	}
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return trimmed, nil
	}
	values, err := p.GetSecretJSON(ctx, secretARN)
	if err != nil {
		return "", err
	}
	v, ok := values[field]
	if !ok || v == "" {
		return "", fmt.Errorf("secret %s has no %s", secretARN, field)
	}
	return v, nil
}
