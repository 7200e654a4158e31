// Package secretstore implements the secret-blob fetch used by tier 2 of the
// Secret Resolver (§4.C): given an opaque path, return the raw bytes of a
// secret document. The AWS Secrets Manager implementation is grounded on the
// aws-sdk-go-v2 stack the wider pack uses for cloud credentials
// (steveyegge-gastown); DESIGN.md records the grounding.
package secretstore

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretStore fetches an opaque secret blob by path.
type SecretStore interface {
	GetSecretBlob(ctx context.Context, path string) (string, error)
}

// AWSSecretsManagerStore fetches secrets from AWS Secrets Manager.
type AWSSecretsManagerStore struct {
	client *secretsmanager.Client
}

// NewAWSSecretsManagerStore builds a store using ambient AWS credentials and
// the AWS_REGION environment variable (or an explicit region override).
func NewAWSSecretsManagerStore(ctx context.Context, region string) (*AWSSecretsManagerStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("secretstore: failed to load AWS config: %w", err)
	}
	return &AWSSecretsManagerStore{client: secretsmanager.NewFromConfig(cfg)}, nil
}

func (s *AWSSecretsManagerStore) GetSecretBlob(ctx context.Context, path string) (string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &path,
	})
	if err != nil {
		return "", fmt.Errorf("secretstore: get secret value %q: %w", path, err)
	}
	if out.SecretString != nil {
		return *out.SecretString, nil
	}
	return string(out.SecretBinary), nil
}

// MemorySecretStore is an in-memory SecretStore backed by a path-to-blob map;
// the presence command does not use it, tests do.
type MemorySecretStore struct {
	Blobs map[string]string
}

func (s *MemorySecretStore) GetSecretBlob(_ context.Context, path string) (string, error) {
	if v, ok := s.Blobs[path]; ok {
		return v, nil
	}
	return "", fmt.Errorf("secretstore: no blob at path %q", path)
}
