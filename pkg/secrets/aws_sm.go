package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// ValueKey holds the whole secret when it is stored as plain text rather than
// a JSON object (a bare hex signer key, for example).
const ValueKey = "value"

type smClient interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManager reads adapter secrets from AWS Secrets Manager.
type SecretsManager struct {
	client       smClient
	versionStage string
}

// NewAWSProvider loads the default AWS config for region. An empty stage
// reads AWSCURRENT.
func NewAWSProvider(ctx context.Context, region, versionStage string) (*SecretsManager, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("secrets: load aws config: %w", err)
	}
	return &SecretsManager{client: secretsmanager.NewFromConfig(cfg), versionStage: versionStage}, nil
}

// GetSecret returns the secret's fields. JSON objects are decoded as-is;
// anything else is returned under ValueKey.
func (p *SecretsManager) GetSecret(ctx context.Context, key string) (map[string]string, error) {
	in := &secretsmanager.GetSecretValueInput{SecretId: aws.String(key)}
	if p.versionStage != "" {
		in.VersionStage = aws.String(p.versionStage)
	}
	out, err := p.client.GetSecretValue(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("secrets: fetch %s: %w", key, err)
	}

	var raw string
	switch {
	case out.SecretString != nil:
		raw = *out.SecretString
	case len(out.SecretBinary) > 0:
		raw = string(out.SecretBinary)
	default:
		return nil, fmt.Errorf("secrets: %s has no value", key)
	}
	return decodeSecret(key, raw)
}

func decodeSecret(key, raw string) (map[string]string, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return map[string]string{ValueKey: trimmed}, nil
	}
	var fields map[string]string
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return nil, fmt.Errorf("secrets: invalid secret format for %s: %w", key, err)
	}
	return fields, nil
}
