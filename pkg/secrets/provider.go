package secrets

import (
	"context"
	"errors"
	"fmt"
)

// Provider fetches a secret by name and returns its key/value pairs.
type Provider interface {
	GetSecret(ctx context.Context, key string) (map[string]string, error)
}

// ErrSecretNotFound is returned by StaticProvider for unknown names.
var ErrSecretNotFound = errors.New("secret not found")

// StaticProvider serves secrets from memory. Used for local runs where the
// values come from the environment, and in tests.
type StaticProvider map[string]map[string]string

func (p StaticProvider) GetSecret(_ context.Context, key string) (map[string]string, error) {
	v, ok := p[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	out := make(map[string]string, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out, nil
}
