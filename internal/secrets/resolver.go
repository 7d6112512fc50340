package secrets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Checker-Finance/orders/internal/metrics"
	"github.com/Checker-Finance/orders/pkg/cache"
	pkgsecrets "github.com/Checker-Finance/orders/pkg/secrets"
)

// Resolver resolves named venue secrets (API key, signer key) from a
// Provider, caching parsed values locally to reduce API calls. It is generic
// over the parsed type T.
//
// Secret naming convention: {env}/{venue}/{name}
type Resolver[T any] struct {
	logger   *zap.Logger
	env      string
	venue    string
	provider pkgsecrets.Provider
	cache    *cache.TTL[T]
}

// NewResolver constructs a generic secret resolver.
func NewResolver[T any](
	logger *zap.Logger,
	env string,
	venue string,
	provider pkgsecrets.Provider,
	c *cache.TTL[T],
) *Resolver[T] {
	return &Resolver[T]{
		logger:   logger,
		env:      env,
		venue:    venue,
		provider: provider,
		cache:    c,
	}
}

// SecretName builds the secret manager key for name.
func (r *Resolver[T]) SecretName(name string) string {
	return strings.ToLower(fmt.Sprintf("%s/%s/%s", r.env, r.venue, name))
}

// Resolve returns the cached T for name or fetches and parses it.
// parse should validate required fields.
func (r *Resolver[T]) Resolve(ctx context.Context, name string, parse func(map[string]string) (T, error)) (T, error) {
	key := r.SecretName(name)

	if v, ok := r.cache.Get(key); ok {
		metrics.IncCacheHit("hit")
		return v, nil
	}
	metrics.IncCacheHit("miss")

	raw, err := r.provider.GetSecret(ctx, key)
	if err != nil {
		r.logger.Warn("secrets.fetch_failed",
			zap.String("key", key),
			zap.Error(err))
		var zero T
		return zero, fmt.Errorf("resolve secret %q: %w", name, err)
	}

	v, err := parse(raw)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("parse secret %q: %w", key, err)
	}

	r.cache.Put(key, v)
	r.logger.Info("secrets.resolved",
		zap.String("venue", r.venue),
		zap.String("name", name))
	return v, nil
}

// Bust drops a cached secret so the next Resolve refetches it (rotation).
func (r *Resolver[T]) Bust(name string) {
	r.cache.Bust(r.SecretName(name))
}

// Field returns a parse func that extracts one required string field. A
// plain-text secret (stored under pkgsecrets.ValueKey) satisfies any field.
func Field(field string) func(map[string]string) (string, error) {
	return func(m map[string]string) (string, error) {
		v := strings.TrimSpace(m[field])
		if v == "" {
			v = strings.TrimSpace(m[pkgsecrets.ValueKey])
		}
		if v == "" {
			return "", fmt.Errorf("%s is required", field)
		}
		return v, nil
	}
}
