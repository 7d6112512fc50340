package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Checker-Finance/orders/pkg/model"
)

// Store caches orders read from the backend and keeps a local order ledger.
// Neither is authoritative: the backend owns order state.
type Store interface {
	CacheOrder(ctx context.Context, order *model.ExternalOrder, ttl time.Duration) error
	GetCachedOrder(ctx context.Context, orderID string) (*model.ExternalOrder, error)
	EvictOrder(ctx context.Context, orderID string) error
	RecordOrder(ctx context.Context, order *model.ExternalOrder) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// pgPool is the subset of pgxpool.Pool the store uses.
type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

// HybridStore keeps order snapshots in Redis and, when configured, upserts
// them into a Postgres ledger.
type HybridStore struct {
	redis  *redis.Client
	pg     pgPool
	logger *zap.Logger
	source string
}

// PGPoolConfig overrides pgxpool defaults. Zero fields keep the default.
type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// NewHybrid creates a Redis-first store with an optional Postgres ledger.
// An empty pgURL disables the ledger.
func NewHybrid(ctx context.Context, redisAddr string, redisDB int, pgURL string, pool PGPoolConfig, source string, logger *zap.Logger) (*HybridStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr, DB: redisDB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("store: redis ping: %w", err)
	}

	var pg pgPool
	if pgURL != "" {
		p, err := pool.open(ctx, pgURL)
		if err != nil {
			_ = rdb.Close()
			return nil, err
		}
		pg = p
	}
	return NewWithClients(rdb, pg, source, logger), nil
}

func (c PGPoolConfig) open(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("store: parse postgres url: %w", err)
	}
	if c.MaxConns > 0 {
		cfg.MaxConns = c.MaxConns
	}
	if c.MinConns > 0 {
		cfg.MinConns = c.MinConns
	}
	if c.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = c.MaxConnLifetime
	}
	if c.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = c.MaxConnIdleTime
	}
	if c.HealthCheckPeriod > 0 {
		cfg.HealthCheckPeriod = c.HealthCheckPeriod
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}
	return pool, nil
}

// NewWithClients wraps already-connected clients. pg may be nil.
func NewWithClients(rdb *redis.Client, pg pgPool, source string, logger *zap.Logger) *HybridStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HybridStore{redis: rdb, pg: pg, logger: logger, source: source}
}

func orderKey(orderID string) string {
	return "bankr:order:" + orderID
}

// CacheOrder stores the latest backend view of an order.
func (s *HybridStore) CacheOrder(ctx context.Context, order *model.ExternalOrder, ttl time.Duration) error {
	if order == nil || order.OrderID == "" {
		return nil
	}
	return s.setJSON(ctx, orderKey(order.OrderID), order, ttl)
}

// GetCachedOrder returns (nil, nil) on a cache miss.
func (s *HybridStore) GetCachedOrder(ctx context.Context, orderID string) (*model.ExternalOrder, error) {
	var o model.ExternalOrder
	err := s.getJSON(ctx, orderKey(orderID), &o)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// EvictOrder drops a cached order. Missing keys are not an error.
func (s *HybridStore) EvictOrder(ctx context.Context, orderID string) error {
	return s.redis.Del(ctx, orderKey(orderID)).Err()
}

func (s *HybridStore) setJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, data, ttl).Err()
}

func (s *HybridStore) getJSON(ctx context.Context, key string, dest any) error {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return errors.New("store: redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("store: redis ping: %w", err)
	}
	if s.pg != nil {
		if err := s.pg.Ping(ctx); err != nil {
			return fmt.Errorf("store: postgres ping: %w", err)
		}
	}
	return nil
}

func (s *HybridStore) Close() error {
	if s.pg != nil {
		s.pg.Close()
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
