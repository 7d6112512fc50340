package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"

	pkgconfig "github.com/Checker-Finance/orders/pkg/config"
)

// Config holds the runtime configuration for the bankr-adapter.
type Config struct {
	ServiceName string
	Env         string
	Venue       string
	LogLevel    string

	Port             int
	StreamPort       int
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	HTTPBodyLimit    int

	// Orders backend. With UseAWSSecrets the API key and signer key are read
	// from {env}/bankr/api and {env}/bankr/signer instead of the environment.
	BankrAPIURL     string
	BankrAPIKey     string
	BankrTimeout    time.Duration
	UseAWSSecrets   bool
	AWSRegion       string
	AWSSecretStage  string
	SecretsCacheTTL time.Duration

	// Wallet
	SignerPrivateKey string
	RPCURL           string
	ChainID          int64
	AllowedContracts []string

	// Quote defaults
	AppFeeBps          int
	AppFeeRecipient    string
	DefaultSlippageBps int

	NATSURL   string
	RedisAddr string
	RedisDB   int
	AMQPURL   string

	DatabaseURL         string
	PGMaxConns          int
	PGMinConns          int
	PGMaxConnLifetime   time.Duration
	PGMaxConnIdleTime   time.Duration
	PGHealthCheckPeriod time.Duration

	PollInterval        time.Duration
	ListRefreshInterval time.Duration
	WatchedMakers       []string
	OrderCacheTTL       time.Duration
	PagerTTL            time.Duration
	CleanupFreq         time.Duration
	DebounceDelay       time.Duration

	RateLimitRPS   int
	RateLimitBurst int
}

// Load loads configuration from environment variables and optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServiceName:         pkgconfig.GetEnv("SERVICE_NAME", "bankr-adapter"),
		Env:                 pkgconfig.GetEnv("ENV", "dev"),
		Venue:               "bankr",
		LogLevel:            pkgconfig.GetEnv("LOG_LEVEL", "info"),
		Port:                pkgconfig.GetEnvInt("BANKR_PORT", 9040),
		StreamPort:          pkgconfig.GetEnvInt("BANKR_STREAM_PORT", 9041),
		HTTPReadTimeout:     pkgconfig.GetEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
		HTTPWriteTimeout:    pkgconfig.GetEnvDuration("HTTP_WRITE_TIMEOUT", 120*time.Second),
		HTTPIdleTimeout:     pkgconfig.GetEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		HTTPBodyLimit:       pkgconfig.GetEnvInt("HTTP_BODY_LIMIT", 1*1024*1024),
		BankrAPIURL:         pkgconfig.GetEnv("BANKR_API_URL", "https://api-staging.bankr.bot/trading/order"),
		BankrAPIKey:         pkgconfig.GetEnv("BANKR_API_KEY", ""),
		BankrTimeout:        pkgconfig.GetEnvDuration("BANKR_TIMEOUT", 30*time.Second),
		UseAWSSecrets:       pkgconfig.GetEnvBool("USE_AWS_SECRETS", false),
		AWSRegion:           pkgconfig.GetEnv("AWS_REGION", "us-east-2"),
		AWSSecretStage:      pkgconfig.GetEnv("AWS_SECRET_VERSION_STAGE", ""),
		SecretsCacheTTL:     pkgconfig.GetEnvDuration("SECRETS_CACHE_TTL", 1*time.Hour),
		SignerPrivateKey:    pkgconfig.GetEnv("SIGNER_PRIVATE_KEY", ""),
		RPCURL:              pkgconfig.GetEnv("RPC_URL", "https://mainnet.base.org"),
		ChainID:             pkgconfig.GetEnvInt64("CHAIN_ID", 8453),
		AllowedContracts:    pkgconfig.GetEnvList("ALLOWED_CONTRACTS", nil),
		AppFeeBps:           pkgconfig.GetEnvInt("APP_FEE_BPS", 20),
		AppFeeRecipient:     pkgconfig.GetEnv("APP_FEE_RECIPIENT", ""),
		DefaultSlippageBps:  pkgconfig.GetEnvInt("DEFAULT_SLIPPAGE_BPS", 100),
		NATSURL:             pkgconfig.GetEnv("NATS_URL", "nats://localhost:4222"),
		RedisAddr:           pkgconfig.GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:             pkgconfig.GetEnvInt("REDIS_DB", 0),
		AMQPURL:             pkgconfig.GetEnv("AMQP_URL", ""),
		DatabaseURL:         pkgconfig.GetEnv("DATABASE_URL", ""),
		PGMaxConns:          pkgconfig.GetEnvInt("PG_MAX_CONNS", 10),
		PGMinConns:          pkgconfig.GetEnvInt("PG_MIN_CONNS", 2),
		PGMaxConnLifetime:   pkgconfig.GetEnvDuration("PG_MAX_CONN_LIFETIME", 30*time.Minute),
		PGMaxConnIdleTime:   pkgconfig.GetEnvDuration("PG_MAX_CONN_IDLE_TIME", 5*time.Minute),
		PGHealthCheckPeriod: pkgconfig.GetEnvDuration("PG_HEALTH_CHECK_PERIOD", 1*time.Minute),
		PollInterval:        pkgconfig.GetEnvDuration("ORDER_POLL_INTERVAL", 5*time.Second),
		ListRefreshInterval: pkgconfig.GetEnvDuration("LIST_REFRESH_INTERVAL", 10*time.Second),
		WatchedMakers:       pkgconfig.GetEnvList("WATCHED_MAKERS", nil),
		OrderCacheTTL:       pkgconfig.GetEnvDuration("ORDER_CACHE_TTL", 5*time.Second),
		PagerTTL:            pkgconfig.GetEnvDuration("PAGER_TTL", 10*time.Minute),
		CleanupFreq:         pkgconfig.GetEnvDuration("CACHE_CLEANUP_FREQ", 1*time.Minute),
		DebounceDelay:       pkgconfig.GetEnvDuration("PRICE_DEBOUNCE", 500*time.Millisecond),
		RateLimitRPS:        pkgconfig.GetEnvInt("BANKR_RATE_LIMIT_RPS", 5),
		RateLimitBurst:      pkgconfig.GetEnvInt("BANKR_RATE_LIMIT_BURST", 10),
	}
}

// Validate reports settings the adapter cannot start without.
func (c *Config) Validate() error {
	if c.BankrAPIURL == "" {
		return fmt.Errorf("BANKR_API_URL is required")
	}
	if !c.UseAWSSecrets && c.SignerPrivateKey == "" {
		return fmt.Errorf("SIGNER_PRIVATE_KEY is required unless USE_AWS_SECRETS is set")
	}
	if c.RPCURL == "" {
		return fmt.Errorf("RPC_URL is required")
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("CHAIN_ID must be positive")
	}
	if c.Port == c.StreamPort {
		return fmt.Errorf("BANKR_STREAM_PORT must differ from BANKR_PORT")
	}
	return nil
}
