package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"

	"github.com/Checker-Finance/orders/bankr-adapter/internal/api"
	"github.com/Checker-Finance/orders/bankr-adapter/internal/bankr"
	"github.com/Checker-Finance/orders/bankr-adapter/internal/commands"
	"github.com/Checker-Finance/orders/bankr-adapter/internal/orders"
	"github.com/Checker-Finance/orders/bankr-adapter/internal/proxy"
	"github.com/Checker-Finance/orders/bankr-adapter/internal/stream"
	"github.com/Checker-Finance/orders/bankr-adapter/internal/wallet"
	"github.com/Checker-Finance/orders/bankr-adapter/pkg/config"
	"github.com/Checker-Finance/orders/internal/jobs"
	"github.com/Checker-Finance/orders/internal/publisher"
	"github.com/Checker-Finance/orders/internal/rate"
	internalsecrets "github.com/Checker-Finance/orders/internal/secrets"
	"github.com/Checker-Finance/orders/internal/store"
	"github.com/Checker-Finance/orders/pkg/cache"
	"github.com/Checker-Finance/orders/pkg/logger"
	"github.com/Checker-Finance/orders/pkg/secrets"
	"github.com/Checker-Finance/orders/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [bankr-adapter]...")

	if err := cfg.Validate(); err != nil {
		logg.Fatalw("invalid configuration", "error", err)
	}
	if cfg.DatabaseURL != "" {
		logg.Info("connection to DSN: ", utils.MaskDSN(cfg.DatabaseURL))
	}

	// --- Secrets: API key and signer key ---
	stopCleaner := make(chan struct{})
	apiKey := bankr.StaticAPIKey(cfg.BankrAPIKey)
	signerKey := cfg.SignerPrivateKey
	if cfg.UseAWSSecrets {
		awsProvider, err := secrets.NewAWSProvider(ctx, cfg.AWSRegion, cfg.AWSSecretStage)
		if err != nil {
			logg.Fatalw("failed to create AWS Secrets Manager provider", "error", err)
		}
		secretCache := cache.NewTTL[string](cfg.SecretsCacheTTL)
		go secretCache.StartCleaner(cfg.CleanupFreq, stopCleaner)

		resolver := internalsecrets.NewResolver[string](logger.Named("secrets"), cfg.Env, cfg.Venue, awsProvider, secretCache)
		apiKey = func(ctx context.Context) (string, error) {
			return resolver.Resolve(ctx, "api", internalsecrets.Field("api_key"))
		}
		signerKey, err = resolver.Resolve(ctx, "signer", internalsecrets.Field("private_key"))
		if err != nil {
			logg.Fatalw("failed to resolve signer key", "error", err)
		}
		if _, err := apiKey(ctx); err != nil {
			logg.Warnw("api key not resolved at startup", "error", err)
		}
	}

	// --- Wallet (maker) ---
	w, ethClient, err := wallet.Dial(ctx, logger.Named("wallet"), cfg.RPCURL, wallet.Config{
		PrivateKey:       signerKey,
		ChainID:          cfg.ChainID,
		AllowedContracts: cfg.AllowedContracts,
	})
	if err != nil {
		logg.Fatalw("failed to init wallet", "error", err)
	}
	defer ethClient.Close()
	logg.Infow("wallet ready",
		"address", w.Address().Hex(),
		"chain_id", cfg.ChainID)

	// --- Rate limiter ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	})

	// --- Orders backend client ---
	bankrClient := bankr.NewClient(
		logger.Named("bankr"),
		rateMgr,
		&http.Client{Timeout: cfg.BankrTimeout},
		cfg.BankrAPIURL,
		apiKey,
	)

	// --- Store (Redis cache + optional Postgres ledger) ---
	st, err := store.NewHybrid(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.DatabaseURL, store.PGPoolConfig{
		MaxConns:          int32(cfg.PGMaxConns),
		MinConns:          int32(cfg.PGMinConns),
		MaxConnLifetime:   cfg.PGMaxConnLifetime,
		MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
		HealthCheckPeriod: cfg.PGHealthCheckPeriod,
	}, cfg.ServiceName, logger.Named("store"))
	if err != nil {
		logg.Fatalw("failed to init store", "error", err)
	}

	// --- Connect to NATS ---
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		logg.Fatalw("failed to connect to NATS", "error", err)
	}

	// --- Publisher ---
	pub, err := publisher.New(logger.Named("publisher"), nc, "BANKR", cfg.ServiceName)
	if err != nil {
		logg.Fatalw("failed to init publisher", "error", err)
	}

	// --- Orders service ---
	builder := orders.NewQuoteBuilder(orders.BuilderConfig{
		AppFeeBps:          cfg.AppFeeBps,
		AppFeeRecipient:    cfg.AppFeeRecipient,
		DefaultSlippageBps: cfg.DefaultSlippageBps,
	})
	svc := orders.NewService(ctx, logger.Named("orders"), bankrClient, w, builder, st, pub, orders.ServiceConfig{
		OrderCacheTTL: cfg.OrderCacheTTL,
		PagerTTL:      cfg.PagerTTL,
		PollInterval:  cfg.PollInterval,
	})
	go svc.Pagers().StartCleaner(cfg.CleanupFreq, stopCleaner)

	// --- List refresher (watched makers, the wallet by default) ---
	makers := cfg.WatchedMakers
	if len(makers) == 0 {
		makers = []string{svc.Maker()}
	}
	refresher := jobs.NewListRefresher(logger.Named("jobs"), svc, pub, makers, cfg.ListRefreshInterval)
	go refresher.Start(ctx)

	// --- AMQP commands ---
	var consumer *commands.Consumer
	if cfg.AMQPURL != "" {
		consumer, err = commands.NewConsumer(cfg.AMQPURL, cfg.Venue, svc, logger.Named("commands"))
		if err != nil {
			logg.Fatalw("failed to init AMQP consumer", "error", err)
		}
		if err := consumer.Start(ctx); err != nil {
			logg.Fatalw("failed to start AMQP consumer", "error", err)
		}
	}

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})
	api.RegisterRoutes(app, nc, st, api.NewOrderHandler(logger.Named("api"), svc))
	proxy.New(logger.Named("proxy"), cfg.BankrAPIURL, apiKey, cfg.BankrTimeout).Register(app, "/api/order")

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	// --- Price stream (websocket) ---
	streamSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.StreamPort),
		Handler:           stream.NewServer(logger.Named("stream"), svc.MarketPrice, cfg.DebounceDelay).Handler(),
		ReadHeaderTimeout: cfg.HTTPReadTimeout,
	}
	go func() {
		logg.Infof("price stream listening on :%d%s", cfg.StreamPort, stream.PricePath)
		if err := streamSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatalw("stream.listen_failed", "error", err)
		}
	}()

	logg.Infow("[bankr-adapter] running",
		"nats", cfg.NATSURL,
		"env", cfg.Env,
		"backend", cfg.BankrAPIURL,
		"poll_interval", cfg.PollInterval,
		"watched_makers", len(makers),
		"amqp", consumer != nil)

	<-ctx.Done()
	logg.Info("shutting down [bankr-adapter]...")

	close(stopCleaner)
	refresher.Stop()
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logg.Warnw("amqp.close_failed", "error", err)
		}
	}
	svc.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	if err := streamSrv.Shutdown(shutdownCtx); err != nil {
		logg.Warnw("stream.shutdown_failed", "error", err)
	}
	if err := nc.Drain(); err != nil {
		logg.Warnw("nats.drain_failed", "error", err)
	}
	if err := st.Close(); err != nil {
		logg.Warnw("store.close_failed", "error", err)
	}
}
