package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/cache"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/config"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/constants"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/models"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/rpc"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/storage"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/tipjar"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/tokens"
)

// Indexer fans every fresh donation out to the cache, the pub/sub channel, and
// the ClickHouse history table.
type Indexer struct {
	cache  storage.DonationCache
	store  storage.DonationStore
	logger *logrus.Logger
}

func (idx *Indexer) ProcessDonation(ctx context.Context, rec *models.DonationRecord) {
	idx.logger.WithFields(logrus.Fields{
		"signature": rec.Signature,
		"donor":     rec.Donor,
		"amount":    rec.Amount,
		"type":      rec.TokenType,
	}).Info("processing donation")

	// 1. Publish to Redis Pub/Sub (real-time distribution)
	if err := idx.cache.PublishDonation(ctx, rec); err != nil {
		idx.logger.WithError(err).Warn("pub/sub publish failed")
	}

	// 2. Store in ClickHouse (historical data)
	if idx.store != nil {
		if err := idx.store.InsertDonation(ctx, rec); err != nil {
			idx.logger.WithError(err).Error("clickhouse insert failed")
		}
	}
}

func loadEnv(logger *logrus.Logger) {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	}
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	loadEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if cfg.TipJarOwner == "" {
		logger.Fatal("TIPJAR_OWNER is required for the indexer")
	}

	programID := cfg.TipJarProgramID
	if programID == "" {
		programID = constants.TipJarProgramID
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	rclient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rclient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}
	feedCache := cache.NewRedisCacheFromClient(rclient, logger)

	// ClickHouse is optional: without it the indexer still caches and publishes.
	var store storage.DonationStore
	ch, err := cache.NewClickHouseStore(cache.ClickHouseConfig{
		Addr:     cfg.ClickHouseAddr,
		Database: cfg.ClickHouseDatabase,
		Username: cfg.ClickHouseUsername,
		Password: cfg.ClickHousePassword,
		Logger:   logger,
	})
	if err != nil {
		logger.WithError(err).Warn("clickhouse unavailable, donations will not be persisted")
	} else {
		store = ch
		defer ch.Close()
	}

	ledger := rpc.NewClient(rpc.ClientConfig{
		BaseURL: cfg.RPCUrl,
		Timeout: cfg.HTTPTimeout,
		Logger:  logger,
	})

	registry, err := tokens.NewRegistry(rclient)
	if err != nil {
		logger.WithError(err).Fatal("failed to create token registry")
	}
	symbols := func(ctx context.Context, mint string) string {
		return registry.Resolve(ctx, mint, "")
	}

	reconciler := tipjar.NewReconciler(tipjar.ReconcilerConfig{
		Ledger:    ledger,
		ProgramID: programID,
		Symbols:   symbols,
		Logger:    logger,
	})

	poller := tipjar.NewPoller(tipjar.PollerConfig{
		Reconciler:   reconciler,
		Owner:        cfg.TipJarOwner,
		PollInterval: cfg.PollInterval,
		Logger:       logger,
	})

	indexer := &Indexer{cache: feedCache, store: store, logger: logger}

	logger.WithFields(logrus.Fields{
		"owner":   cfg.TipJarOwner,
		"program": programID,
		"rpc":     cfg.RPCUrl,
	}).Info("starting tip jar indexer")

	go func() {
		if err := poller.Start(ctx, func(rec *models.DonationRecord) {
			indexer.ProcessDonation(ctx, rec)
		}); err != nil && err != context.Canceled {
			logger.WithError(err).Error("poller stopped")
		}
	}()

	<-sigChan
	logger.Info("shutting down gracefully")
	cancel()
	_ = poller.Stop()
	_ = feedCache.Close()
}
