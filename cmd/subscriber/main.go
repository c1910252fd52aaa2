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
)

func loadEnv(logger *logrus.Logger) {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	}
}

// Tails the live donation channel and logs every event. Useful as a smoke
// check that the indexer is publishing, and as a template for downstream
// consumers (notification bots, websocket bridges).
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	loadEnv(logger)

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	rclient := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rclient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}
	feedCache := cache.NewRedisCacheFromClient(rclient, logger)

	events, err := feedCache.SubscribeDonations(ctx)
	if err != nil {
		logger.WithError(err).Fatal("failed to subscribe to donation events")
	}

	logger.WithField("redis", redisAddr).Info("subscribed to live donations")

	go func() {
		for rec := range events {
			entry := logger.WithFields(logrus.Fields{
				"signature": rec.Signature,
				"donor":     rec.Donor,
				"amount":    rec.Amount,
				"fee":       rec.Fee,
				"type":      rec.TokenType,
			})
			if rec.Symbol != "" {
				entry = entry.WithField("symbol", rec.Symbol)
			}
			entry.Info("donation received")
		}
	}()

	<-sigChan
	logger.Info("shutting down subscriber")
	cancel()
	_ = feedCache.Close()
}
