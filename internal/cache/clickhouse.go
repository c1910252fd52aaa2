package cache

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/models"
)

// ClickHouseConfig holds connection settings for the donation store.
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Logger   *logrus.Logger
}

// ClickHouseStore persists reconciled donations for analytics queries.
type ClickHouseStore struct {
	conn   driver.Conn
	logger *logrus.Logger
}

// NewClickHouseStore opens a ClickHouse connection and verifies it with a ping.
func NewClickHouseStore(cfg ClickHouseConfig) (*ClickHouseStore, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	cfg.Logger.WithFields(logrus.Fields{
		"addr":     cfg.Addr,
		"database": cfg.Database,
	}).Info("connected to ClickHouse")

	return &ClickHouseStore{conn: conn, logger: cfg.Logger}, nil
}

// InsertDonation writes one donation row. A nil block time is stored as 0 so
// the column stays non-nullable.
func (c *ClickHouseStore) InsertDonation(ctx context.Context, rec *models.DonationRecord) error {
	query := `
		INSERT INTO donations (
			signature, timestamp, donor, amount, fee,
			slot, token_type, mint, symbol, decimals
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var ts int64
	if rec.Timestamp != nil {
		ts = *rec.Timestamp
	}

	err := c.conn.Exec(ctx, query,
		rec.Signature,
		ts,
		rec.Donor,
		rec.Amount,
		rec.Fee,
		rec.Slot,
		string(rec.TokenType),
		rec.Mint,
		rec.Symbol,
		rec.Decimals,
	)
	if err != nil {
		return fmt.Errorf("failed to insert donation: %w", err)
	}

	return nil
}

// Ping checks ClickHouse connectivity.
func (c *ClickHouseStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Close closes the underlying connection.
func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}
