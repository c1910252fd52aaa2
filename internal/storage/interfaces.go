package storage

import (
	"context"
	"io"

	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/models"
)

// DonationCache defines the interface for caching reconciled donation feeds.
type DonationCache interface {
	// PutFeed stores a feed under its owner+endpoint key, guarded by the
	// query generation that produced it. Stale generations are discarded.
	PutFeed(ctx context.Context, key string, generation uint64, feed *models.DonationFeed) error

	// GetFeed retrieves a cached feed; ok is false when the entry is missing
	// or past its freshness window.
	GetFeed(ctx context.Context, key string) (*models.DonationFeed, bool, error)

	// NextGeneration claims the next query generation for a key. A newer
	// generation supersedes any in-flight older one.
	NextGeneration(ctx context.Context, key string) (uint64, error)

	// Ping checks if the cache is reachable
	Ping(ctx context.Context) error

	// Close closes the cache connection
	io.Closer

	// PublishDonation publishes a newly observed donation to the Pub/Sub channel
	PublishDonation(ctx context.Context, rec *models.DonationRecord) error

	// SubscribeDonations subscribes to real-time donation events
	SubscribeDonations(ctx context.Context) (<-chan *models.DonationRecord, error)
}

// DonationStore defines the interface for persistent donation storage.
type DonationStore interface {
	// InsertDonation inserts a donation record into the store
	InsertDonation(ctx context.Context, rec *models.DonationRecord) error

	// Ping checks if the store is reachable
	Ping(ctx context.Context) error

	// Close closes the store connection
	io.Closer
}

// DonationHandler is a function that processes donation records.
type DonationHandler func(*models.DonationRecord)

// StreamProvider defines the interface for donation event streaming.
type StreamProvider interface {
	// Start begins streaming donation events
	Start(ctx context.Context, handler DonationHandler) error

	// Stop stops the stream provider
	Stop() error
}
