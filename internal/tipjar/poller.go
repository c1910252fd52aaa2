package tipjar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/storage"
	"github.com/sirupsen/logrus"
)

// Poller implements storage.StreamProvider by periodically re-reconciling a
// tip jar and emitting donations it has not seen before.
type Poller struct {
	reconciler   *Reconciler
	owner        string
	pollInterval time.Duration
	logger       *logrus.Logger

	mu      sync.RWMutex
	seen    map[string]bool
	running bool
}

// PollerConfig holds configuration for the donation poller.
type PollerConfig struct {
	Reconciler   *Reconciler
	Owner        string
	PollInterval time.Duration
	Logger       *logrus.Logger
}

// NewPoller creates a new donation poller.
func NewPoller(cfg PollerConfig) *Poller {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}

	return &Poller{
		reconciler:   cfg.Reconciler,
		owner:        cfg.Owner,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
		seen:         make(map[string]bool),
	}
}

// Start begins polling for donations. Blocks until ctx is cancelled.
func (p *Poller) Start(ctx context.Context, handler storage.DonationHandler) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("poller already running")
	}
	p.running = true
	p.mu.Unlock()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	p.logger.WithFields(logrus.Fields{
		"interval": p.pollInterval,
		"owner":    p.owner,
	}).Info("starting donation polling")

	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.running = false
			p.mu.Unlock()
			return ctx.Err()

		case <-ticker.C:
			p.poll(ctx, handler)
		}
	}
}

// Stop stops the poller
func (p *Poller) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
	return nil
}

// poll reconciles the feed and hands unseen donations to the handler.
func (p *Poller) poll(ctx context.Context, handler storage.DonationHandler) {
	feed := p.reconciler.Reconcile(ctx, p.owner)
	if feed.Err != "" {
		p.logger.WithField("error", feed.Err).Error("poll reconciliation failed")
		return
	}

	var fresh int
	for i := range feed.Items {
		rec := feed.Items[i]
		key := rec.Signature + ":" + string(rec.TokenType)

		p.mu.Lock()
		already := p.seen[key]
		if !already {
			p.seen[key] = true
		}
		p.mu.Unlock()

		if already {
			continue
		}
		fresh++
		handler(&rec)
	}

	if fresh > 0 {
		p.logger.WithFields(logrus.Fields{
			"count": fresh,
			"jar":   feed.Jar,
		}).Info("found new donations")
	} else {
		p.logger.Debug("no new donations")
	}
}
