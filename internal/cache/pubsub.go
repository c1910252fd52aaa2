package cache

import (
	"context"
	"encoding/json"

	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/constants"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/models"
)

// PublishDonation publishes a donation record to the live channel.
func (r *RedisCache) PublishDonation(ctx context.Context, rec *models.DonationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, constants.PubSubChannelDonations, data).Err()
}

// SubscribeDonations subscribes to real-time donation events. The channel
// closes when ctx is cancelled.
func (r *RedisCache) SubscribeDonations(ctx context.Context) (<-chan *models.DonationRecord, error) {
	pubsub := r.client.Subscribe(ctx, constants.PubSubChannelDonations)

	// Confirm the subscription before handing out the channel.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan *models.DonationRecord)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var rec models.DonationRecord
				if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
					r.logger.WithError(err).Warn("failed to unmarshal donation event")
					continue
				}
				select {
				case out <- &rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
