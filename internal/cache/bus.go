package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// ListingChannel carries "the room listing changed" notices between instances.
const ListingChannel = "rooms:changed"

// ListingBus lets instances sharing one Redis tell each other to refresh the room listing.
// The payload is just the publishing instance's id, so an instance can ignore its own notices.
type ListingBus struct {
	rdb        *redis.Client
	instanceID string
}

func NewListingBus(rdb *redis.Client, instanceID string) *ListingBus {
	return &ListingBus{rdb: rdb, instanceID: instanceID}
}

// InstanceID identifies this process on the bus.
func (b *ListingBus) InstanceID() string {
	return b.instanceID
}

// Publish announces a listing change made by this instance.
func (b *ListingBus) Publish(ctx context.Context) error {
	return b.rdb.Publish(ctx, ListingChannel, b.instanceID).Err()
}

// Subscribe blocks until ctx is done, calling fn for every notice published by another instance.
func (b *ListingBus) Subscribe(ctx context.Context, fn func()) error {
	pubsub := b.rdb.Subscribe(ctx, ListingChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if msg.Payload == b.instanceID {
				continue
			}
			fn()
		}
	}
}
