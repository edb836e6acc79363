package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// Publisher sends scan events over Redis Pub/Sub.
type Publisher struct {
	rdb redis.UniversalClient
}

// NewPublisher creates a Publisher backed by c.
func NewPublisher(c *Client) *Publisher {
	return &Publisher{rdb: c.rdb}
}

// Publish sends payload to channel.
func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := p.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

var _ domain.EventPublisher = (*Publisher)(nil)
