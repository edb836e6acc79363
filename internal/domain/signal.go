package domain

import "context"

// EventPublisher fans scan events out to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}
