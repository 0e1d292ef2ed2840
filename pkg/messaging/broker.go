package messaging

import (
	"context"
)

// Broker is the pub/sub fabric used to fan realtime events out across
// API instances. A single-instance deployment can run without one.
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}
