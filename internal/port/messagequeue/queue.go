// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Queue is the port interface for publishing engine events.
type Queue interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close() error
}
