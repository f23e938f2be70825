package bus

import (
	"context"

	"github.com/aquaforge/pondops-backend/internal/realtime"
)

// Bus carries SSE messages across instances so every replica fans the
// same events out to its connected clients.
type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}
