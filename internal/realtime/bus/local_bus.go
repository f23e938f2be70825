package bus

import (
	"context"

	"github.com/aquaforge/pondops-backend/internal/realtime"
)

// localBus fans messages straight into the in-process hub, standing in
// for Redis on single-instance deployments. StartForwarder is a no-op
// because Publish already reaches every connected client.
type localBus struct {
	hub *realtime.SSEHub
}

func NewLocalBus(hub *realtime.SSEHub) Bus {
	return &localBus{hub: hub}
}

func (b *localBus) Publish(_ context.Context, msg realtime.SSEMessage) error {
	b.hub.Broadcast(msg)
	return nil
}

func (b *localBus) StartForwarder(context.Context, func(m realtime.SSEMessage)) error {
	return nil
}

func (b *localBus) Close() error { return nil }
