package realtime

import (
	"sync"

	"github.com/google/uuid"
)

type SSEClient struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Channels map[string]bool
	Outbound chan SSEMessage

	closeOnce sync.Once
}
