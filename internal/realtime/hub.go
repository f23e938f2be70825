package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aquaforge/pondops-backend/internal/observability"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
)

type SSEEvent string

const (
	SSEEventProjectionPublished  SSEEvent = "ProjectionPublished"
	SSEEventProjectionReforecast SSEEvent = "ProjectionReforecast"
	SSEEventProjectionUploaded   SSEEvent = "ProjectionUploaded"
	SSEEventUploadProcessed      SSEEvent = "UploadProcessed"
	SSEEventUploadFailed         SSEEvent = "UploadFailed"
	SSEEventSeedingConfirmed     SSEEvent = "SeedingConfirmed"
	SSEEventBiometryCreated      SSEEvent = "BiometryCreated"
	SSEEventHarvestConfirmed     SSEEvent = "HarvestConfirmed"
)

// CycleChannel is the SSE channel carrying every event of one cycle.
func CycleChannel(cycleID uuid.UUID) string { return "cycle:" + cycleID.String() }

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

type SSEHub struct {
	mu            sync.RWMutex
	log           *logger.Logger
	subscriptions map[string]map[*SSEClient]bool
}

func NewSSEHub(log *logger.Logger) *SSEHub {
	return &SSEHub{
		log:           log.With("component", "SSEHub"),
		subscriptions: make(map[string]map[*SSEClient]bool),
	}
}

func (hub *SSEHub) NewSSEClient(userID uuid.UUID) *SSEClient {
	if m := observability.Current(); m != nil {
		m.SSEClientConnected()
	}
	return &SSEClient{
		ID:       uuid.New(),
		UserID:   userID,
		Channels: make(map[string]bool),
		Outbound: make(chan SSEMessage, 16),
	}
}

func (hub *SSEHub) AddChannel(client *SSEClient, channel string) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()

	client.Channels[channel] = true
	clients, ok := hub.subscriptions[channel]
	if !ok {
		clients = make(map[*SSEClient]bool)
		hub.subscriptions[channel] = clients
	}
	clients[client] = true
	hub.log.Debug("sse client subscribed", "client_id", client.ID, "channel", channel)
}

func (hub *SSEHub) RemoveChannel(client *SSEClient, channel string) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()

	delete(client.Channels, channel)
	if clients, ok := hub.subscriptions[channel]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(hub.subscriptions, channel)
		}
	}
}

// CloseClient detaches the client from every channel and closes its
// outbound stream. Safe to call once per client.
func (hub *SSEHub) CloseClient(client *SSEClient) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	for ch := range client.Channels {
		if clients, ok := hub.subscriptions[ch]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(hub.subscriptions, ch)
			}
		}
	}
	client.Channels = make(map[string]bool)
	client.closeOnce.Do(func() {
		close(client.Outbound)
		if m := observability.Current(); m != nil {
			m.SSEClientDisconnected()
		}
	})
}

// ServeHTTP streams the client's outbound messages until the request
// context ends or CloseClient closes the channel. Callers own the
// client lifecycle; this only drains.
func (hub *SSEHub) ServeHTTP(w http.ResponseWriter, r *http.Request, client *SSEClient) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			hub.log.Debug("sse client context done", "client_id", client.ID, "error", ctx.Err())
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg, open := <-client.Outbound:
			if !open {
				return
			}
			payload, err := json.Marshal(msg)
			if err != nil {
				hub.log.Warn("sse marshal failed", "client_id", client.ID, "event", msg.Event, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, payload)
			flusher.Flush()
		}
	}
}

// Broadcast fans the message out to every subscriber of its channel.
// Slow consumers are dropped-from, never blocked on.
func (hub *SSEHub) Broadcast(msg SSEMessage) {
	if m := observability.Current(); m != nil {
		m.IncSSEEvent(string(msg.Event))
	}

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	for client := range hub.subscriptions[msg.Channel] {
		select {
		case client.Outbound <- msg:
		default:
			hub.log.Warn("sse client buffer full, dropping message",
				"client_id", client.ID, "channel", msg.Channel, "event", msg.Event)
		}
	}
}
