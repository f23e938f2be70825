package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aquaforge/pondops-backend/internal/platform/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func recvMessage(t *testing.T, ch <-chan SSEMessage, timeout time.Duration) SSEMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for SSE message")
	}
	return SSEMessage{}
}

func TestSSEHubReconnectAndOrdering(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	channel := CycleChannel(uuid.New())

	clientA := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientA, channel)

	first := SSEMessage{Channel: channel, Event: SSEEventProjectionReforecast, Data: map[string]any{"seq": 1}}
	second := SSEMessage{Channel: channel, Event: SSEEventProjectionPublished, Data: map[string]any{"seq": 2}}
	hub.Broadcast(first)
	hub.Broadcast(second)

	gotFirst := recvMessage(t, clientA.Outbound, time.Second)
	gotSecond := recvMessage(t, clientA.Outbound, time.Second)
	if gotFirst.Event != SSEEventProjectionReforecast {
		t.Fatalf("first event: want=%s got=%s", SSEEventProjectionReforecast, gotFirst.Event)
	}
	if gotSecond.Event != SSEEventProjectionPublished {
		t.Fatalf("second event: want=%s got=%s", SSEEventProjectionPublished, gotSecond.Event)
	}

	hub.CloseClient(clientA)
	select {
	case _, ok := <-clientA.Outbound:
		if ok {
			t.Fatalf("clientA outbound should be closed after disconnect")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for clientA channel close")
	}

	clientB := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientB, channel)
	reconnect := SSEMessage{Channel: channel, Event: SSEEventHarvestConfirmed, Data: map[string]any{"seq": 3}}
	hub.Broadcast(reconnect)
	gotReconnect := recvMessage(t, clientB.Outbound, time.Second)
	if gotReconnect.Event != SSEEventHarvestConfirmed {
		t.Fatalf("reconnect event: want=%s got=%s", SSEEventHarvestConfirmed, gotReconnect.Event)
	}
}

func TestSSEHubChannelIsolation(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	cycleA := CycleChannel(uuid.New())
	cycleB := CycleChannel(uuid.New())

	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, cycleA)

	hub.Broadcast(SSEMessage{Channel: cycleB, Event: SSEEventBiometryCreated})
	hub.Broadcast(SSEMessage{Channel: cycleA, Event: SSEEventSeedingConfirmed})

	got := recvMessage(t, client.Outbound, time.Second)
	if got.Event != SSEEventSeedingConfirmed {
		t.Fatalf("expected only cycleA event, got=%s", got.Event)
	}
	select {
	case extra := <-client.Outbound:
		t.Fatalf("unexpected cross-channel delivery: %+v", extra)
	default:
	}
}

func TestSSEHubDuplicateEventsDelivered(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	channel := CycleChannel(uuid.New())
	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, channel)

	dup := SSEMessage{Channel: channel, Event: SSEEventBiometryCreated, Data: map[string]any{"pond": "A1"}}
	hub.Broadcast(dup)
	hub.Broadcast(dup)

	gotOne := recvMessage(t, client.Outbound, time.Second)
	gotTwo := recvMessage(t, client.Outbound, time.Second)
	if gotOne.Event != SSEEventBiometryCreated || gotTwo.Event != SSEEventBiometryCreated {
		t.Fatalf("expected duplicate transition events to be delivered, got=%s and %s", gotOne.Event, gotTwo.Event)
	}
}
