package sse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/keurgui/access-gateway-go/internal/redis"
)

func testRedisClient(t *testing.T) *redisclient.Client {
	t.Helper()

	client, err := redisclient.NewClient("redis://localhost:6379/15")
	if err != nil {
		t.Skip("Redis not available for testing")
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestBrokerBookkeeping(t *testing.T) {
	b := NewBroker(nil)
	defer b.Close()

	c1 := b.Subscribe("alice")
	assert.Equal(t, 1, b.ClientCount("alice"))
	assert.Equal(t, []string{"alice"}, b.Residents())

	c2 := b.Subscribe("alice")
	assert.Equal(t, 2, b.ClientCount("alice"))
	assert.Equal(t, 2, b.TotalClients())

	b.Unsubscribe(c1)
	assert.Equal(t, 1, b.ClientCount("alice"))

	b.Unsubscribe(c2)
	assert.Equal(t, 0, b.ClientCount("alice"))
	assert.Empty(t, b.Residents())

	c3 := b.Subscribe("alice")
	assert.Equal(t, 1, b.ClientCount("alice"))
	b.Unsubscribe(c3)
}

func TestBrokerReconnectDeliversEventsOnce(t *testing.T) {
	client := testRedisClient(t)

	b := NewBroker(client)
	defer b.Close()

	// Connect, drop, reconnect: the first cycle's redis subscription must
	// be gone, otherwise every event arrives once per cycle.
	first := b.Subscribe("alice")
	b.Unsubscribe(first)

	second := b.Subscribe("alice")
	defer b.Unsubscribe(second)
	time.Sleep(250 * time.Millisecond)

	err := b.Publish(context.Background(), "alice", Event{
		Type: EventStatsUpdated,
		Data: []byte(`{"total":1}`),
	})
	require.NoError(t, err)

	select {
	case event := <-second.Events:
		assert.Equal(t, EventStatsUpdated, event.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("expected one event after reconnect")
	}

	select {
	case event := <-second.Events:
		t.Fatalf("received duplicate event %q after reconnect", event.Type)
	case <-time.After(500 * time.Millisecond):
	}
}
