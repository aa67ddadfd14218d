package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/keurgui/access-gateway-go/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
)

// Event types pushed to connected residents.
const (
	EventAccessCreated = "access_created"
	EventAccessRenewed = "access_renewed"
	EventAccessRevoked = "access_revoked"
	EventStatsUpdated  = "stats_updated"
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Client struct {
	Username string
	Events   chan Event
	Done     chan struct{}
}

// subscription is one resident's local fan-out: the connected clients plus
// the cancel for the redis pubsub goroutine they share.
type subscription struct {
	clients map[*Client]bool
	cancel  context.CancelFunc
}

// Broker fans out per-resident events. Each resident maps to one redis
// pubsub channel so events reach every gateway instance; local clients of
// the same resident share that subscription, and the subscription is torn
// down with its last client so a reconnect never stacks a second one.
type Broker struct {
	redis  *redisclient.Client
	subs   map[string]*subscription // username -> shared subscription
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:  redisClient,
		subs:   make(map[string]*subscription),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (b *Broker) Subscribe(username string) *Client {
	client := &Client{
		Username: username,
		Events:   make(chan Event, 100),
		Done:     make(chan struct{}),
	}

	b.mu.Lock()
	sub := b.subs[username]
	if sub == nil {
		subCtx, cancel := context.WithCancel(b.ctx)
		sub = &subscription{
			clients: make(map[*Client]bool),
			cancel:  cancel,
		}
		b.subs[username] = sub
		if b.redis != nil {
			go b.subscribeToRedis(subCtx, username)
		}
	}
	sub.clients[client] = true
	clientCount := len(sub.clients)
	b.mu.Unlock()

	log.Info().
		Str("username", username).
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subs[client.Username]
	if !ok {
		return
	}

	delete(sub.clients, client)
	close(client.Done)

	if len(sub.clients) == 0 {
		sub.cancel()
		delete(b.subs, client.Username)
	}

	log.Info().
		Str("username", client.Username).
		Int("clientCount", len(sub.clients)).
		Msg("sse client unsubscribed")
}

func (b *Broker) Publish(ctx context.Context, username string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	channel := redisclient.ResidentChannel(username)
	return b.redis.Publish(ctx, channel, data).Err()
}

func (b *Broker) subscribeToRedis(ctx context.Context, username string) {
	channel := redisclient.ResidentChannel(username)
	pubsub := b.redis.Subscribe(ctx, channel)
	defer pubsub.Close()

	log.Debug().
		Str("username", username).
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(username, event)
		}
	}
}

func (b *Broker) broadcast(username string, event Event) {
	b.mu.RLock()
	var clients []*Client
	if sub, ok := b.subs[username]; ok {
		for client := range sub.clients {
			clients = append(clients, client)
		}
	}
	b.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("username", username).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		for client := range sub.clients {
			close(client.Done)
		}
	}
	b.subs = make(map[string]*subscription)
}

// Residents lists the usernames with at least one connected client.
func (b *Broker) Residents() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.subs))
	for username := range b.subs {
		out = append(out, username)
	}
	return out
}

func (b *Broker) ClientCount(username string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if sub, ok := b.subs[username]; ok {
		return len(sub.clients)
	}
	return 0
}

func (b *Broker) TotalClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, sub := range b.subs {
		total += len(sub.clients)
	}
	return total
}
