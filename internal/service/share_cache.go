package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/keurgui/access-gateway-go/internal/model"
	redisclient "github.com/keurgui/access-gateway-go/internal/redis"
)

const shareCacheMinTTL = time.Minute

// ShareEntry is the guest-visible slice of a record, published to redis so
// the share page can serve it without a resident session.
type ShareEntry struct {
	ID        string    `json:"id"`
	GuestName string    `json:"name"`
	QRPayload string    `json:"qr_code_data"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ShareCache holds share entries keyed by record ID. Entries live until the
// grant expires; a revoked grant is dropped immediately.
type ShareCache struct {
	redis *redisclient.Client
}

func NewShareCache(redisClient *redisclient.Client) *ShareCache {
	return &ShareCache{redis: redisClient}
}

func shareKey(id string) string {
	return fmt.Sprintf("share:%s", id)
}

// Put publishes the record's share entry. Failures are logged, not
// surfaced: the share page is best effort and never blocks the resident's
// own flow.
func (c *ShareCache) Put(ctx context.Context, rec model.AccessRecord) {
	if c == nil || rec.QRPayload == "" {
		return
	}

	ttl := time.Until(rec.ExpiresAt)
	if ttl < shareCacheMinTTL {
		ttl = shareCacheMinTTL
	}

	entry := ShareEntry{
		ID:        rec.ID,
		GuestName: rec.GuestName,
		QRPayload: rec.QRPayload,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("recordId", rec.ID).Msg("failed to marshal share entry")
		return
	}

	if err := c.redis.Set(ctx, shareKey(rec.ID), data, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("recordId", rec.ID).Msg("failed to cache share entry")
	}
}

// Get returns the cached entry, or nil when unknown.
func (c *ShareCache) Get(ctx context.Context, id string) (*ShareEntry, error) {
	if c == nil {
		return nil, nil
	}

	data, err := c.redis.Get(ctx, shareKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entry ShareEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Drop removes the entry for a revoked grant.
func (c *ShareCache) Drop(ctx context.Context, id string) {
	if c == nil {
		return
	}
	if err := c.redis.Del(ctx, shareKey(id)).Err(); err != nil {
		log.Warn().Err(err).Str("recordId", id).Msg("failed to drop share entry")
	}
}
