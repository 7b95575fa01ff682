package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/redis/go-redis/v9"
)

func NewRedisGuestStore(client *redis.Client) *RedisGuestStore {
	return &RedisGuestStore{
		client:  client,
		baseTTL: 30 * 24 * time.Hour,
	}
}

// RedisGuestStore keeps one serialized line-item list per guest id.
type RedisGuestStore struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *RedisGuestStore) Load(ctx context.Context, guestID string) ([]domain.LineItem, error) {
	data, err := r.client.Get(ctx, guestCartKey(guestID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoGuestCart
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var items []domain.LineItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("unmarshal guest cart failed: %w", err)
	}

	return domain.FilterValid(items), nil
}

func (r *RedisGuestStore) Save(ctx context.Context, guestID string, items []domain.LineItem) error {
	items = domain.FilterValid(items)
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal guest cart failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(60)) * time.Minute
	ttl := r.baseTTL + jitter
	if err := r.client.Set(ctx, guestCartKey(guestID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisGuestStore) Clear(ctx context.Context, guestID string) error {
	if err := r.client.Del(ctx, guestCartKey(guestID)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

func guestCartKey(guestID string) string {
	return "guest_cart:" + guestID
}
