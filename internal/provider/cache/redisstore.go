package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ratefeed/internal/provider"
)

// RedisStore keeps entries as JSON strings under prefix+symbol.
// Keys are written without expiry; staleness is decided on read.
type RedisStore struct {
	Now func() time.Time

	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// NewRedisStoreFromURL parses a redis:// URL, e.g. redis://localhost:6379/0.
func NewRedisStoreFromURL(raw, prefix string) (*RedisStore, error) {
	opt, err := redis.ParseURL(raw)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(opt), prefix), nil
}

func (r *RedisStore) key(symbol string) string { return r.prefix + symbol }

func (r *RedisStore) Read(ctx context.Context, symbol string) (*Entry, error) {
	val, err := r.client.Get(ctx, r.key(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", symbol, err)
	}
	var e Entry
	if err := json.Unmarshal(val, &e); err != nil {
		return nil, fmt.Errorf("decode entry %s: %w", symbol, err)
	}
	return &e, nil
}

func (r *RedisStore) Write(ctx context.Context, symbol string, q provider.Quote) error {
	b, err := json.Marshal(Entry{Symbol: symbol, Quote: q, StoredAt: now(r.Now)})
	if err != nil {
		return fmt.Errorf("encode entry %s: %w", symbol, err)
	}
	if err := r.client.Set(ctx, r.key(symbol), b, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", symbol, err)
	}
	return nil
}

// Close releases the underlying client.
func (r *RedisStore) Close() error { return r.client.Close() }
