// Package idempotency replays the first successful response of a request
// carrying an Idempotency-Key header, so a client can resubmit an order or a
// point transfer after a timeout without placing it twice.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "ecom:idem:"
	pending   = "pending"
	// lockTTL bounds how long a crashed request can keep its key claimed.
	lockTTL = 30 * time.Second
)

// Response is a cached HTTP response.
type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

type Store interface {
	// Begin claims key. It returns the cached response when the key already
	// completed, or claimed=false while another request still holds it.
	Begin(ctx context.Context, key string) (cached *Response, claimed bool, err error)
	Finish(ctx context.Context, key string, resp Response) error
	Release(ctx context.Context, key string) error
}

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Begin(ctx context.Context, key string) (*Response, bool, error) {
	k := keyPrefix + key
	ok, err := s.client.SetNX(ctx, k, pending, lockTTL).Result()
	if err != nil {
		return nil, false, err
	}
	if ok {
		return nil, true, nil
	}

	raw, err := s.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; let the caller retry the claim
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if raw == pending {
		return nil, false, nil
	}
	var resp Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, false, fmt.Errorf("decode cached response: %w", err)
	}
	return &resp, false, nil
}

func (s *RedisStore) Finish(ctx context.Context, key string, resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyPrefix+key, data, s.ttl).Err()
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, keyPrefix+key).Err()
}
