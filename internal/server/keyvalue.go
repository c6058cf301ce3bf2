package server

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyValue is the only persistence substrate of the engine: string
// keys with per-key expiry. Redis in production, an in-memory map for
// development and tests.
type KeyValue interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type redisKV struct {
	client *redis.Client
}

func NewRedisKV(rawURL string) (KeyValue, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("redis url is empty")
	}
	opts, err := parseRedisURL(rawURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisKV{client: client}, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	pass, _ := u.User.Password()
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			db = v
		}
	}
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}

func (kv *redisKV) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := kv.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (kv *redisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return kv.client.Set(ctx, key, value, ttl).Err()
}

func (kv *redisKV) Del(ctx context.Context, key string) error {
	return kv.client.Del(ctx, key).Err()
}

type memoryKV struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func NewMemoryKV() KeyValue {
	return &memoryKV{entries: make(map[string]memoryEntry)}
}

func (kv *memoryKV) Get(ctx context.Context, key string) (string, bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	entry, ok := kv.entries[key]
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(kv.entries, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (kv *memoryKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	kv.entries[key] = entry
	return nil
}

func (kv *memoryKV) Del(ctx context.Context, key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.entries, key)
	return nil
}
