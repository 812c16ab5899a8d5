package preferences

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/iwvelando/emi-calculator/pkg/constants"
)

// ErrNotFound is returned by a Store when a key has no value.
var ErrNotFound = errors.New("preference not found")

// Store is a string key-value store for preferences.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// MemoryStore keeps preferences in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

// Get returns the value for key or ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return val, nil
}

// Set stores value under key.
func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// RedisStore keeps preferences in redis without expiry.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a store backed by the redis server at addr.
func NewRedisStore(addr, password string, db int) *RedisStore {
	return &RedisStore{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// Get returns the value for key or ErrNotFound.
func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

// Set stores value under key.
func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Ping checks connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying connections.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// StoreConfig selects and configures a Store backend.
type StoreConfig struct {
	Backend       string `yaml:"backend"`
	RedisAddress  string `yaml:"redisAddress"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	Namespace     string `yaml:"namespace"`
	DefaultTheme  string `yaml:"defaultTheme"`
}

// NewStore builds the configured backend. An empty backend means memory.
func NewStore(cfg StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", constants.PreferenceBackendMemory:
		return NewMemoryStore(), nil
	case constants.PreferenceBackendRedis:
		addr := cfg.RedisAddress
		if addr == "" {
			addr = constants.DefaultRedisAddress
		}
		return NewRedisStore(addr, cfg.RedisPassword, cfg.RedisDB), nil
	default:
		return nil, fmt.Errorf("unsupported preference backend %q", cfg.Backend)
	}
}
