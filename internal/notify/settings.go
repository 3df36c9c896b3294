package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"

	"mess/internal/apperr"
)

// SettingsStore is the settings boundary: the scheduler loads a fresh
// config at the start of every tick, admin endpoints save it.
type SettingsStore interface {
	Load(ctx context.Context) (Config, error)
	Save(ctx context.Context, cfg Config) error
}

// RedisSettings keeps the config as JSON under a single key so the api
// and notifier processes share it.
type RedisSettings struct {
	client *redis.Client
	key    string
}

// NewRedisSettings creates a settings store. An empty key uses the
// default.
func NewRedisSettings(client *redis.Client, key string) *RedisSettings {
	if key == "" {
		key = "mess:notify:config"
	}
	return &RedisSettings{client: client, key: key}
}

// Load returns the stored config, or the defaults when none was saved yet.
func (s *RedisSettings) Load(ctx context.Context) (Config, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return DefaultConfig(), nil
		}
		return Config{}, apperr.Transient(err, "settings load failed")
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, apperr.Transient(err, "settings decode failed")
	}
	return cfg, nil
}

// Save validates and stores the config.
func (s *RedisSettings) Save(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return apperr.Transient(err, "settings encode failed")
	}
	if err := s.client.Set(ctx, s.key, raw, 0).Err(); err != nil {
		return apperr.Transient(err, "settings save failed")
	}
	return nil
}

// MemorySettings is an in-process SettingsStore for dev and tests.
type MemorySettings struct {
	mu  sync.RWMutex
	cfg Config
}

// NewMemorySettings seeds a settings store with cfg.
func NewMemorySettings(cfg Config) *MemorySettings {
	return &MemorySettings{cfg: cfg}
}

func (s *MemorySettings) Load(_ context.Context) (Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg, nil
}

func (s *MemorySettings) Save(_ context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}
