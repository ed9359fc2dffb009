package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xhad/narrator/internal/models"
)

const DefaultRedisPrefix = "narrator:"

// RedisStore keeps snapshots as JSON strings. A single SET replaces the
// whole document, so partial writes cannot be observed.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

func NewRedisStore(config RedisConfig) (*RedisStore, error) {
	if config.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if config.Prefix == "" {
		config.Prefix = DefaultRedisPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	return &RedisStore{client: client, prefix: config.Prefix, now: time.Now}, nil
}

func (s *RedisStore) key(sourceID string) string {
	return s.prefix + Key(sourceID)
}

func (s *RedisStore) Load(ctx context.Context, sourceID string) (models.Snapshot, error) {
	data, err := s.client.Get(ctx, s.key(sourceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return empty(sourceID), nil
	}
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return decode(sourceID, data)
}

func (s *RedisStore) Save(ctx context.Context, sourceID, content string) error {
	data, err := encode(content, s.now())
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sourceID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
