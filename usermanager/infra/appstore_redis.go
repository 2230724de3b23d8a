package infra

import (
	"context"
	"strings"

	"user-manager/usermanager/domain"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisAppStore guarda o app id em uma chave do Redis, compartilhável entre processos.
//
// O cliente redis é de quem chamou: Close não o fecha.
type RedisAppStore struct {
	rdb *redis.Client
	key string
}

var _ domain.AppStore = (*RedisAppStore)(nil)

type RedisAppStoreOption func(*RedisAppStore)

func WithAppStorePrefix(prefix string) RedisAppStoreOption {
	return func(s *RedisAppStore) { s.key = strings.Trim(prefix, ":") + ":" + appIDKey }
}

func NewRedisAppStore(rdb *redis.Client, opts ...RedisAppStoreOption) *RedisAppStore {
	s := &RedisAppStore{rdb: rdb, key: "usermanager:" + appIDKey}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisAppStore) LoadAppID(ctx context.Context) (string, bool, error) {
	v, err := s.rdb.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "redis app store: get")
	}
	return v, true, nil
}

func (s *RedisAppStore) StoreAppID(ctx context.Context, appID string) error {
	return errors.Wrap(s.rdb.Set(ctx, s.key, appID, 0).Err(), "redis app store: set")
}

func (s *RedisAppStore) Clear(ctx context.Context) error {
	return errors.Wrap(s.rdb.Del(ctx, s.key).Err(), "redis app store: del")
}

func (s *RedisAppStore) Close() error { return nil }
