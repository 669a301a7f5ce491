package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/sirawit8921/massage-shop-reservation/internal/model"
)

// DefaultCollectionKey is the key the demo front end used for its
// reservation list.
const DefaultCollectionKey = "demo_reservations"

// RedisStore keeps the collection as one JSON string under a fixed key.
// SET replaces the value atomically.
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore returns a store bound to key; an empty key falls back to
// DefaultCollectionKey.
func NewRedisStore(rdb *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultCollectionKey
	}
	return &RedisStore{rdb: rdb, key: key}
}

func (s *RedisStore) Load(ctx context.Context) ([]model.Reservation, error) {
	b, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []model.Reservation{}, nil
	}
	if err != nil {
		return nil, err
	}
	items := []model.Reservation{}
	if err := json.Unmarshal(b, &items); err != nil {
		log.Printf("redis-store: key %s is not a reservation list, starting empty: %v", s.key, err)
		return []model.Reservation{}, nil
	}
	return items, nil
}

func (s *RedisStore) Save(ctx context.Context, items []model.Reservation) error {
	if err := checkUnique(items); err != nil {
		return err
	}
	if items == nil {
		items = []model.Reservation{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key, b, 0).Err()
}
