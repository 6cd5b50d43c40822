package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepository stores each document as a JSON string under
// "<collection>:<id>". Documents expire after ttl; zero keeps them forever.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRepository(ctx context.Context, url string, ttl time.Duration) (Repository, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %v", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %v", err)
	}
	return &RedisRepository{
		client: client,
		ttl:    ttl,
	}, nil
}

func redisKey(collection, id string) string {
	return collection + ":" + id
}

func (r *RedisRepository) Close(ctx context.Context) error {
	return r.client.Close()
}

func (r *RedisRepository) GetDocument(ctx context.Context, collection, id string, out interface{}) error {
	data, err := r.client.Get(ctx, redisKey(collection, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return notFound(collection, id)
		}
		return fmt.Errorf("failed to get %s/%s: %v", collection, id, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s/%s: %v", collection, id, err)
	}
	return nil
}

func (r *RedisRepository) SetDocument(ctx context.Context, collection, id string, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %v", collection, id, err)
	}
	if err := r.client.Set(ctx, redisKey(collection, id), data, r.ttlFor(collection)).Err(); err != nil {
		return fmt.Errorf("failed to set %s/%s: %v", collection, id, err)
	}
	return nil
}

// UpdateDocument merges fields optimistically, retrying when the key changes
// between the read and the write.
func (r *RedisRepository) UpdateDocument(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	key := redisKey(collection, id)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return notFound(collection, id)
			}
			return fmt.Errorf("failed to get %s/%s: %v", collection, id, err)
		}
		merged, err := mergeFields(data, fields)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, merged, redis.SetArgs{KeepTTL: true})
			return nil
		})
		return err
	}

	for i := 0; i < 3; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("failed to update %s/%s: too much contention", collection, id)
}

func (r *RedisRepository) DeleteDocument(ctx context.Context, collection, id string) error {
	if err := r.client.Del(ctx, redisKey(collection, id)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %v", collection, id, err)
	}
	return nil
}

// ttlFor keeps accounts forever. Rooms and games share the room lifetime.
func (r *RedisRepository) ttlFor(collection string) time.Duration {
	switch collection {
	case CollectionUsers, CollectionCredentials:
		return 0
	}
	return r.ttl
}
