package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Repo = (*RedisRepo)(nil)

const defaultKeyPrefix = "reconfile:session:"

// RedisRepo stores entries as plain keys with native TTLs
type RedisRepo struct {
	client *redis.Client
	prefix string
}

// NewRedisRepo connects to Redis and fails fast when it is unreachable
func NewRedisRepo(ctx context.Context, addr, password string, db int) (*RedisRepo, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("[sessionstore NewRedisRepo] ping %s: %w", addr, err)
	}

	return &RedisRepo{client: rdb, prefix: defaultKeyPrefix}, nil
}

func (r *RedisRepo) key(sessionID, name string) string {
	return r.prefix + sessionID + ":" + name
}

// Put creates or replaces an entry. A non-positive ttl deletes it.
func (r *RedisRepo) Put(ctx context.Context, sessionID, name, value string, ttl time.Duration) error {
	if sessionID == "" {
		return ErrSessionIDRequired
	}
	if ttl <= 0 {
		return r.Delete(ctx, sessionID, name)
	}
	return r.client.Set(ctx, r.key(sessionID, name), value, ttl).Err()
}

func (r *RedisRepo) Get(ctx context.Context, sessionID, name string) (*string, error) {
	if sessionID == "" {
		return nil, ErrSessionIDRequired
	}
	v, err := r.client.Get(ctx, r.key(sessionID, name)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *RedisRepo) Delete(ctx context.Context, sessionID, name string) error {
	if sessionID == "" {
		return ErrSessionIDRequired
	}
	return r.client.Del(ctx, r.key(sessionID, name)).Err()
}

// Move renames each key of fromID. RENAME keeps the key's TTL.
func (r *RedisRepo) Move(ctx context.Context, fromID, toID string) error {
	if fromID == "" || toID == "" {
		return ErrSessionIDRequired
	}
	if fromID == toID {
		return nil
	}

	from := r.key(fromID, "")
	iter := r.client.Scan(ctx, 0, from+"*", 100).Iterator()
	for iter.Next(ctx) {
		name := strings.TrimPrefix(iter.Val(), from)
		err := r.client.Rename(ctx, iter.Val(), r.key(toID, name)).Err()
		// Expired between SCAN and RENAME
		if err != nil && !strings.Contains(err.Error(), "no such key") {
			return fmt.Errorf("[sessionstore Move] %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("[sessionstore Move] scan: %w", err)
	}
	return nil
}

func (r *RedisRepo) Close() error {
	return r.client.Close()
}
