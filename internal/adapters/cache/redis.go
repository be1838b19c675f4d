package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	perr "processo/internal/platform/errors"
)

// keyPrefix namespaces every cache entry in the shared redis keyspace
const keyPrefix = "processo:cache:"

// RedisStore is the external-service durable tier. Entries are stored under
// processo:cache:<queryType>:<key> with redis-side TTL matching the entry's
type RedisStore struct {
	client *redis.Client
}

// RedisOptions configures the redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore connects and pings the redis backend
func NewRedisStore(ctx context.Context, o RedisOptions) (*RedisStore, error) {
	if o.Addr == "" {
		o.Addr = "localhost:6379"
	}
	c := redis.NewClient(&redis.Options{Addr: o.Addr, Password: o.Password, DB: o.DB})
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeNetworkFailure, "cache: redis ping")
	}
	return &RedisStore{client: c}, nil
}

func redisKey(queryType, key string) string { return keyPrefix + queryType + ":" + key }

// Load scans the namespace for the key since the query type is not known
// from the hash alone
func (r *RedisStore) Load(ctx context.Context, key string) (*Entry, error) {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, keyPrefix+"*:"+key, 32).Result()
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeNetworkFailure, "cache: redis scan")
		}
		for _, k := range keys {
			b, err := r.client.Get(ctx, k).Bytes()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				return nil, perr.Wrap(err, perr.ErrorCodeNetworkFailure, "cache: redis get")
			}
			var e Entry
			if err := json.Unmarshal(b, &e); err != nil {
				_ = r.client.Del(ctx, k).Err()
				continue
			}
			return &e, nil
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return nil, perr.NotFoundf("cache: no entry for %s", key)
}

// Store writes the entry with its remaining TTL so redis expires it on its own
func (r *RedisStore) Store(ctx context.Context, e *Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	remain := e.TTL - time.Since(e.CreatedAt)
	if remain <= 0 {
		return nil
	}
	return r.client.Set(ctx, redisKey(e.QueryType, e.Key), b, remain).Err()
}

// Delete removes one entry across query-type namespaces
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, keyPrefix+"*:"+key, 32).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// DeleteMatching removes every entry of a query type ("" removes all)
func (r *RedisStore) DeleteMatching(ctx context.Context, queryType string) error {
	pattern := keyPrefix + "*"
	if queryType != "" {
		pattern = keyPrefix + queryType + ":*"
	}
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 128).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// LoadRecent is a no-op for the remote tier; promotion happens lazily on
// Get misses instead of bulk-copying the keyspace at startup
func (r *RedisStore) LoadRecent(context.Context, time.Duration) ([]*Entry, error) {
	return nil, nil
}

// Close releases the connection
func (r *RedisStore) Close() error { return r.client.Close() }
