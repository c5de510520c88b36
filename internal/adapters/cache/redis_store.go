package cache

import (
	"collection-route-service/internal/platform/obs"
	"collection-route-service/internal/ports"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the whole matrix cache in one Redis hash. Fields are
// CacheKey strings and values are JSON encoded results.
type RedisStore struct {
	Client redis.UniversalClient
	Key    string
}

const DefaultRedisKey = "collection-route:matrix-cache"

func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{Client: client, Key: key}
}

func (s *RedisStore) Load(ctx context.Context) (_ map[ports.CacheKey]ports.DistanceResult, err error) {
	defer obs.Time(ctx, "matrix.store.redis.Load")(&err)

	if s.Client == nil {
		return nil, errors.New("redis matrix store: client is nil")
	}

	fields, err := s.Client.HGetAll(ctx, s.Key).Result()
	if err != nil {
		return nil, fmt.Errorf("load matrix cache: hgetall %q: %w", s.Key, err)
	}

	out := make(map[ports.CacheKey]ports.DistanceResult, len(fields))
	for field, raw := range fields {
		k, ok := parseKey(field)
		if !ok {
			return nil, corrupt("redis:"+s.Key, fmt.Errorf("malformed field %q", field))
		}
		var r ports.DistanceResult
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, corrupt("redis:"+s.Key, fmt.Errorf("field %q: %w", field, err))
		}
		out[k] = r
	}
	return out, nil
}

func (s *RedisStore) Save(ctx context.Context, entries map[ports.CacheKey]ports.DistanceResult) (err error) {
	defer obs.Time(ctx, "matrix.store.redis.Save")(&err)

	if s.Client == nil {
		return errors.New("redis matrix store: client is nil")
	}
	if len(entries) == 0 {
		return nil
	}

	values := make([]any, 0, 2*len(entries))
	for k, r := range entries {
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("save matrix cache: encode %s: %w", k, err)
		}
		values = append(values, k.String(), string(b))
	}
	if err := s.Client.HSet(ctx, s.Key, values...).Err(); err != nil {
		return fmt.Errorf("save matrix cache: hset %q: %w", s.Key, err)
	}
	return nil
}

// parseKey reverses ports.CacheKey.String.
func parseKey(s string) (ports.CacheKey, bool) {
	parts := strings.Split(s, "|")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return ports.CacheKey{}, false
	}
	return ports.CacheKey{Profile: parts[0], Origin: parts[1], Destination: parts[2]}, true
}
