package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/go-auth-service/internal/domain/entity"
)

const DefaultProfileTTL = 10 * time.Minute

func profileKey(userID string) string {
	return "account:profile:" + userID
}

// ProfileCache stores account profiles in Redis as JSON.
type ProfileCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewProfileCache(rdb *redis.Client, ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = DefaultProfileTTL
	}
	return &ProfileCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached profile and whether it was present.
func (c *ProfileCache) Get(ctx context.Context, userID string) (entity.Profile, bool, error) {
	var p entity.Profile
	ok, err := getJSON(ctx, c.rdb, profileKey(userID), &p)
	return p, ok, err
}

func (c *ProfileCache) Set(ctx context.Context, userID string, p entity.Profile) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, profileKey(userID), b, c.ttl).Err()
}

func (c *ProfileCache) Invalidate(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, profileKey(userID)).Err()
}

// getJSON decodes key into dest. A missing key is (false, nil).
func getJSON(ctx context.Context, rdb *redis.Client, key string, dest any) (bool, error) {
	raw, err := rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		// A stale shape is a miss; the caller refills it.
		return false, nil
	}
	return true, nil
}
