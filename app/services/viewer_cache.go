package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/boostfeed/models"
	"github.com/amirphl/boostfeed/utils"
	"github.com/redis/go-redis/v9"
)

// ViewerCache stores assembled viewer profiles so that repeated feed requests skip the social graph queries
type ViewerCache interface {
	Get(ctx context.Context, viewerID uint) (*models.ViewerProfile, error)
	Set(ctx context.Context, profile *models.ViewerProfile) error
}

// RedisViewerCache implements ViewerCache on top of redis
type RedisViewerCache struct {
	rc        *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisViewerCache creates a redis backed viewer cache. A nil client yields a cache that always misses.
func NewRedisViewerCache(rc *redis.Client, keyPrefix string, ttl time.Duration) ViewerCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisViewerCache{rc: rc, keyPrefix: keyPrefix, ttl: ttl}
}

func (c *RedisViewerCache) key(viewerID uint) string {
	return fmt.Sprintf("%s%s%d", c.keyPrefix, utils.ViewerCacheKeyPrefix, viewerID)
}

// Get returns nil, nil on a cache miss
func (c *RedisViewerCache) Get(ctx context.Context, viewerID uint) (*models.ViewerProfile, error) {
	if c.rc == nil {
		return nil, nil
	}

	bs, err := c.rc.Get(ctx, c.key(viewerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var profile models.ViewerProfile
	if err := json.Unmarshal(bs, &profile); err != nil {
		// corrupted entry, drop it and report a miss
		if delErr := c.rc.Del(ctx, c.key(viewerID)).Err(); delErr != nil {
			log.Printf("viewer cache: failed to drop corrupted entry for %d: %v", viewerID, delErr)
		}
		return nil, nil
	}
	return &profile, nil
}

func (c *RedisViewerCache) Set(ctx context.Context, profile *models.ViewerProfile) error {
	if c.rc == nil || profile == nil {
		return nil
	}
	bs, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return c.rc.Set(ctx, c.key(profile.ID), bs, c.ttl).Err()
}
