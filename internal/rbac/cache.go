package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/optiflow-io/optiflow/internal/shared"
)

// RoleCache keeps resolved role sets in redis for a short TTL. The catalog
// is read-mostly shared state; concurrent cache fills for the same user
// are coalesced through singleflight.
type RoleCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewRoleCache constructs a cache. A nil client disables caching.
func NewRoleCache(client *redis.Client, ttl time.Duration) *RoleCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RoleCache{client: client, ttl: ttl}
}

func roleKey(userID int64) string {
	return fmt.Sprintf("rbac:roles:%d", userID)
}

// Get returns the cached role set, loading it through fill on a miss.
func (c *RoleCache) Get(ctx context.Context, userID int64, fill func(context.Context, int64) ([]shared.Role, error)) ([]shared.Role, error) {
	if c == nil || c.client == nil {
		return fill(ctx, userID)
	}
	key := roleKey(userID)
	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var roles []shared.Role
		if err := json.Unmarshal(raw, &roles); err == nil {
			return roles, nil
		}
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		roles, err := fill(ctx, userID)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(roles); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttl).Err()
		}
		return roles, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]shared.Role), nil
}

// Invalidate drops the cached role set, used after a role toggle.
func (c *RoleCache) Invalidate(ctx context.Context, userID int64) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, roleKey(userID)).Err()
}
