package sqlstore

import (
	"context"
	"fmt"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const robotAdminCacheKey = "crm::admin_users::robot::v1"

type robotLookup interface {
	RobotID(ctx context.Context) (int64, error)
}

// CachedAdminDirectory memoizes the robot admin id, which changes rarely and
// is read on every ticket webhook.
type CachedAdminDirectory struct {
	base  robotLookup
	cache repositorycache.CacheService
}

func NewCachedAdminDirectory(base robotLookup, cacheService repositorycache.CacheService) (*CachedAdminDirectory, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base admin directory is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: admin directory cache service is required")
	}
	return &CachedAdminDirectory{base: base, cache: cacheService}, nil
}

func (d *CachedAdminDirectory) RobotID(ctx context.Context) (int64, error) {
	if d == nil || d.base == nil || d.cache == nil {
		return 0, fmt.Errorf("sqlstore: cached admin directory is not configured")
	}
	return repositorycache.GetOrFetch(ctx, d.cache, robotAdminCacheKey, func(ctx context.Context) (int64, error) {
		return d.base.RobotID(ctx)
	})
}

// Invalidate drops the memoized robot id.
func (d *CachedAdminDirectory) Invalidate(ctx context.Context) error {
	if d == nil || d.cache == nil {
		return fmt.Errorf("sqlstore: cached admin directory is not configured")
	}
	return d.cache.Delete(ctx, robotAdminCacheKey)
}
