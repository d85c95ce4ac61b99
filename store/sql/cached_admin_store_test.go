package sqlstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

type stubRobotLookup struct {
	mu    sync.Mutex
	id    int64
	err   error
	calls int
}

func (s *stubRobotLookup) RobotID(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.id, nil
}

func TestCachedAdminDirectory_MissFetchThenHit(t *testing.T) {
	base := &stubRobotLookup{id: 42}
	directory, err := NewCachedAdminDirectory(base, newTestCacheService(t))
	if err != nil {
		t.Fatalf("new cached directory: %v", err)
	}
	for i := 0; i < 3; i++ {
		id, err := directory.RobotID(context.Background())
		if err != nil {
			t.Fatalf("robot id: %v", err)
		}
		if id != 42 {
			t.Fatalf("expected 42, got %d", id)
		}
	}
	if base.calls != 1 {
		t.Fatalf("expected one base call, got %d", base.calls)
	}
}

func TestCachedAdminDirectory_InvalidateRefetches(t *testing.T) {
	base := &stubRobotLookup{id: 1}
	directory, err := NewCachedAdminDirectory(base, newTestCacheService(t))
	if err != nil {
		t.Fatalf("new cached directory: %v", err)
	}
	if _, err := directory.RobotID(context.Background()); err != nil {
		t.Fatalf("first read: %v", err)
	}
	base.id = 2
	if err := directory.Invalidate(context.Background()); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	id, err := directory.RobotID(context.Background())
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if id != 2 || base.calls != 2 {
		t.Fatalf("expected refetched id 2 after two calls, got id=%d calls=%d", id, base.calls)
	}
}

func TestCachedAdminDirectory_PropagatesBaseError(t *testing.T) {
	base := &stubRobotLookup{err: errors.New("db down")}
	directory, err := NewCachedAdminDirectory(base, newTestCacheService(t))
	if err != nil {
		t.Fatalf("new cached directory: %v", err)
	}
	if _, err := directory.RobotID(context.Background()); err == nil {
		t.Fatalf("expected base error")
	}
}

func TestNewCachedAdminDirectory_RequiresDependencies(t *testing.T) {
	if _, err := NewCachedAdminDirectory(nil, newTestCacheService(t)); err == nil {
		t.Fatalf("expected error for nil base")
	}
	if _, err := NewCachedAdminDirectory(&stubRobotLookup{}, nil); err == nil {
		t.Fatalf("expected error for nil cache")
	}
}

func newTestCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}
