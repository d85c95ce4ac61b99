package inbound

import (
	"context"
	"testing"
	"time"
)

func TestMemoryClaimStore_ReclaimAfterTTLKeepsAttempts(t *testing.T) {
	store := NewMemoryClaimStore()
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return now }
	ctx := context.Background()

	claimID, ok, err := store.Claim(ctx, "delivery-1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	if err := store.Complete(ctx, claimID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, ok, _ := store.Claim(ctx, "delivery-1", time.Minute); ok {
		t.Fatalf("expected completed key to stay claimed inside its ttl")
	}

	now = now.Add(2 * time.Minute)
	if _, ok, err := store.Claim(ctx, "delivery-1", time.Minute); err != nil || !ok {
		t.Fatalf("reclaim after ttl: ok=%v err=%v", ok, err)
	}
	if attempts := store.Attempts("delivery-1"); attempts != 2 {
		t.Fatalf("expected two attempts, got %d", attempts)
	}
}

func TestMemoryClaimStore_EvictsOtherExpiredKeys(t *testing.T) {
	store := NewMemoryClaimStore()
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return now }
	ctx := context.Background()

	claimID, ok, err := store.Claim(ctx, "delivery-1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}
	if err := store.Complete(ctx, claimID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, ok, err := store.Claim(ctx, "delivery-2", time.Minute); err != nil || !ok {
		t.Fatalf("claim other key: ok=%v err=%v", ok, err)
	}
	if attempts := store.Attempts("delivery-1"); attempts != 0 {
		t.Fatalf("expected expired key evicted, got %d attempts", attempts)
	}
	if attempts := store.Attempts("delivery-2"); attempts != 1 {
		t.Fatalf("expected one attempt for new key, got %d", attempts)
	}
}
