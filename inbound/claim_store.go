package inbound

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

type claimStatus string

const (
	claimStatusProcessing claimStatus = "processing"
	claimStatusRetryReady claimStatus = "retry_ready"
	claimStatusComplete   claimStatus = "complete"
)

type claimEntry struct {
	status    claimStatus
	claimID   string
	attempts  int
	ttl       time.Duration
	expiresAt time.Time
	retryAt   time.Time
}

// MemoryClaimStore keeps claims in process memory. Completed keys are
// evicted once their TTL passes, except the key being re-claimed, which
// keeps its attempt count.
type MemoryClaimStore struct {
	mu      sync.Mutex
	entries map[string]claimEntry
	claims  map[string]string
	nextID  int
	Now     func() time.Time
}

func NewMemoryClaimStore() *MemoryClaimStore {
	return &MemoryClaimStore{
		entries: map[string]claimEntry{},
		claims:  map[string]string{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *MemoryClaimStore) Claim(_ context.Context, key string, lease time.Duration) (string, bool, error) {
	if s == nil {
		return "", false, inboundInternal("inbound: claim store is nil", nil)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, inboundBadInput("inbound: idempotency key is required", nil)
	}
	if lease <= 0 {
		lease = DefaultKeyTTL
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	s.evictExpiredLocked(now, key)

	entry, exists := s.entries[key]
	if exists {
		switch entry.status {
		case claimStatusComplete, claimStatusProcessing:
			if now.Before(entry.expiresAt) {
				return "", false, nil
			}
		case claimStatusRetryReady:
			if now.Before(entry.retryAt) {
				return "", false, nil
			}
		}
		if entry.claimID != "" {
			delete(s.claims, entry.claimID)
		}
	}

	claimID := s.nextClaimID()
	entry.status = claimStatusProcessing
	entry.claimID = claimID
	entry.attempts++
	entry.ttl = lease
	entry.expiresAt = now.Add(lease)
	entry.retryAt = time.Time{}
	s.entries[key] = entry
	s.claims[claimID] = key
	return claimID, true, nil
}

func (s *MemoryClaimStore) Complete(_ context.Context, claimID string) error {
	entry, key, ok, err := s.active(claimID)
	if err != nil || !ok {
		return err
	}
	defer s.mu.Unlock()
	entry.status = claimStatusComplete
	entry.expiresAt = s.now().Add(entry.ttl)
	entry.retryAt = time.Time{}
	s.entries[key] = entry
	delete(s.claims, claimID)
	return nil
}

func (s *MemoryClaimStore) Fail(_ context.Context, claimID string, _ error, retryAt time.Time) error {
	entry, key, ok, err := s.active(claimID)
	if err != nil || !ok {
		return err
	}
	defer s.mu.Unlock()
	if retryAt.IsZero() {
		retryAt = s.now()
	}
	entry.status = claimStatusRetryReady
	entry.retryAt = retryAt.UTC()
	entry.expiresAt = time.Time{}
	s.entries[key] = entry
	delete(s.claims, claimID)
	return nil
}

// Attempts reports how many times key has been claimed since it was last
// evicted.
func (s *MemoryClaimStore) Attempts(key string) int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[strings.TrimSpace(key)].attempts
}

// active returns the processing entry owned by claimID with the lock held
// when ok is true.
func (s *MemoryClaimStore) active(claimID string) (claimEntry, string, bool, error) {
	if s == nil {
		return claimEntry{}, "", false, inboundInternal("inbound: claim store is nil", nil)
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return claimEntry{}, "", false, inboundBadInput("inbound: claim id is required", nil)
	}
	s.mu.Lock()
	s.init()
	key, ok := s.claims[claimID]
	if !ok {
		s.mu.Unlock()
		return claimEntry{}, "", false, nil
	}
	entry, exists := s.entries[key]
	if !exists || entry.claimID != claimID || entry.status != claimStatusProcessing {
		delete(s.claims, claimID)
		s.mu.Unlock()
		return claimEntry{}, "", false, nil
	}
	return entry, key, true, nil
}

func (s *MemoryClaimStore) init() {
	if s.entries == nil {
		s.entries = map[string]claimEntry{}
	}
	if s.claims == nil {
		s.claims = map[string]string{}
	}
}

func (s *MemoryClaimStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *MemoryClaimStore) nextClaimID() string {
	s.nextID++
	return fmt.Sprintf("claim_%d", s.nextID)
}

func (s *MemoryClaimStore) evictExpiredLocked(now time.Time, keep string) {
	for key, entry := range s.entries {
		if key == keep || entry.status != claimStatusComplete {
			continue
		}
		if !now.Before(entry.expiresAt) {
			if entry.claimID != "" {
				delete(s.claims, entry.claimID)
			}
			delete(s.entries, key)
		}
	}
}
