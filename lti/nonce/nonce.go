// Package nonce provides replay protection for signed launch requests. A nonce
// that has already been presented within the acceptance window must cause the
// request to be rejected.
package nonce

import (
	"context"
	"sync"
	"time"
)

// Window is how long a nonce is remembered. It matches the timestamp tolerance
// applied to launch signatures, so a replayed request is rejected either by the
// store or by its stale timestamp.
const Window = 5 * time.Minute

// Store records presented nonces.
type Store interface {
	// SeenBefore atomically records the nonce and reports whether it had
	// already been presented within the acceptance window.
	SeenBefore(ctx context.Context, nonce string, now time.Time) (bool, error)
}

// MemoryStore is the default Store, suitable for a single-process provider.
type MemoryStore struct {
	expiries map[string]time.Time
	lock     sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{expiries: make(map[string]time.Time)}
}

func (s *MemoryStore) SeenBefore(_ context.Context, nonce string, now time.Time) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	for n, expiry := range s.expiries {
		if !expiry.After(now) {
			delete(s.expiries, n)
		}
	}

	if _, seen := s.expiries[nonce]; seen {
		return true, nil
	}
	s.expiries[nonce] = now.Add(Window)
	return false, nil
}
