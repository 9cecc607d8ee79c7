package repositories

import (
	"context"
	"sync"
)

// MemoryAttemptStore keeps attempt collections in process memory. State is lost on restart,
// so it only suits single-replica deployments and tests.
type MemoryAttemptStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMemoryAttemptStore creates an empty MemoryAttemptStore
func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{
		blobs: make(map[string][]byte),
	}
}

// Get returns a copy of the blob stored under name, or nil if none exists
func (s *MemoryAttemptStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return cloneBytes(s.blobs[name]), nil
}

// Set replaces the blob stored under name
func (s *MemoryAttemptStore) Set(ctx context.Context, name string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.blobs[name] = cloneBytes(value)
	return nil
}

// Update applies fn to the blob under name while holding the store lock
func (s *MemoryAttemptStore) Update(ctx context.Context, name string, fn func(current []byte) ([]byte, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(cloneBytes(s.blobs[name]))
	if err != nil {
		return err
	}
	if next != nil {
		s.blobs[name] = cloneBytes(next)
	}
	return nil
}

// Ping always succeeds for the in-memory store
func (s *MemoryAttemptStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
