package inbox

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/earshot/pkg/wire"
)

// DefaultCapacity bounds the in-memory store when no capacity is configured.
const DefaultCapacity = 256

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store]. When full
// it drops the oldest pending notification to make room. Contents do not
// survive a restart; use [PostgresStore] when that matters.
// The zero value is ready to use with [DefaultCapacity].
type MemStore struct {
	mu       sync.Mutex
	pending  []Notification // oldest first
	capacity int
}

// NewMemStore returns a [MemStore] holding at most capacity notifications.
// A non-positive capacity means [DefaultCapacity].
func NewMemStore(capacity int) *MemStore {
	return &MemStore{capacity: capacity}
}

// Append implements [Store.Append].
func (s *MemStore) Append(ctx context.Context, n Notification) (Notification, error) {
	n.ID = uuid.NewString()
	n.CreatedAt = time.Now().UTC()
	if n.Priority == "" {
		n.Priority = wire.PriorityNormal
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	capacity := s.capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if len(s.pending) >= capacity {
		drop := len(s.pending) - capacity + 1
		s.pending = append(s.pending[:0], s.pending[drop:]...)
	}
	s.pending = append(s.pending, n)
	return n, nil
}

// Pending implements [Store.Pending].
func (s *MemStore) Pending(ctx context.Context) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return nil, nil
	}
	out := make([]Notification, len(s.pending))
	copy(out, s.pending)
	return out, nil
}

// MarkDelivered implements [Store.MarkDelivered].
func (s *MemStore) MarkDelivered(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.pending {
		if n.ID == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}
