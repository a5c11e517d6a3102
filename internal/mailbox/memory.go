package mailbox

import (
	"context"
	"sync"

	"github.com/roach88/courier/internal/ledger"
)

// MemoryStore is an in-process Store. Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	boxes map[ledger.AccountID][]Message
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{boxes: make(map[ledger.AccountID][]Message)}
}

func (s *MemoryStore) Append(_ context.Context, owner ledger.AccountID, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boxes[owner] = append(s.boxes[owner], msg)
	return nil
}

func (s *MemoryStore) List(_ context.Context, owner ledger.AccountID) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	box := s.boxes[owner]
	out := make([]Message, len(box))
	copy(out, box)
	return out, nil
}

func (s *MemoryStore) Clear(_ context.Context, owner ledger.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.boxes, owner)
	return nil
}
