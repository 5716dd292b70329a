package snapshot

import (
	"context"
	"sync"

	"github.com/HendryAvila/workboard-mcp/internal/metadata"
)

// MemoryStore keeps the last snapshot as encoded JSON so callers never
// share memory with it.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(context.Context) (*metadata.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, nil
	}
	return decode(s.data)
}

func (s *MemoryStore) Save(_ context.Context, snap metadata.Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error { return nil }
