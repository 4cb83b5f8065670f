package docstore

import (
	"context"
	"sync"
)

// MemoryStore keeps the encoded document in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	body []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(_ context.Context) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.body == nil {
		return Document{}, ErrNotFound
	}
	return Decode(s.body)
}

func (s *MemoryStore) Put(_ context.Context, doc Document) error {
	body, err := Encode(doc)
	if err != nil {
		return storeErr("put", err)
	}
	s.mu.Lock()
	s.body = body
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
func (s *MemoryStore) Close() error                { return nil }
