package memory

import (
	"context"
	"sync"

	"antbox-backend/internal/domain"
	"antbox-backend/internal/repository"
)

// BinaryStore keeps binaries in process memory, keyed by tenant and uuid.
type BinaryStore struct {
	mu      sync.RWMutex
	objects map[string]map[string][]byte
}

// NewBinaryStore creates an empty in-memory binary store.
func NewBinaryStore() *BinaryStore {
	return &BinaryStore{objects: make(map[string]map[string][]byte)}
}

// Write stores the bytes for a uuid, replacing any previous content. The
// metadata tuple is advisory and ignored by this backend.
func (s *BinaryStore) Write(ctx context.Context, tenant, uuid string, content []byte, meta repository.BinaryMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.objects[tenant] == nil {
		s.objects[tenant] = make(map[string][]byte)
	}
	s.objects[tenant][uuid] = append([]byte(nil), content...)
	return nil
}

// Read returns the stored bytes for a uuid.
func (s *BinaryStore) Read(ctx context.Context, tenant, uuid string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content, exists := s.objects[tenant][uuid]
	if !exists {
		return nil, domain.NewNodeFileNotFound(uuid)
	}
	return append([]byte(nil), content...), nil
}

// Delete removes the stored bytes for a uuid.
func (s *BinaryStore) Delete(ctx context.Context, tenant, uuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[tenant][uuid]; !exists {
		return domain.NewNodeFileNotFound(uuid)
	}
	delete(s.objects[tenant], uuid)
	return nil
}
