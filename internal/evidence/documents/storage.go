// Package documents provides in-process document storage and field
// extraction collaborators for development and tests.
package documents

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"golang.org/x/crypto/blake2b"

	"rwagate/internal/evidence/providers"
)

const storageID = "memory-storage"

// MemoryStorage keeps documents in memory. References are content addressed:
// "doc:<key>:<blake2b-256 prefix>", so re-storing identical bytes under the
// same key yields the same reference.
type MemoryStorage struct {
	mu   sync.RWMutex
	docs map[providers.DocumentRef][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{docs: make(map[providers.DocumentRef][]byte)}
}

func (s *MemoryStorage) Store(ctx context.Context, key string, data []byte) (providers.DocumentRef, error) {
	if err := ctx.Err(); err != nil {
		return "", providers.Normalize(storageID, err)
	}
	if key == "" {
		return "", providers.NewProviderError(providers.ErrorBadData, storageID, "document key is required", nil)
	}
	if len(data) == 0 {
		return "", providers.NewProviderError(providers.ErrorBadData, storageID, "document is empty", nil)
	}
	sum := blake2b.Sum256(data)
	ref := providers.DocumentRef(fmt.Sprintf("doc:%s:%s", key, hex.EncodeToString(sum[:12])))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[ref] = append([]byte(nil), data...)
	return ref, nil
}

func (s *MemoryStorage) Exists(_ context.Context, ref providers.DocumentRef) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[ref]
	return ok, nil
}

// Load returns the stored bytes.
func (s *MemoryStorage) Load(_ context.Context, ref providers.DocumentRef) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[ref]
	if !ok {
		return nil, providers.NewProviderError(providers.ErrorNotFound, storageID, "document not found", nil)
	}
	return append([]byte(nil), data...), nil
}
