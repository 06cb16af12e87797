package memory

import (
	"context"
	"sync"

	"rwagate/internal/rwa/models"
	"rwagate/pkg/domain"
	"rwagate/pkg/platform/sentinel"
)

// InMemory stores asset workflows keyed by asset.
type InMemory struct {
	mu        sync.RWMutex
	workflows map[domain.AssetID]*models.Workflow
}

func New() *InMemory {
	return &InMemory{workflows: make(map[domain.AssetID]*models.Workflow)}
}

func (s *InMemory) Get(_ context.Context, assetID domain.AssetID) (*models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.workflows[assetID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return wf.Clone(), nil
}

func (s *InMemory) Save(_ context.Context, wf *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[wf.AssetID] = wf.Clone()
	return nil
}
