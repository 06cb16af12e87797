package memory

import (
	"context"
	"sync"
	"time"

	"rwagate/internal/kyc/models"
	"rwagate/internal/workflow"
	"rwagate/pkg/domain"
	"rwagate/pkg/platform/sentinel"
)

// InMemory stores identity workflows keyed by user. Workflows are cloned on
// the way in and out.
type InMemory struct {
	mu        sync.RWMutex
	workflows map[domain.UserID]*models.Workflow
}

func New() *InMemory {
	return &InMemory{workflows: make(map[domain.UserID]*models.Workflow)}
}

func (s *InMemory) Get(_ context.Context, userID domain.UserID) (*models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.workflows[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return wf.Clone(), nil
}

func (s *InMemory) Save(_ context.Context, wf *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[wf.UserID] = wf.Clone()
	return nil
}

func (s *InMemory) ListVerifiedBefore(_ context.Context, cutoff time.Time) ([]domain.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []domain.UserID
	for id, wf := range s.workflows {
		if wf.Status == workflow.StatusVerified && wf.VerifiedAt != nil && !wf.VerifiedAt.After(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
