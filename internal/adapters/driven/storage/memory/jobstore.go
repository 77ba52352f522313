package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driven"
)

// Ensure JobStore implements the interface.
var _ driven.JobStore = (*JobStore)(nil)

// JobStore is an in-memory JobStore.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.BulkJob
}

// NewJobStore creates an empty in-memory job store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]domain.BulkJob)}
}

// SaveJob stores or updates a job record.
func (s *JobStore) SaveJob(_ context.Context, job *domain.BulkJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	stored := *job
	stored.ItemIDs = append([]string(nil), job.ItemIDs...)
	stored.FailedItems = append([]domain.FailedItem(nil), job.FailedItems...)
	s.jobs[job.ID] = stored
	return nil
}

// GetJob retrieves a job by ID.
func (s *JobStore) GetJob(_ context.Context, id string) (*domain.BulkJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

// ListJobs returns all job records, newest first.
func (s *JobStore) ListJobs(_ context.Context) ([]domain.BulkJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]domain.BulkJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
		}
		return jobs[i].ID < jobs[j].ID
	})
	return jobs, nil
}
