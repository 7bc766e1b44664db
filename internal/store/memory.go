package store

import (
	"context"
	"sort"
	"sync"

	"lecture-quiz/internal/models"
)

type memoryRecords struct {
	mu   sync.RWMutex
	jobs map[string]models.Job
}

// NewMemoryStore keeps jobs in process memory. It does not survive restart and
// is meant for tests and local runs.
func NewMemoryStore() *Store {
	return &Store{records: &memoryRecords{jobs: make(map[string]models.Job)}}
}

func (m *memoryRecords) load(_ context.Context, jobID string) (*models.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return nil, nil
	}
	return copyJob(job), nil
}

func (m *memoryRecords) create(_ context.Context, job models.Job) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[job.JobID]; ok {
		return false, nil
	}
	m.jobs[job.JobID] = *copyJob(job)
	return true, nil
}

func (m *memoryRecords) replace(_ context.Context, job models.Job, expectVersion int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.jobs[job.JobID]
	if !ok || current.Version != expectVersion {
		return false, nil
	}
	m.jobs[job.JobID] = *copyJob(job)
	return true, nil
}

func (m *memoryRecords) list(_ context.Context, limit int32) ([]models.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, *copyJob(job))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt > out[j].UpdatedAt })
	if int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func copyJob(job models.Job) *models.Job {
	c := job
	if job.Transcript != nil {
		t := *job.Transcript
		c.Transcript = &t
	}
	return &c
}
