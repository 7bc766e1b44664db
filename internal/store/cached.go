package store

import (
	"context"
	"log"
	"strings"
	"time"

	"lecture-quiz/internal/models"
)

// StatusCache remembers which jobs are complete. It is an optimization only;
// the wrapped JobStore stays the source of truth.
type StatusCache interface {
	GetJobStatus(ctx context.Context, jobID string) (string, error)
	SetJobStatus(ctx context.Context, jobID, status string, ttl time.Duration) error
}

const completeTTL = 24 * time.Hour

// Cached values are "COMPLETE:<output key>".
const completePrefix = string(models.JobStateComplete) + ":"

// CachedStore short-circuits TryAcquire for jobs the cache knows are complete.
type CachedStore struct {
	JobStore
	cache StatusCache
}

func NewCachedStore(inner JobStore, cache StatusCache) *CachedStore {
	return &CachedStore{JobStore: inner, cache: cache}
}

func (c *CachedStore) TryAcquire(ctx context.Context, seed models.Job, lease Lease) (LeaseResult, error) {
	status, err := c.cache.GetJobStatus(ctx, seed.JobID)
	if err != nil {
		log.Println("store: cache read failed (continuing):", err)
	} else if key, ok := strings.CutPrefix(status, completePrefix); ok && key != "" {
		job := seed
		job.State = models.JobStateComplete
		job.OutputKey = key
		return LeaseResult{Status: AcquireAlreadyComplete, Job: job}, nil
	}

	res, err := c.JobStore.TryAcquire(ctx, seed, lease)
	if err == nil && res.Status == AcquireAlreadyComplete {
		c.remember(ctx, seed.JobID, res.Job.OutputKey)
	}
	return res, err
}

func (c *CachedStore) Transition(ctx context.Context, jobID string, from, to models.JobState, meta TransitionMeta) (bool, error) {
	ok, err := c.JobStore.Transition(ctx, jobID, from, to, meta)
	if err == nil && ok && to == models.JobStateComplete {
		c.remember(ctx, jobID, meta.OutputKey)
	}
	return ok, err
}

func (c *CachedStore) remember(ctx context.Context, jobID, outputKey string) {
	if outputKey == "" {
		return
	}
	if err := c.cache.SetJobStatus(ctx, jobID, completePrefix+outputKey, completeTTL); err != nil {
		log.Println("store: cache write failed:", err)
	}
}
