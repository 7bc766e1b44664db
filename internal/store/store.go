package store

import (
	"context"
	"errors"
	"fmt"

	"lecture-quiz/internal/models"
)

// ErrInvalidTransition is returned when a caller asks for an edge the state
// machine does not have. A lost race is not an error; see Transition.
var ErrInvalidTransition = errors.New("invalid state transition")

type AcquireStatus string

const (
	AcquireAcquired        AcquireStatus = "ACQUIRED"
	AcquireAlreadyComplete AcquireStatus = "ALREADY_COMPLETE"
	AcquireHeld            AcquireStatus = "HELD"
)

// Lease is a time-bounded claim a single invocation asks for.
type Lease struct {
	Owner       string
	NowMs       int64
	ExpiresAtMs int64
}

type LeaseResult struct {
	Status AcquireStatus
	Job    models.Job
	// Resumed is set when an expired in-flight job was taken over.
	Resumed bool
}

// TransitionMeta carries the fencing owner and the step data persisted with a
// transition. Zero-valued fields leave the stored value untouched.
type TransitionMeta struct {
	Owner        string
	NowMs        int64
	LeaseUntilMs int64

	LastError                string
	TranscriptionHandle      string
	TranscriptionSubmittedAt int64
	TranscriptionAttempts    int
	Transcript               *models.Transcript
	QuizPayload              string
	OutputKey                string
}

// JobStore is the only concurrency-control point of the pipeline.
type JobStore interface {
	// TryAcquire creates the job if absent or takes over a Failed or expired
	// one. It never writes when the job is Complete or leased by someone else.
	TryAcquire(ctx context.Context, seed models.Job, lease Lease) (LeaseResult, error)
	// Transition is a compare-and-swap on the current state and lease owner.
	// It returns false when either no longer matches.
	Transition(ctx context.Context, jobID string, from, to models.JobState, meta TransitionMeta) (bool, error)
	Renew(ctx context.Context, jobID, owner string, nowMs, untilMs int64) (bool, error)
	Release(ctx context.Context, jobID, owner string, nowMs int64) error
	Get(ctx context.Context, jobID string) (*models.Job, error)
	List(ctx context.Context, limit int32) ([]models.Job, error)
	// ResetForReplay moves a Failed job back to Pending with a clean slate.
	ResetForReplay(ctx context.Context, jobID string, nowMs int64) (bool, error)
}

// records is the minimal persistence a backend provides. create must fail
// (false) when the job exists; replace must fail when the stored version
// differs from expectVersion.
type records interface {
	load(ctx context.Context, jobID string) (*models.Job, error)
	create(ctx context.Context, job models.Job) (bool, error)
	replace(ctx context.Context, job models.Job, expectVersion int64) (bool, error)
	list(ctx context.Context, limit int32) ([]models.Job, error)
}

const maxCASRetries = 3

// Store implements JobStore as read, decide, conditional write on Version
// over any records backend.
type Store struct {
	records records
}

func (s *Store) TryAcquire(ctx context.Context, seed models.Job, lease Lease) (LeaseResult, error) {
	for i := 0; i < maxCASRetries; i++ {
		existing, err := s.records.load(ctx, seed.JobID)
		if err != nil {
			return LeaseResult{}, fmt.Errorf("load job %s: %w", seed.JobID, err)
		}

		next, res := decideAcquire(existing, seed, lease)
		if res.Status != AcquireAcquired {
			return res, nil
		}

		var ok bool
		if existing == nil {
			ok, err = s.records.create(ctx, next)
		} else {
			ok, err = s.records.replace(ctx, next, existing.Version)
		}
		if err != nil {
			return LeaseResult{}, fmt.Errorf("write job %s: %w", seed.JobID, err)
		}
		if ok {
			res.Job = next
			return res, nil
		}
		// Someone else wrote between our read and write; decide again.
	}

	current, err := s.records.load(ctx, seed.JobID)
	if err != nil {
		return LeaseResult{}, fmt.Errorf("load job %s: %w", seed.JobID, err)
	}
	res := LeaseResult{Status: AcquireHeld}
	if current != nil {
		res.Job = *current
		if current.State == models.JobStateComplete {
			res.Status = AcquireAlreadyComplete
		}
	}
	return res, nil
}

func (s *Store) Transition(ctx context.Context, jobID string, from, to models.JobState, meta TransitionMeta) (bool, error) {
	job, err := s.records.load(ctx, jobID)
	if err != nil {
		return false, fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job == nil {
		return false, nil
	}

	next, ok, err := decideTransition(*job, from, to, meta)
	if err != nil || !ok {
		return false, err
	}

	ok, err = s.records.replace(ctx, next, job.Version)
	if err != nil {
		return false, fmt.Errorf("transition job %s %s->%s: %w", jobID, from, to, err)
	}
	return ok, nil
}

func (s *Store) Renew(ctx context.Context, jobID, owner string, nowMs, untilMs int64) (bool, error) {
	job, err := s.records.load(ctx, jobID)
	if err != nil {
		return false, fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job == nil || job.LeaseOwner != owner || !job.State.InFlight() {
		return false, nil
	}

	next := *job
	next.LeaseExpiresAt = untilMs
	next.UpdatedAt = nowMs
	next.Version++
	return s.records.replace(ctx, next, job.Version)
}

func (s *Store) Release(ctx context.Context, jobID, owner string, nowMs int64) error {
	job, err := s.records.load(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job == nil || job.LeaseOwner != owner {
		return nil
	}

	next := *job
	next.LeaseOwner = ""
	next.LeaseExpiresAt = 0
	next.UpdatedAt = nowMs
	next.Version++
	if _, err := s.records.replace(ctx, next, job.Version); err != nil {
		return fmt.Errorf("release job %s: %w", jobID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, jobID string) (*models.Job, error) {
	return s.records.load(ctx, jobID)
}

func (s *Store) List(ctx context.Context, limit int32) ([]models.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.records.list(ctx, limit)
}

func (s *Store) ResetForReplay(ctx context.Context, jobID string, nowMs int64) (bool, error) {
	job, err := s.records.load(ctx, jobID)
	if err != nil {
		return false, fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job == nil || job.State != models.JobStateFailed {
		return false, nil
	}

	next := freshAttempt(*job, nowMs)
	next.AttemptCount = 0
	next.LastError = ""
	next.Version = job.Version + 1
	return s.records.replace(ctx, next, job.Version)
}
