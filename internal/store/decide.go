package store

import (
	"fmt"

	"lecture-quiz/internal/models"
)

// decideAcquire is the lease policy shared by every backend. It returns the
// job to write when the result is Acquired.
func decideAcquire(existing *models.Job, seed models.Job, lease Lease) (models.Job, LeaseResult) {
	if existing == nil {
		job := seed
		job.State = models.JobStatePending
		job.AttemptCount = 1
		job.LastError = ""
		job.LeaseOwner = lease.Owner
		job.LeaseExpiresAt = lease.ExpiresAtMs
		job.CreatedAt = lease.NowMs
		job.UpdatedAt = lease.NowMs
		job.Version = 1
		return job, LeaseResult{Status: AcquireAcquired}
	}

	switch {
	case existing.State == models.JobStateComplete:
		return models.Job{}, LeaseResult{Status: AcquireAlreadyComplete, Job: *existing}

	case existing.State == models.JobStateFailed:
		job := freshAttempt(*existing, lease.NowMs)
		job.AttemptCount = existing.AttemptCount + 1
		job.LeaseOwner = lease.Owner
		job.LeaseExpiresAt = lease.ExpiresAtMs
		job.Version = existing.Version + 1
		if seed.EventID != "" {
			job.EventID = seed.EventID
		}
		return job, LeaseResult{Status: AcquireAcquired}

	case existing.LeaseLive(lease.NowMs):
		return models.Job{}, LeaseResult{Status: AcquireHeld, Job: *existing}

	default:
		// In flight with an expired or released lease: resume where it stopped.
		job := *existing
		job.AttemptCount = existing.AttemptCount + 1
		job.LeaseOwner = lease.Owner
		job.LeaseExpiresAt = lease.ExpiresAtMs
		job.UpdatedAt = lease.NowMs
		job.Version = existing.Version + 1
		return job, LeaseResult{Status: AcquireAcquired, Resumed: true}
	}
}

// freshAttempt returns job reset to Pending with all step data dropped.
func freshAttempt(job models.Job, nowMs int64) models.Job {
	job.State = models.JobStatePending
	job.LastError = ""
	job.LeaseOwner = ""
	job.LeaseExpiresAt = 0
	job.TranscriptionHandle = ""
	job.TranscriptionSubmittedAt = 0
	job.TranscriptionAttempts = 0
	job.Transcript = nil
	job.QuizPayload = ""
	job.OutputKey = ""
	job.UpdatedAt = nowMs
	return job
}

// decideTransition applies one guarded state change. ok is false when the
// state or lease owner moved underneath the caller.
func decideTransition(job models.Job, from, to models.JobState, meta TransitionMeta) (models.Job, bool, error) {
	if job.State != from || job.LeaseOwner != meta.Owner {
		return models.Job{}, false, nil
	}
	if !models.CanTransition(from, to) {
		return models.Job{}, false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	next := job
	next.State = to
	next.UpdatedAt = meta.NowMs
	next.Version = job.Version + 1

	if meta.LastError != "" {
		next.LastError = meta.LastError
	}
	if meta.TranscriptionHandle != "" {
		next.TranscriptionHandle = meta.TranscriptionHandle
	}
	if meta.TranscriptionSubmittedAt != 0 {
		next.TranscriptionSubmittedAt = meta.TranscriptionSubmittedAt
	}
	if meta.TranscriptionAttempts != 0 {
		next.TranscriptionAttempts = meta.TranscriptionAttempts
	}
	if meta.Transcript != nil {
		t := *meta.Transcript
		next.Transcript = &t
	}
	if meta.QuizPayload != "" {
		next.QuizPayload = meta.QuizPayload
	}
	if meta.OutputKey != "" {
		next.OutputKey = meta.OutputKey
	}

	if to.Terminal() {
		next.LeaseOwner = ""
		next.LeaseExpiresAt = 0
	} else if meta.LeaseUntilMs != 0 {
		next.LeaseExpiresAt = meta.LeaseUntilMs
	}
	return next, true, nil
}
