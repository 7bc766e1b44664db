package main

import (
	"context"
	"log"
	"time"

	"lecture-quiz/internal/models"
	"lecture-quiz/internal/queue"
)

type uploadProcessor interface {
	ProcessUpload(ctx context.Context, ev models.UploadEvent) models.Outcome
}

type retryPublisher interface {
	PublishRetry(ctx context.Context, ev models.UploadEvent, attempt int, nextRetryAt int64) error
}

type worker struct {
	proc          uploadProcessor
	retry         retryPublisher
	timeout       time.Duration
	maxDeliveries int
	now           func() time.Time
}

// processOne runs one upload under the invocation budget. A non-nil error
// means the message must not be committed.
func (w *worker) processOne(ctx context.Context, um queue.UploadMessage) error {
	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	out := w.proc.ProcessUpload(runCtx, um.Event)
	cancel()

	log.Println("worker: outcome",
		"job_id=", out.JobID,
		"kind=", out.Kind,
		"reason=", out.Reason,
		"attempt=", um.Attempt,
	)

	if !out.Retryable() {
		return nil
	}

	attempt := um.Attempt + 1
	if attempt > w.maxDeliveries {
		log.Println("worker: giving up on redelivery", "job_id=", out.JobID, "deliveries=", um.Attempt)
		return nil
	}

	nextRetryAt := w.now().UnixMilli() + queue.RetryDelayMs(attempt)
	// If the publish fails the main message is redelivered and we try again.
	return w.retry.PublishRetry(ctx, um.Event, attempt, nextRetryAt)
}
