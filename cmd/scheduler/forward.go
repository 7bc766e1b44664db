package main

import (
	"context"
	"log"
	"time"

	"lecture-quiz/internal/models"
	"lecture-quiz/internal/queue"
)

type uploadPublisher interface {
	PublishUpload(ctx context.Context, ev models.UploadEvent, attempt int) error
}

type scheduler struct {
	uploads uploadPublisher
	now     func() time.Time
	sleep   func(time.Duration)
}

// forward waits until the retry is due and puts the upload back on the
// main topic.
func (s *scheduler) forward(ctx context.Context, rm queue.RetryMessage) error {
	now := s.now().UnixMilli()
	if rm.NextRetryAt > now {
		s.sleep(time.Duration(rm.NextRetryAt-now) * time.Millisecond)
	}

	if err := s.uploads.PublishUpload(ctx, rm.Event, rm.Attempt); err != nil {
		return err
	}
	log.Println("scheduler: requeued", "job_id=", rm.Event.JobID(), "attempt=", rm.Attempt)
	return nil
}
