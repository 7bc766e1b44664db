package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"lecture-quiz/internal/failure"
	"lecture-quiz/internal/models"
	"lecture-quiz/internal/results"
	"lecture-quiz/internal/store"
	"lecture-quiz/internal/transcribe"
)

var errPollDeadline = errors.New("transcription did not finish before the poll deadline")

// transcribe submits the media (or reuses a persisted submission) and polls
// until a transcript is available, then moves the job to Generating.
func (o *Orchestrator) transcribe(ctx context.Context, r *run) error {
	const stage = models.JobStateTranscribing

	lastFailure := ""
	needSubmit := r.job.TranscriptionHandle == ""
	if !needSubmit && o.pollExpired(r) {
		lastFailure = errPollDeadline.Error()
		needSubmit = true
	}

	for {
		if needSubmit {
			if r.job.TranscriptionAttempts >= o.cfg.TranscribeAttempts {
				if lastFailure == "" {
					lastFailure = "no submissions left"
				}
				return stepFailed(stage, models.ReasonTranscriptionFailed,
					fmt.Errorf("gave up after %d submissions: %s", r.job.TranscriptionAttempts, lastFailure))
			}
			if err := o.submit(ctx, r); err != nil {
				return err
			}
			needSubmit = false
		}

		status, err := o.await(ctx, r)
		if errors.Is(err, errPollDeadline) {
			log.Println("pipeline: transcription poll deadline reached", "job_id=", r.job.JobID, "handle=", r.job.TranscriptionHandle)
			lastFailure = err.Error()
			needSubmit = true
			continue
		}
		if err != nil {
			return err
		}

		if status.State == transcribe.StateSucceeded && strings.TrimSpace(status.Text) == "" {
			status.State = transcribe.StateFailed
			status.FailureReason = "empty transcript"
		}
		if status.State == transcribe.StateFailed {
			log.Println("pipeline: transcription failed",
				"job_id=", r.job.JobID,
				"handle=", r.job.TranscriptionHandle,
				"reason=", status.FailureReason,
			)
			lastFailure = status.FailureReason
			needSubmit = true
			continue
		}

		return o.advance(ctx, r, models.JobStateGenerating, store.TransitionMeta{
			Transcript: &models.Transcript{
				JobID:        r.job.JobID,
				Text:         status.Text,
				LanguageCode: status.LanguageCode,
				Confidence:   status.Confidence,
			},
		})
	}
}

// submit starts a new provider job and persists its handle before polling.
func (o *Orchestrator) submit(ctx context.Context, r *run) error {
	attempt := r.job.TranscriptionAttempts + 1
	req := transcribe.Request{
		Name:         fmt.Sprintf("%s-a%d-t%d", r.job.JobID, r.job.AttemptCount, attempt),
		Bucket:       r.job.Bucket,
		Key:          r.job.Key,
		LanguageCode: o.cfg.LanguageCode,
	}

	var handle transcribe.Handle
	err := o.withRetry(ctx, r, models.JobStateTranscribing, models.ReasonTranscriptionFailed, func(ctx context.Context) error {
		var err error
		handle, err = o.transcriber.Submit(ctx, req)
		return err
	})
	if err != nil {
		return err
	}
	log.Println("pipeline: transcription submitted", "job_id=", r.job.JobID, "handle=", handle, "submission=", attempt)

	return o.advance(ctx, r, models.JobStateTranscribing, store.TransitionMeta{
		TranscriptionHandle:      string(handle),
		TranscriptionSubmittedAt: o.now().UnixMilli(),
		TranscriptionAttempts:    attempt,
	})
}

// await polls the persisted handle with exponential backoff until the
// provider reports a terminal state.
func (o *Orchestrator) await(ctx context.Context, r *run) (transcribe.Status, error) {
	handle := transcribe.Handle(r.job.TranscriptionHandle)
	delay := o.cfg.PollInitial

	for {
		if err := o.checkBudget(ctx, r); err != nil {
			return transcribe.Status{}, err
		}
		if o.pollExpired(r) {
			return transcribe.Status{}, errPollDeadline
		}

		var status transcribe.Status
		err := o.withRetry(ctx, r, models.JobStateTranscribing, models.ReasonTranscriptionFailed, func(ctx context.Context) error {
			var err error
			status, err = o.transcriber.Poll(ctx, handle)
			return err
		})
		if err != nil {
			return transcribe.Status{}, err
		}
		if status.State != transcribe.StateRunning {
			return status, nil
		}

		if err := o.renew(ctx, r); err != nil {
			return transcribe.Status{}, err
		}
		if err := o.pause(ctx, r, delay); err != nil {
			return transcribe.Status{}, err
		}
		delay = min(delay*2, o.cfg.PollMax)
	}
}

func (o *Orchestrator) pollExpired(r *run) bool {
	if r.job.TranscriptionSubmittedAt == 0 {
		return false
	}
	submitted := time.UnixMilli(r.job.TranscriptionSubmittedAt)
	return o.now().Sub(submitted) >= o.cfg.PollDeadline
}

// generate asks for a quiz, validates it and moves the job to Writing with
// the encoded quiz.
func (o *Orchestrator) generate(ctx context.Context, r *run) error {
	const stage = models.JobStateGenerating

	if r.job.Transcript == nil {
		return stepFailed(stage, models.ReasonGenerationFailed, errors.New("no transcript stored for job"))
	}

	invalid, transient := 0, 0
	for {
		if err := o.checkBudget(ctx, r); err != nil {
			return err
		}

		if err := o.renew(ctx, r); err != nil {
			return err
		}

		timeout := o.cfg.GenerateTimeout
		if rem, ok := o.remaining(r); ok && rem < timeout {
			timeout = rem
		}
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		q, err := o.generator.Generate(callCtx, r.job.Transcript.Text, o.cfg.Prompt)
		cancel()
		if err == nil {
			err = q.Validate()
		}
		if err == nil {
			return o.storeQuiz(ctx, r, q)
		}
		if ctx.Err() != nil {
			return deadlineErr("quiz.Generate", ctx.Err())
		}

		switch {
		case errors.Is(err, models.ErrInvalidQuiz):
			invalid++
			log.Println("pipeline: generator returned an invalid quiz", "job_id=", r.job.JobID, "try=", invalid, "err=", err)
			if invalid >= o.cfg.GenerateAttempts {
				return stepFailed(stage, models.ReasonGenerationInvalid, err)
			}

		case retryable(err):
			transient++
			if transient > o.cfg.TransientRetries {
				return stepFailed(stage, models.ReasonGenerationFailed, err)
			}
			log.Println("pipeline: transient generation error", "job_id=", r.job.JobID, "try=", transient, "err=", err)
			if err := o.pause(ctx, r, backoff(transient, o.cfg.RetryBackoff, o.cfg.RetryBackoffMax)); err != nil {
				return err
			}

		default:
			return stepFailed(stage, models.ReasonGenerationFailed, err)
		}
	}
}

func (o *Orchestrator) storeQuiz(ctx context.Context, r *run, q models.Quiz) error {
	q.JobID = r.job.JobID
	q.Source = models.QuizSource{Bucket: r.job.Bucket, Key: r.job.Key}
	if q.LanguageCode == "" {
		q.LanguageCode = o.cfg.Prompt.Language
	}
	if q.LanguageCode == "" {
		q.LanguageCode = r.job.Transcript.LanguageCode
	}
	q.GeneratedAt = o.now().UnixMilli()

	payload, err := models.EncodeQuiz(q)
	if err != nil {
		return stepFailed(models.JobStateGenerating, models.ReasonGenerationFailed, err)
	}
	return o.advance(ctx, r, models.JobStateWriting, store.TransitionMeta{
		QuizPayload: string(payload),
		OutputKey:   results.OutputKey(o.cfg.ResultPrefix, r.job.Key),
	})
}

// write puts the stored quiz at its output key and completes the job.
func (o *Orchestrator) write(ctx context.Context, r *run) error {
	const stage = models.JobStateWriting

	if r.job.QuizPayload == "" {
		return stepFailed(stage, models.ReasonWriteFailed, errors.New("no quiz stored for job"))
	}
	key := r.job.OutputKey
	if key == "" {
		key = results.OutputKey(o.cfg.ResultPrefix, r.job.Key)
	}
	bucket := o.outputBucket(r.job.Bucket)

	for attempt := 1; ; attempt++ {
		if err := o.checkBudget(ctx, r); err != nil {
			return err
		}
		if err := o.renew(ctx, r); err != nil {
			return err
		}
		err := o.writer.Put(ctx, bucket, key, []byte(r.job.QuizPayload))
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return deadlineErr("results.Put", ctx.Err())
		}
		if attempt >= o.cfg.WriteAttempts {
			return stepFailed(stage, models.ReasonWriteFailed, err)
		}
		log.Println("pipeline: write failed, retrying", "job_id=", r.job.JobID, "attempt=", attempt, "err=", err)
		if err := o.pause(ctx, r, backoff(attempt, o.cfg.WriteBackoff, o.cfg.RetryBackoffMax)); err != nil {
			return err
		}
	}

	return o.advance(ctx, r, models.JobStateComplete, store.TransitionMeta{OutputKey: key})
}

// outputBucket is where results land: ResultBucket when set, else next to
// the source object.
func (o *Orchestrator) outputBucket(source string) string {
	if o.cfg.ResultBucket != "" {
		return o.cfg.ResultBucket
	}
	return source
}

// withRetry calls fn until it succeeds, fails with a non-transient error, or
// fails transiently more than TransientRetries times in a row.
func (o *Orchestrator) withRetry(ctx context.Context, r *run, stage models.JobState, reason string, fn func(ctx context.Context) error) error {
	for failures := 0; ; {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return deadlineErr(string(stage), ctx.Err())
		}
		if !retryable(err) {
			return stepFailed(stage, reason, err)
		}
		failures++
		if failures > o.cfg.TransientRetries {
			return stepFailed(stage, reason, err)
		}
		log.Println("pipeline: transient error, backing off", "job_id=", r.job.JobID, "state=", stage, "try=", failures, "err=", err)
		if err := o.pause(ctx, r, backoff(failures, o.cfg.RetryBackoff, o.cfg.RetryBackoffMax)); err != nil {
			return err
		}
	}
}

// retryable reports transient provider errors, including a per-call timeout
// that fired while the invocation itself still had time.
func retryable(err error) bool {
	switch failure.KindOf(err) {
	case failure.KindTransient, failure.KindDeadlineExceeded:
		return true
	}
	return false
}
