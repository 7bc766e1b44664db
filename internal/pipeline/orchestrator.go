// Package pipeline drives one upload through transcription, quiz generation
// and result persistence, using the job store as the only coordination point.
package pipeline

import (
	"context"
	"errors"
	"log"
	"time"

	"lecture-quiz/internal/failure"
	"lecture-quiz/internal/models"
	"lecture-quiz/internal/quiz"
	"lecture-quiz/internal/results"
	"lecture-quiz/internal/store"
	"lecture-quiz/internal/transcribe"

	"github.com/google/uuid"
)

// Notifier is told about terminal outcomes. Its errors never change an outcome.
type Notifier interface {
	Notify(ctx context.Context, out models.Outcome) error
}

type Orchestrator struct {
	store       store.JobStore
	transcriber transcribe.Client
	generator   quiz.Generator
	writer      results.Writer
	notifier    Notifier
	cfg         Config

	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	newOwner func() string
}

type Option func(*Orchestrator)

func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

func WithOwner(newOwner func() string) Option {
	return func(o *Orchestrator) { o.newOwner = newOwner }
}

func New(st store.JobStore, tc transcribe.Client, gen quiz.Generator, w results.Writer, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:       st,
		transcriber: tc,
		generator:   gen,
		writer:      w,
		cfg:         cfg.withDefaults(),
		now:         time.Now,
		sleep:       sleepContext,
		newOwner:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// run is the per-invocation view of one job.
type run struct {
	job      models.Job
	owner    string
	deadline time.Time // zero when the context has no deadline
}

// ProcessBatch handles every event independently and in order.
func (o *Orchestrator) ProcessBatch(ctx context.Context, events []models.UploadEvent) []models.Outcome {
	outcomes := make([]models.Outcome, 0, len(events))
	for _, ev := range events {
		outcomes = append(outcomes, o.ProcessUpload(ctx, ev))
	}
	return outcomes
}

// ProcessUpload runs the pipeline for one upload. It never panics on provider
// failures and always returns an outcome.
func (o *Orchestrator) ProcessUpload(ctx context.Context, ev models.UploadEvent) models.Outcome {
	out := models.Outcome{EventID: ev.EventID, Bucket: ev.Bucket, Key: ev.Key}

	if ev.Bucket == "" || ev.Key == "" || !ev.HasSuffix(o.cfg.AllowedSuffixes) {
		log.Println("pipeline: skipping upload", "bucket=", ev.Bucket, "key=", ev.Key, "event_id=", ev.EventID)
		out.Kind = models.OutcomeSkipped
		out.Reason = models.ReasonInvalidInput
		return out
	}
	out.JobID = ev.JobID()

	r := &run{owner: o.newOwner()}
	if dl, ok := ctx.Deadline(); ok {
		r.deadline = dl.Add(-o.cfg.DeadlineMargin)
	}
	if err := o.checkBudget(ctx, r); err != nil {
		out.Kind = models.OutcomeTimedOut
		return out
	}

	now := o.now()
	seed := models.Job{
		JobID:       out.JobID,
		Bucket:      ev.Bucket,
		Key:         ev.Key,
		Fingerprint: ev.Fingerprint(),
		EventID:     ev.EventID,
	}
	res, err := o.store.TryAcquire(ctx, seed, store.Lease{
		Owner:       r.owner,
		NowMs:       now.UnixMilli(),
		ExpiresAtMs: now.Add(o.cfg.LeaseTimeout).UnixMilli(),
	})
	if err != nil {
		if ctx.Err() != nil {
			out.Kind = models.OutcomeTimedOut
			return out
		}
		log.Println("pipeline: acquire failed", "job_id=", out.JobID, "err=", err)
		out.Kind = models.OutcomeFailed
		out.Reason = models.ReasonStateStoreError
		return out
	}

	switch res.Status {
	case store.AcquireAlreadyComplete:
		log.Println("pipeline: already processed", "job_id=", out.JobID, "event_id=", ev.EventID)
		out.Kind = models.OutcomeAlreadyProcessed
		out.OutputKey = res.Job.OutputKey
		out.OutputBucket = o.outputBucket(ev.Bucket)
		return out
	case store.AcquireHeld:
		log.Println("pipeline: job held by another invocation", "job_id=", out.JobID, "owner=", res.Job.LeaseOwner)
		out.Kind = models.OutcomeInProgress
		return out
	}

	r.job = res.Job
	log.Println("pipeline: acquired",
		"job_id=", r.job.JobID,
		"state=", r.job.State,
		"attempt=", r.job.AttemptCount,
		"resumed=", res.Resumed,
	)

	err = o.execute(ctx, r)
	out = o.finish(ctx, r, out, err)

	if out.Kind == models.OutcomeComplete || out.Kind == models.OutcomeFailed {
		o.notify(ctx, out)
	}
	return out
}

func (o *Orchestrator) execute(ctx context.Context, r *run) error {
	for {
		if err := o.checkBudget(ctx, r); err != nil {
			return err
		}

		var err error
		switch r.job.State {
		case models.JobStatePending:
			err = o.advance(ctx, r, models.JobStateTranscribing, store.TransitionMeta{})
		case models.JobStateTranscribing:
			err = o.transcribe(ctx, r)
		case models.JobStateGenerating:
			err = o.generate(ctx, r)
		case models.JobStateWriting:
			err = o.write(ctx, r)
		case models.JobStateComplete:
			return nil
		default:
			return stepFailed(r.job.State, models.ReasonStateStoreError, errors.New("acquired job in unexpected state"))
		}
		if err != nil {
			return err
		}
	}
}

// finish maps the result of execute onto an outcome and, for unrecoverable
// step failures, records Failed.
func (o *Orchestrator) finish(ctx context.Context, r *run, out models.Outcome, err error) models.Outcome {
	if err == nil {
		log.Println("pipeline: complete", "job_id=", r.job.JobID, "output_key=", r.job.OutputKey)
		out.Kind = models.OutcomeComplete
		out.OutputKey = r.job.OutputKey
		out.OutputBucket = o.outputBucket(r.job.Bucket)
		return out
	}

	var se *StepError
	isStep := errors.As(err, &se)

	switch {
	case isStep && se.Reason == models.ReasonStateStoreError:
		log.Println("pipeline: state store error", "job_id=", r.job.JobID, "err=", err)
		out.Kind = models.OutcomeFailed
		out.Reason = models.ReasonStateStoreError
		return out

	case ctx.Err() != nil || (!isStep && failure.KindOf(err) == failure.KindDeadlineExceeded):
		log.Println("pipeline: out of time, leaving job resumable", "job_id=", r.job.JobID, "state=", r.job.State, "err=", err)
		o.release(ctx, r)
		out.Kind = models.OutcomeTimedOut
		return out

	case !isStep && failure.KindOf(err) == failure.KindConcurrencyConflict:
		return o.resolveConflict(ctx, r, out)
	}

	reason := models.ReasonStateStoreError
	if isStep {
		reason = se.Reason
	}
	log.Println("pipeline: step failed", "job_id=", r.job.JobID, "state=", r.job.State, "reason=", reason, "err=", err)

	now := o.now()
	ok, terr := o.store.Transition(ctx, r.job.JobID, r.job.State, models.JobStateFailed, store.TransitionMeta{
		Owner:     r.owner,
		NowMs:     now.UnixMilli(),
		LastError: reason + ": " + err.Error(),
	})
	if terr != nil {
		log.Println("pipeline: could not record failure", "job_id=", r.job.JobID, "err=", terr)
		out.Kind = models.OutcomeFailed
		out.Reason = models.ReasonStateStoreError
		return out
	}
	if !ok {
		return o.resolveConflict(ctx, r, out)
	}
	r.job.State = models.JobStateFailed
	out.Kind = models.OutcomeFailed
	out.Reason = reason
	return out
}

// resolveConflict re-reads a job whose CAS we lost.
func (o *Orchestrator) resolveConflict(ctx context.Context, r *run, out models.Outcome) models.Outcome {
	current, err := o.store.Get(ctx, r.job.JobID)
	if err != nil {
		log.Println("pipeline: re-read after conflict failed", "job_id=", r.job.JobID, "err=", err)
		out.Kind = models.OutcomeInProgress
		return out
	}
	if current != nil && current.State == models.JobStateComplete {
		out.Kind = models.OutcomeAlreadyProcessed
		out.OutputKey = current.OutputKey
		out.OutputBucket = o.outputBucket(current.Bucket)
		return out
	}
	log.Println("pipeline: lost job to another invocation", "job_id=", r.job.JobID)
	out.Kind = models.OutcomeInProgress
	return out
}

// advance persists a transition from the run's current state. A false CAS is
// reported as a concurrency conflict.
func (o *Orchestrator) advance(ctx context.Context, r *run, to models.JobState, meta store.TransitionMeta) error {
	now := o.now()
	meta.Owner = r.owner
	meta.NowMs = now.UnixMilli()
	meta.LeaseUntilMs = now.Add(o.cfg.LeaseTimeout).UnixMilli()

	from := r.job.State
	ok, err := o.store.Transition(ctx, r.job.JobID, from, to, meta)
	if err != nil {
		if ctx.Err() != nil {
			return deadlineErr("store.Transition", ctx.Err())
		}
		return stepFailed(from, models.ReasonStateStoreError, err)
	}
	if !ok {
		return conflictErr("store.Transition")
	}

	r.job.State = to
	r.job.UpdatedAt = meta.NowMs
	r.job.LeaseExpiresAt = meta.LeaseUntilMs
	if meta.TranscriptionHandle != "" {
		r.job.TranscriptionHandle = meta.TranscriptionHandle
		r.job.TranscriptionSubmittedAt = meta.TranscriptionSubmittedAt
		r.job.TranscriptionAttempts = meta.TranscriptionAttempts
	}
	if meta.Transcript != nil {
		r.job.Transcript = meta.Transcript
	}
	if meta.QuizPayload != "" {
		r.job.QuizPayload = meta.QuizPayload
	}
	if meta.OutputKey != "" {
		r.job.OutputKey = meta.OutputKey
	}
	if from != to {
		log.Println("pipeline: transition", "job_id=", r.job.JobID, "from=", from, "to=", to)
	}
	return nil
}

// renew extends the lease while a long step is in progress.
func (o *Orchestrator) renew(ctx context.Context, r *run) error {
	now := o.now()
	until := now.Add(o.cfg.LeaseTimeout).UnixMilli()
	ok, err := o.store.Renew(ctx, r.job.JobID, r.owner, now.UnixMilli(), until)
	if err != nil {
		if ctx.Err() != nil {
			return deadlineErr("store.Renew", ctx.Err())
		}
		return stepFailed(r.job.State, models.ReasonStateStoreError, err)
	}
	if !ok {
		return conflictErr("store.Renew")
	}
	r.job.LeaseExpiresAt = until
	return nil
}

func (o *Orchestrator) release(ctx context.Context, r *run) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := o.store.Release(rctx, r.job.JobID, r.owner, o.now().UnixMilli()); err != nil {
		log.Println("pipeline: release failed", "job_id=", r.job.JobID, "err=", err)
	}
}

func (o *Orchestrator) notify(ctx context.Context, out models.Outcome) {
	if o.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := o.notifier.Notify(nctx, out); err != nil {
		log.Println("pipeline: notify failed", "job_id=", out.JobID, "err=", err)
	}
}

// remaining is the usable invocation budget. ok is false when the context
// carries no deadline.
func (o *Orchestrator) remaining(r *run) (time.Duration, bool) {
	if r.deadline.IsZero() {
		return 0, false
	}
	return r.deadline.Sub(o.now()), true
}

func (o *Orchestrator) checkBudget(ctx context.Context, r *run) error {
	if err := ctx.Err(); err != nil {
		return deadlineErr("pipeline", err)
	}
	if rem, ok := o.remaining(r); ok && rem <= 0 {
		return deadlineErr("pipeline", nil)
	}
	return nil
}

// pause sleeps for d unless that would run past the invocation budget.
func (o *Orchestrator) pause(ctx context.Context, r *run, d time.Duration) error {
	if rem, ok := o.remaining(r); ok && rem <= d {
		return deadlineErr("pipeline.pause", nil)
	}
	if err := o.sleep(ctx, d); err != nil {
		return deadlineErr("pipeline.pause", err)
	}
	return nil
}
