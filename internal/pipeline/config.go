package pipeline

import (
	"time"

	"lecture-quiz/internal/quiz"
)

// Config holds the orchestrator's timing and retry policy.
type Config struct {
	AllowedSuffixes []string

	// LeaseTimeout is how long a claim stays valid without renewal.
	LeaseTimeout time.Duration

	PollInitial  time.Duration
	PollMax      time.Duration
	PollDeadline time.Duration
	// TranscribeAttempts is the number of provider submissions per job attempt.
	TranscribeAttempts int

	GenerateTimeout  time.Duration
	GenerateAttempts int

	WriteAttempts int
	WriteBackoff  time.Duration

	// TransientRetries bounds consecutive transient failures inside one step.
	TransientRetries int
	RetryBackoff     time.Duration
	RetryBackoffMax  time.Duration

	// DeadlineMargin is kept free at the end of the invocation budget.
	DeadlineMargin time.Duration

	// ResultBucket overrides the source bucket for quiz output when set.
	ResultBucket string
	ResultPrefix string
	LanguageCode string

	Prompt quiz.PromptConfig
}

func DefaultConfig() Config {
	return Config{
		AllowedSuffixes:    []string{".mp4", ".mov"},
		LeaseTimeout:       5 * time.Minute,
		PollInitial:        5 * time.Second,
		PollMax:            60 * time.Second,
		PollDeadline:       15 * time.Minute,
		TranscribeAttempts: 3,
		GenerateTimeout:    2 * time.Minute,
		GenerateAttempts:   2,
		WriteAttempts:      3,
		WriteBackoff:       time.Second,
		TransientRetries:   3,
		RetryBackoff:       time.Second,
		RetryBackoffMax:    30 * time.Second,
		DeadlineMargin:     10 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if len(c.AllowedSuffixes) == 0 {
		c.AllowedSuffixes = d.AllowedSuffixes
	}
	if c.LeaseTimeout <= 0 {
		c.LeaseTimeout = d.LeaseTimeout
	}
	if c.PollInitial <= 0 {
		c.PollInitial = d.PollInitial
	}
	if c.PollMax <= 0 {
		c.PollMax = d.PollMax
	}
	if c.PollDeadline <= 0 {
		c.PollDeadline = d.PollDeadline
	}
	if c.TranscribeAttempts <= 0 {
		c.TranscribeAttempts = d.TranscribeAttempts
	}
	if c.GenerateTimeout <= 0 {
		c.GenerateTimeout = d.GenerateTimeout
	}
	if c.GenerateAttempts <= 0 {
		c.GenerateAttempts = d.GenerateAttempts
	}
	if c.WriteAttempts <= 0 {
		c.WriteAttempts = d.WriteAttempts
	}
	if c.WriteBackoff <= 0 {
		c.WriteBackoff = d.WriteBackoff
	}
	if c.TransientRetries <= 0 {
		c.TransientRetries = d.TransientRetries
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = d.RetryBackoff
	}
	if c.RetryBackoffMax <= 0 {
		c.RetryBackoffMax = d.RetryBackoffMax
	}
	if c.DeadlineMargin < 0 {
		c.DeadlineMargin = 0
	}
	// A lease renewed before a model call must outlive that call.
	if c.LeaseTimeout <= c.GenerateTimeout {
		c.LeaseTimeout = c.GenerateTimeout + time.Minute
	}
	return c
}
