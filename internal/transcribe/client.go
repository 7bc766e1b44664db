package transcribe

import "context"

type State string

const (
	StateRunning   State = "RUNNING"
	StateSucceeded State = "SUCCEEDED"
	StateFailed    State = "FAILED"
)

// Request identifies the media to transcribe. Name must be unique per
// submission and stable across retries of the same submission.
type Request struct {
	Name         string
	Bucket       string
	Key          string
	LanguageCode string
}

// Handle is the provider-side reference to a submitted transcription.
type Handle string

type Status struct {
	State         State
	Text          string
	LanguageCode  string
	Confidence    *float64
	FailureReason string
}

// Client submits audio for asynchronous transcription and reports progress.
// Errors are classified with the failure package.
type Client interface {
	Submit(ctx context.Context, req Request) (Handle, error)
	Poll(ctx context.Context, h Handle) (Status, error)
}
