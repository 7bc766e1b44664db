package models

type OutcomeKind string

const (
	OutcomeComplete         OutcomeKind = "COMPLETE"
	OutcomeAlreadyProcessed OutcomeKind = "ALREADY_PROCESSED"
	OutcomeSkipped          OutcomeKind = "SKIPPED"
	OutcomeInProgress       OutcomeKind = "IN_PROGRESS"
	OutcomeTimedOut         OutcomeKind = "TIMED_OUT"
	OutcomeFailed           OutcomeKind = "FAILED"
)

// Machine-readable failure reasons reported to the trigger.
const (
	ReasonInvalidInput        = "InvalidInput"
	ReasonTranscriptionFailed = "TranscriptionFailed"
	ReasonGenerationInvalid   = "GenerationInvalid"
	ReasonGenerationFailed    = "GenerationFailed"
	ReasonWriteFailed         = "WriteFailed"
	ReasonStateStoreError     = "StateStoreError"
)

// Outcome is the only thing a trigger layer sees for one upload event.
type Outcome struct {
	Kind         OutcomeKind `json:"kind"`
	Reason       string      `json:"reason,omitempty"`
	JobID        string      `json:"job_id,omitempty"`
	EventID      string      `json:"event_id,omitempty"`
	Bucket       string      `json:"bucket"`
	Key          string      `json:"key"`
	OutputBucket string      `json:"output_bucket,omitempty"`
	OutputKey    string      `json:"output_key,omitempty"`
}

// Retryable reports whether the trigger should redeliver the event later.
func (o Outcome) Retryable() bool {
	return o.Kind == OutcomeTimedOut || o.Kind == OutcomeInProgress
}
