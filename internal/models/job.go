package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

type JobState string

const (
	JobStatePending      JobState = "PENDING"
	JobStateTranscribing JobState = "TRANSCRIBING"
	JobStateGenerating   JobState = "GENERATING"
	JobStateWriting      JobState = "WRITING"
	JobStateComplete     JobState = "COMPLETE"
	JobStateFailed       JobState = "FAILED"
)

// stateOrder is the forward order of the pipeline. Failed sits outside it.
var stateOrder = map[JobState]int{
	JobStatePending:      0,
	JobStateTranscribing: 1,
	JobStateGenerating:   2,
	JobStateWriting:      3,
	JobStateComplete:     4,
}

// InFlight reports whether s is a non-terminal pipeline state.
func (s JobState) InFlight() bool {
	switch s {
	case JobStatePending, JobStateTranscribing, JobStateGenerating, JobStateWriting:
		return true
	default:
		return false
	}
}

// Terminal reports whether s ends an attempt.
func (s JobState) Terminal() bool {
	return s == JobStateComplete || s == JobStateFailed
}

// CanTransition enforces the forward-only state machine. A non-terminal state
// may transition to itself to persist step metadata.
func CanTransition(from, to JobState) bool {
	if !from.InFlight() {
		return false
	}
	if to == JobStateFailed {
		return true
	}
	if from == to {
		return true
	}
	fi, ok := stateOrder[from]
	if !ok {
		return false
	}
	ti, ok := stateOrder[to]
	if !ok {
		return false
	}
	return ti == fi+1
}

type Job struct {
	// Keys
	JobID       string `dynamodbav:"job_id" json:"job_id"`
	Bucket      string `dynamodbav:"bucket" json:"bucket"`
	Key         string `dynamodbav:"object_key" json:"object_key"`
	Fingerprint string `dynamodbav:"fingerprint" json:"fingerprint"`
	EventID     string `dynamodbav:"event_id" json:"event_id"`

	// Processing/Status
	State        JobState `dynamodbav:"state" json:"state"`
	AttemptCount int      `dynamodbav:"attempt_count" json:"attempt_count"`
	LastError    string   `dynamodbav:"last_error" json:"last_error,omitempty"`
	Version      int64    `dynamodbav:"version" json:"version"`

	// Lease
	LeaseOwner     string `dynamodbav:"lease_owner" json:"lease_owner,omitempty"`
	LeaseExpiresAt int64  `dynamodbav:"lease_expires_at" json:"lease_expires_at,omitempty"`

	// Step state, kept so a resumed attempt continues where the last one stopped
	TranscriptionHandle      string      `dynamodbav:"transcription_handle" json:"transcription_handle,omitempty"`
	TranscriptionSubmittedAt int64       `dynamodbav:"transcription_submitted_at" json:"transcription_submitted_at,omitempty"`
	TranscriptionAttempts    int         `dynamodbav:"transcription_attempts" json:"transcription_attempts,omitempty"`
	Transcript               *Transcript `dynamodbav:"transcript,omitempty" json:"transcript,omitempty"`
	QuizPayload              string      `dynamodbav:"quiz_payload" json:"-"`
	OutputKey                string      `dynamodbav:"output_key" json:"output_key,omitempty"`

	// Timestamps (epoch ms)
	CreatedAt int64 `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt int64 `dynamodbav:"updated_at" json:"updated_at"`
}

// LeaseLive reports whether the job is held by a lease that has not expired at nowMs.
func (j Job) LeaseLive(nowMs int64) bool {
	return j.LeaseOwner != "" && j.LeaseExpiresAt > nowMs
}

// Fingerprint picks the content identifier used to tell re-uploads apart.
func Fingerprint(etag, versionID string) string {
	if e := strings.Trim(strings.TrimSpace(etag), "\""); e != "" {
		return e
	}
	return strings.TrimSpace(versionID)
}

// JobID is derived from the source location and content fingerprint so the
// same upload always maps to the same job.
func JobID(bucket, key, fingerprint string) string {
	h := sha256.New()
	h.Write([]byte(bucket))
	h.Write([]byte{0})
	h.Write([]byte(key))
	h.Write([]byte{0})
	h.Write([]byte(fingerprint))
	return hex.EncodeToString(h.Sum(nil))[:32]
}
