package pipeline

import (
	"errors"
	"fmt"

	"lecture-quiz/internal/failure"
	"lecture-quiz/internal/models"
)

// StepError is a failure of one pipeline step, tagged with the reason
// reported to the trigger.
type StepError struct {
	Stage  models.JobState
	Reason string
	Err    error
}

func (e *StepError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Reason, e.Err)
}

func (e *StepError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func stepFailed(stage models.JobState, reason string, err error) error {
	return &StepError{Stage: stage, Reason: reason, Err: err}
}

var (
	errBudget   = errors.New("invocation budget exhausted")
	errLostRace = errors.New("job changed underneath this invocation")
)

func deadlineErr(op string, err error) error {
	if err == nil {
		err = errBudget
	}
	return failure.New(failure.KindDeadlineExceeded, op, err)
}

func conflictErr(op string) error {
	return failure.New(failure.KindConcurrencyConflict, op, errLostRace)
}
