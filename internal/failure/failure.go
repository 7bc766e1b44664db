// Package failure classifies errors from external collaborators into the
// small set of kinds the pipeline knows how to react to.
package failure

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"

	"github.com/aws/smithy-go"
	"github.com/sashabaranov/go-openai"
)

type Kind string

const (
	KindInvalidInput        Kind = "InvalidInput"
	KindTransient           Kind = "TransientProviderError"
	KindPermanent           Kind = "PermanentProviderError"
	KindConcurrencyConflict Kind = "ConcurrencyConflict"
	KindDeadlineExceeded    Kind = "DeadlineExceeded"
)

// Error is a classified failure from one operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Transient(op string, err error) error { return New(KindTransient, op, err) }

func Permanent(op string, err error) error { return New(KindPermanent, op, err) }

// KindOf returns the classification carried by err. Unclassified errors are
// logged and reported as permanent so they cannot cause retry loops.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindDeadlineExceeded
	}
	log.Println("failure: unclassified error treated as permanent:", err)
	return KindPermanent
}

func IsTransient(err error) bool { return KindOf(err) == KindTransient }

var throttlingCodes = map[string]bool{
	"Throttling":                             true,
	"ThrottlingException":                    true,
	"ThrottledException":                     true,
	"TooManyRequestsException":               true,
	"ProvisionedThroughputExceededException": true,
	"RequestLimitExceeded":                   true,
	"LimitExceededException":                 true,
	"SlowDown":                               true,
	"ServiceUnavailable":                     true,
	"ServiceUnavailableException":            true,
	"InternalServerException":                true,
	"InternalFailureException":               true,
	"ModelNotReadyException":                 true,
	"ModelTimeoutException":                  true,
	"RequestTimeout":                         true,
	"RequestTimeoutException":                true,
}

// FromAWS classifies an error returned by an AWS SDK v2 call. parent is the
// invocation context; a deadline on a derived per-call context while parent
// is still alive counts as transient.
func FromAWS(parent context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	if parent != nil && parent.Err() != nil {
		return New(KindDeadlineExceeded, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient(op, err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if throttlingCodes[apiErr.ErrorCode()] || apiErr.ErrorFault() == smithy.FaultServer {
			return Transient(op, err)
		}
		return Permanent(op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient(op, err)
	}
	log.Println("failure: unrecognized AWS error, marking permanent:", op, err)
	return Permanent(op, err)
}

// FromOpenAI classifies an error returned by the OpenAI client.
func FromOpenAI(parent context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if parent != nil && parent.Err() != nil {
		return New(KindDeadlineExceeded, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient(op, err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500 {
			return Transient(op, err)
		}
		return Permanent(op, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500 {
			return Transient(op, err)
		}
		return Permanent(op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient(op, err)
	}
	log.Println("failure: unrecognized OpenAI error, marking permanent:", op, err)
	return Permanent(op, err)
}
