package trigger

import (
	"context"
	"errors"
	"fmt"
	"log"

	"lecture-quiz/internal/models"

	"github.com/aws/aws-lambda-go/events"
)

// ErrRetryLater is returned to the Lambda runtime so the asynchronous
// invocation is retried and the unfinished job resumes.
var ErrRetryLater = errors.New("one or more uploads ran out of time")

type BatchProcessor interface {
	ProcessBatch(ctx context.Context, events []models.UploadEvent) []models.Outcome
}

type Response struct {
	Message  string           `json:"message"`
	Outcomes []models.Outcome `json:"outcomes"`
}

type Handler struct {
	proc BatchProcessor
}

func NewHandler(proc BatchProcessor) *Handler {
	return &Handler{proc: proc}
}

func (h *Handler) Handle(ctx context.Context, ev events.S3Event) (Response, error) {
	uploads := FromS3Event(ev)
	for _, u := range uploads {
		log.Println("handler: received",
			"event=", u.EventName,
			"bucket=", u.Bucket,
			"key=", u.Key,
			"size=", u.Size,
			"event_id=", u.EventID,
		)
	}

	outcomes := h.proc.ProcessBatch(ctx, uploads)
	resp := Response{
		Message:  fmt.Sprintf("Processed %d record(s)", len(ev.Records)),
		Outcomes: outcomes,
	}

	for _, out := range outcomes {
		log.Println("handler: outcome", "job_id=", out.JobID, "kind=", out.Kind, "reason=", out.Reason)
	}
	for _, out := range outcomes {
		if out.Kind == models.OutcomeTimedOut {
			return resp, ErrRetryLater
		}
	}
	return resp, nil
}
