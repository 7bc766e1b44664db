package trigger

import (
	"context"
	"errors"
	"testing"
	"time"

	"lecture-quiz/internal/models"

	"github.com/aws/aws-lambda-go/events"
)

func record(key string) events.S3EventRecord {
	return events.S3EventRecord{
		EventName:        "ObjectCreated:Put",
		EventTime:        time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		ResponseElements: map[string]string{"x-amz-request-id": "REQ123"},
		S3: events.S3Entity{
			Bucket: events.S3Bucket{Name: "lectures"},
			Object: events.S3Object{
				Key:       key,
				Size:      1024,
				ETag:      "d41d8cd98f00b204e9800998ecf8427e",
				VersionID: "v1",
				Sequencer: "0055AED6DCD90281E5",
			},
		},
	}
}

func TestFromS3EventDecodesKeys(t *testing.T) {
	got := FromS3Event(events.S3Event{Records: []events.S3EventRecord{
		record("week+1/intro%28v2%29.mp4"),
	}})
	if len(got) != 1 {
		t.Fatalf("events = %d", len(got))
	}
	ev := got[0]
	if ev.Key != "week 1/intro(v2).mp4" {
		t.Fatalf("key = %q", ev.Key)
	}
	if ev.Bucket != "lectures" || ev.Size != 1024 || ev.VersionID != "v1" || ev.EventName != "ObjectCreated:Put" {
		t.Fatalf("event = %+v", ev)
	}
	if ev.EventID != "REQ123:0055AED6DCD90281E5" {
		t.Fatalf("event id = %q", ev.EventID)
	}
}

func TestFromS3EventPrefersDecodedKey(t *testing.T) {
	rec := record("raw%20key.mp4")
	rec.S3.Object.URLDecodedKey = "already decoded.mp4"
	if got := FromS3Event(events.S3Event{Records: []events.S3EventRecord{rec}}); got[0].Key != "already decoded.mp4" {
		t.Fatalf("key = %q", got[0].Key)
	}
}

func TestFromS3EventSynthesizesEventID(t *testing.T) {
	rec := record("a.mp4")
	rec.ResponseElements = nil
	got := FromS3Event(events.S3Event{Records: []events.S3EventRecord{rec, rec}})
	if got[0].EventID == "" || got[0].EventID == got[1].EventID {
		t.Fatalf("event ids = %q, %q", got[0].EventID, got[1].EventID)
	}
}

type fakeProcessor struct {
	got      []models.UploadEvent
	outcomes []models.Outcome
}

func (f *fakeProcessor) ProcessBatch(_ context.Context, evs []models.UploadEvent) []models.Outcome {
	f.got = evs
	return f.outcomes
}

func TestHandlerResponse(t *testing.T) {
	proc := &fakeProcessor{outcomes: []models.Outcome{
		{Kind: models.OutcomeComplete},
		{Kind: models.OutcomeSkipped, Reason: models.ReasonInvalidInput},
	}}
	h := NewHandler(proc)

	resp, err := h.Handle(context.Background(), events.S3Event{Records: []events.S3EventRecord{record("a.mp4"), record("b.txt")}})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if resp.Message != "Processed 2 record(s)" {
		t.Fatalf("message = %q", resp.Message)
	}
	if len(resp.Outcomes) != 2 || len(proc.got) != 2 {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestHandlerAsksForRetryOnTimeout(t *testing.T) {
	h := NewHandler(&fakeProcessor{outcomes: []models.Outcome{
		{Kind: models.OutcomeComplete},
		{Kind: models.OutcomeTimedOut},
	}})
	_, err := h.Handle(context.Background(), events.S3Event{Records: []events.S3EventRecord{record("a.mp4"), record("b.mp4")}})
	if !errors.Is(err, ErrRetryLater) {
		t.Fatalf("error = %v, want ErrRetryLater", err)
	}
}

func TestHandlerDoesNotRetryFailures(t *testing.T) {
	h := NewHandler(&fakeProcessor{outcomes: []models.Outcome{
		{Kind: models.OutcomeFailed, Reason: models.ReasonWriteFailed},
		{Kind: models.OutcomeInProgress},
	}})
	if _, err := h.Handle(context.Background(), events.S3Event{Records: []events.S3EventRecord{record("a.mp4"), record("b.mp4")}}); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
}
