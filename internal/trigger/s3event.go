package trigger

import (
	"log"
	"net/url"

	"lecture-quiz/internal/models"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
)

// FromS3Event converts the records of an S3 notification into upload events.
// Records that are not object-created notifications are passed through and
// rejected later by suffix and key validation.
func FromS3Event(ev events.S3Event) []models.UploadEvent {
	out := make([]models.UploadEvent, 0, len(ev.Records))
	for _, rec := range ev.Records {
		out = append(out, fromRecord(rec))
	}
	return out
}

func fromRecord(rec events.S3EventRecord) models.UploadEvent {
	obj := rec.S3.Object

	key := obj.URLDecodedKey
	if key == "" {
		decoded, err := url.QueryUnescape(obj.Key)
		if err != nil {
			log.Println("trigger: key is not url-encoded, using as is", "key=", obj.Key, "err=", err)
			decoded = obj.Key
		}
		key = decoded
	}

	eventID := rec.ResponseElements["x-amz-request-id"]
	if eventID != "" && obj.Sequencer != "" {
		eventID += ":" + obj.Sequencer
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	return models.UploadEvent{
		Bucket:    rec.S3.Bucket.Name,
		Key:       key,
		Size:      obj.Size,
		ETag:      obj.ETag,
		VersionID: obj.VersionID,
		EventTime: rec.EventTime,
		EventID:   eventID,
		EventName: rec.EventName,
	}
}
