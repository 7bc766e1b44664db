package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"lecture-quiz/internal/models"
)

// UploadMessage asks a worker to process one upload. Attempt counts
// deliveries scheduled through the retry topic.
type UploadMessage struct {
	Event   models.UploadEvent `json:"event"`
	Attempt int                `json:"attempt"`
}

// RetryMessage includes when it should be retried.
type RetryMessage struct {
	Event       models.UploadEvent `json:"event"`
	Attempt     int                `json:"attempt"`
	NextRetryAt int64              `json:"next_retry_at"` // epoch ms
}

var errMissingObject = errors.New("invalid message: missing bucket or key")

func decodeUpload(b []byte) (UploadMessage, error) {
	var um UploadMessage
	if err := json.Unmarshal(b, &um); err != nil {
		return UploadMessage{}, fmt.Errorf("decode upload message: %w", err)
	}
	if um.Event.Bucket == "" || um.Event.Key == "" {
		return UploadMessage{}, errMissingObject
	}
	return um, nil
}

func decodeRetry(b []byte) (RetryMessage, error) {
	var rm RetryMessage
	if err := json.Unmarshal(b, &rm); err != nil {
		return RetryMessage{}, fmt.Errorf("decode retry message: %w", err)
	}
	if rm.Event.Bucket == "" || rm.Event.Key == "" {
		return RetryMessage{}, errMissingObject
	}
	return rm, nil
}

// RetryDelayMs is the wait before redelivery number attempt.
func RetryDelayMs(attempt int) int64 {
	switch attempt {
	case 1:
		return 2000
	case 2:
		return 5000
	default:
		return 10000
	}
}
