package httpapi

import (
	"context"
	"time"

	"lecture-quiz/internal/models"
	"lecture-quiz/internal/store"
)

// UploadPublisher hands an upload to the worker fleet.
type UploadPublisher interface {
	PublishUpload(ctx context.Context, ev models.UploadEvent, attempt int) error
}

type App struct {
	Store           store.JobStore
	Uploads         UploadPublisher // publishes to the uploads topic
	AllowedSuffixes []string
	Now             func() time.Time
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}
