package models

import (
	"path"
	"strings"
	"time"
)

// UploadEvent is one object-created notification from the trigger source.
type UploadEvent struct {
	Bucket    string    `json:"bucket"`
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	ETag      string    `json:"etag,omitempty"`
	VersionID string    `json:"version_id,omitempty"`
	EventTime time.Time `json:"event_time"`
	EventID   string    `json:"event_id"`
	EventName string    `json:"event_name,omitempty"`
}

func (e UploadEvent) Fingerprint() string {
	return Fingerprint(e.ETag, e.VersionID)
}

func (e UploadEvent) JobID() string {
	return JobID(e.Bucket, e.Key, e.Fingerprint())
}

// Location renders the event source as an s3:// URI.
func (e UploadEvent) Location() string {
	return "s3://" + e.Bucket + "/" + e.Key
}

// HasSuffix reports whether the object key ends in one of the allowed
// suffixes, compared case-insensitively.
func (e UploadEvent) HasSuffix(allowed []string) bool {
	ext := strings.ToLower(path.Ext(e.Key))
	if ext == "" {
		return false
	}
	for _, s := range allowed {
		if strings.ToLower(strings.TrimSpace(s)) == ext {
			return true
		}
	}
	return false
}
