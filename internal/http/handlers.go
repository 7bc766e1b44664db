package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"lecture-quiz/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type SubmitUploadRequest struct {
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	ETag      string `json:"etag"`
	VersionID string `json:"version_id"`
	Size      int64  `json:"size"`
}

type SubmitUploadResponse struct {
	JobID   string `json:"job_id"`
	EventID string `json:"event_id"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (a *App) listJobsHandler(w http.ResponseWriter, r *http.Request) {
	limit := int32(50)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = int32(n)
	}

	jobs, err := a.Store.List(r.Context(), limit)
	if err != nil {
		log.Println("api: list jobs:", err)
		writeError(w, http.StatusInternalServerError, "failed to load jobs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": jobs})
}

func (a *App) getJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	job, err := a.Store.Get(r.Context(), jobID)
	if err != nil {
		log.Println("api: get job:", err)
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (a *App) submitUploadHandler(w http.ResponseWriter, r *http.Request) {
	var req SubmitUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	ev := models.UploadEvent{
		Bucket:    req.Bucket,
		Key:       req.Key,
		Size:      req.Size,
		ETag:      req.ETag,
		VersionID: req.VersionID,
		EventTime: a.now().UTC(),
		EventID:   uuid.NewString(),
		EventName: "api:SubmitUpload",
	}
	if ev.Bucket == "" || ev.Key == "" {
		writeError(w, http.StatusBadRequest, "bucket and key are required")
		return
	}
	if !ev.HasSuffix(a.AllowedSuffixes) {
		writeError(w, http.StatusBadRequest, "unsupported file type")
		return
	}

	if err := a.Uploads.PublishUpload(r.Context(), ev, 0); err != nil {
		log.Println("api: publish upload:", err)
		writeError(w, http.StatusInternalServerError, "failed to publish upload")
		return
	}

	writeJSON(w, http.StatusAccepted, SubmitUploadResponse{
		JobID:   ev.JobID(),
		EventID: ev.EventID,
	})
}

func (a *App) replayJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	job, err := a.Store.Get(r.Context(), jobID)
	if err != nil {
		log.Println("api: get job:", err)
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	// 1) Reset the record; only Failed jobs can be replayed
	ok, err := a.Store.ResetForReplay(r.Context(), jobID, a.now().UnixMilli())
	if err != nil {
		log.Println("api: reset job:", err)
		writeError(w, http.StatusInternalServerError, "failed to reset job")
		return
	}
	if !ok {
		writeError(w, http.StatusConflict, "job is not in FAILED state")
		return
	}

	// 2) Publish so a worker picks it up
	ev := models.UploadEvent{
		Bucket:    job.Bucket,
		Key:       job.Key,
		ETag:      job.Fingerprint,
		EventTime: a.now().UTC(),
		EventID:   uuid.NewString(),
		EventName: "api:Replay",
	}
	if err := a.Uploads.PublishUpload(r.Context(), ev, 0); err != nil {
		log.Println("api: publish replay:", err)
		writeError(w, http.StatusInternalServerError, "failed to publish replay")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"job_id":   jobID,
		"event_id": ev.EventID,
	})
}
