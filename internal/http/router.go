package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

func RegisterRoutes(r chi.Router, app *App) {
	r.Get("/healthz", healthHandler)
	r.Get("/jobs", app.listJobsHandler)
	r.Get("/jobs/{job_id}", app.getJobHandler)
	r.Post("/uploads", app.submitUploadHandler)
	r.Post("/jobs/{job_id}/replay", app.replayJobHandler)
}

func NewRouter(app *App, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
	RegisterRoutes(r, app)
	return r
}
