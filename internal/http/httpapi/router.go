package httpapi

import (
	stdhttp "net/http"

	"effectlab/internal/http/handlers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *handlers.App) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Logger)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/images", app.UploadImage)
		r.Get("/images/{image_id}", app.GetImage)

		r.Get("/effects", app.ListEffects)

		r.Post("/jobs", app.SubmitJob)
		r.Get("/jobs/{job_id}", app.JobStatus)
	})

	return r
}
