package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/voxhollow/voxqueue-api/internal/api"
	"github.com/voxhollow/voxqueue-api/internal/task"
)

// newRouter configures the application router with all routes and
// middleware.
func newRouter(queue *task.Queue, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	taskHandler := api.NewTaskHandler(queue, logger)
	observerHandler := api.NewObserverHandler(queue, logger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/tasks", taskHandler.SubmitTask)
		r.Get("/tasks", taskHandler.GetHistory)
		r.Get("/tasks/{id}", taskHandler.GetTaskStatus)
		r.Get("/stats", taskHandler.GetStats)
		r.Get("/languages", taskHandler.GetLanguages)
		r.Get("/ws", observerHandler.Serve)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
