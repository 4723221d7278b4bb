package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/truongminh/classboard/internal/handlers"
)

func SetupRoutes(r *chi.Mux, gateway *handlers.Gateway, uploads *handlers.UploadHandler) {
	// File upload route (image refs for posts and the banner)
	r.Post("/api/upload", uploads.Upload)

	// WebSocket endpoint hosting the live board session
	r.Get("/ws/board", gateway.Serve)
}
