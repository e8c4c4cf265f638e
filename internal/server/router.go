package server

import (
	"net/http"
	"time"

	httpapi "github.com/fedutinova/bikeshare/internal/transport/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RequestTimeout bounds every route except the bulk data load.
const RequestTimeout = 60 * time.Second

func NewRouter(h *httpapi.Handlers) http.Handler {
	r := chi.NewRouter()

	// CORS middleware - must be first
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(RequestTimeout))
		h.Routes(r)
	})
	r.Group(h.BulkRoutes)

	return r
}
