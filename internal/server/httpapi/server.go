// Package httpapi is the HTTP surface of backupd: one opaque blob per name,
// read and replaced whole.
package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/daybook/internal/logging"
	"github.com/dmitrijs2005/daybook/internal/server/blobs"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultMaxBlobBytes caps PUT bodies unless configured otherwise.
const DefaultMaxBlobBytes = 64 << 20

// Server holds dependencies for HTTP handlers.
type Server struct {
	Blobs        blobs.Repository
	Secret       []byte
	Owner        string
	MaxBlobBytes int64
	Log          logging.Logger
}

// Routes creates the router. /ping is public; blob routes need a token.
func (s *Server) Routes() http.Handler {
	if s.Log == nil {
		s.Log = logging.Nop()
	}
	if s.MaxBlobBytes <= 0 {
		s.MaxBlobBytes = DefaultMaxBlobBytes
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.Log))
	r.Use(middleware.Recoverer)

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	r.Group(func(r chi.Router) {
		r.Use(requireToken(s.Secret, s.Log))

		r.Head("/v1/blobs/{name}", s.statBlob)
		r.Get("/v1/blobs/{name}", s.getBlob)
		r.Put("/v1/blobs/{name}", s.putBlob)
	})

	return r
}
