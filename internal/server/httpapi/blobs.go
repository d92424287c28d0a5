package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/server/blobs"
	"github.com/go-chi/chi/v5"
)

func setMetaHeaders(w http.ResponseWriter, m blobs.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.FormatInt(m.Size, 10))
	w.Header().Set("Last-Modified", m.UpdatedAt.UTC().Format(http.TimeFormat))
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, common.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	s.Log.Error(r.Context(), "blob request failed", "path", r.URL.Path, "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func (s *Server) statBlob(w http.ResponseWriter, r *http.Request) {
	m, err := s.Blobs.Stat(r.Context(), s.Owner, chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	setMetaHeaders(w, *m)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) getBlob(w http.ResponseWriter, r *http.Request) {
	b, err := s.Blobs.Get(r.Context(), s.Owner, chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	setMetaHeaders(w, b.Meta)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b.Content)
}

// putBlob replaces the whole blob with the request body.
func (s *Server) putBlob(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.MaxBlobBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "blob too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		http.Error(w, "empty blob", http.StatusBadRequest)
		return
	}

	name := chi.URLParam(r, "name")
	m, err := s.Blobs.Put(r.Context(), s.Owner, name, DeviceID(r.Context()), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.Log.Info(r.Context(), "blob replaced", "name", name, "size", m.Size, "device", m.UpdatedBy)
	w.WriteHeader(http.StatusNoContent)
}
