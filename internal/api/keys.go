package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/pihome/internal/entity"
)

// keyResponse is the body of GET /keys/*.
type keyResponse struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// handleResolveKey resolves the key in the rest of the path.
//
//	GET /api/v1/keys/Sensor/3/value
//	GET /api/v1/keys/Device/2?default=off
//
// A miss yields the default query parameter (null when absent). An unknown
// kind is a 404; a hardware fault is a 502. Entities are returned as their
// client projection.
func (s *Server) handleResolveKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		writeBadRequest(w, "key is required")
		return
	}

	var def any
	if r.URL.Query().Has("default") {
		def = r.URL.Query().Get("default")
	}

	value, err := s.resolver.Resolve(r.Context(), key, def)
	if err != nil {
		s.writeEntityError(w, err, "key")
		return
	}

	if e, ok := value.(entity.Entity); ok {
		value = entity.ClientView(e)
	}
	writeJSON(w, http.StatusOK, keyResponse{Key: key, Value: value})
}
