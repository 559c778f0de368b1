package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/pihome/internal/audit"
	"github.com/nerrad567/pihome/internal/entity"
)

// handleListAudit returns recorded entity changes, newest first.
//
//	GET /api/v1/audit?kind=Device&entity_id=2&op=value_set&limit=20&offset=0
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "audit log not available")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Op:   entity.ChangeOp(q.Get("op")),
		Kind: entity.Kind(q.Get("kind")),
	}

	switch filter.Op {
	case "", entity.ChangeCreated, entity.ChangeUpdated, entity.ChangeDeleted, entity.ChangeValueSet:
	default:
		writeBadRequest(w, "op must be created, updated, deleted or value_set")
		return
	}
	if filter.Kind != "" && !s.resolver.Kinds().Has(filter.Kind) {
		writeError(w, http.StatusNotFound, ErrCodeUnknownKind, "unknown kind "+strconv.Quote(string(filter.Kind)))
		return
	}

	if raw := q.Get("entity_id"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 1 {
			writeBadRequest(w, "entity_id must be a positive integer")
			return
		}
		filter.EntityID = v
	}
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		filter.Limit = v
	}
	if raw := q.Get("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = v
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit entries", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
