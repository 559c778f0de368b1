package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/pihome/internal/entity"
)

// sensorReadTimeout bounds GET /sensors/{id}/value on top of the GPIO
// read timeout.
const sensorReadTimeout = 5 * time.Second

// sensorRequest is the body of sensor create and update requests.
// Nil fields are left unchanged on update.
type sensorRequest struct {
	Label *string `json:"label"`
	Pin   *string `json:"pin"`
}

// parseID reads the {id} URL parameter. On failure it writes a 400 and
// returns false.
func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		writeBadRequest(w, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// decodeBody decodes the JSON request body into v. On failure it writes
// a 400 and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// views projects a list of entities for clients.
func views(entities []entity.Entity) []*entity.View {
	out := make([]*entity.View, 0, len(entities))
	for _, e := range entities {
		out = append(out, entity.ClientView(e))
	}
	return out
}

// handleListSensors returns all sensors ordered by id.
func (s *Server) handleListSensors(w http.ResponseWriter, r *http.Request) {
	sensors, err := s.registry.List(r.Context(), entity.KindSensor)
	if err != nil {
		s.writeEntityError(w, err, "sensors")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sensors": views(sensors), "count": len(sensors)})
}

// handleGetSensor returns a single sensor. The live value is not read.
func (s *Server) handleGetSensor(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	sensor, err := s.registry.GetSensor(r.Context(), id)
	if err != nil {
		s.writeEntityError(w, err, "sensor")
		return
	}
	writeJSON(w, http.StatusOK, sensor.ClientView())
}

// handleCreateSensor creates a sensor.
func (s *Server) handleCreateSensor(w http.ResponseWriter, r *http.Request) {
	var req sensorRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sensor := &entity.Sensor{}
	if req.Label != nil {
		sensor.Label = *req.Label
	}
	if req.Pin != nil {
		sensor.Pin = *req.Pin
	}

	if err := s.registry.Create(r.Context(), sensor); err != nil {
		s.writeEntityError(w, err, "sensor")
		return
	}
	writeJSON(w, http.StatusCreated, sensor.ClientView())
}

// handleUpdateSensor partially updates a sensor.
func (s *Server) handleUpdateSensor(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	existing, err := s.registry.GetSensor(r.Context(), id)
	if err != nil {
		s.writeEntityError(w, err, "sensor")
		return
	}

	var req sensorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Label != nil {
		existing.Label = *req.Label
	}
	if req.Pin != nil {
		existing.Pin = *req.Pin
	}

	if err := s.registry.Update(r.Context(), existing); err != nil {
		s.writeEntityError(w, err, "sensor")
		return
	}
	writeJSON(w, http.StatusOK, existing.ClientView())
}

// handleDeleteSensor removes a sensor.
func (s *Server) handleDeleteSensor(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := s.registry.Delete(r.Context(), entity.KindSensor, id); err != nil {
		s.writeEntityError(w, err, "sensor")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReadSensor performs a live GPIO read through the key resolver,
// so the read is logged, broadcast and recorded like any other.
//
// A hardware fault is a 502; a timed-out read is a 503.
func (s *Server) handleReadSensor(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	sensor, err := s.registry.GetSensor(ctx, id)
	if err != nil {
		s.writeEntityError(w, err, "sensor")
		return
	}

	readCtx, cancel := context.WithTimeout(ctx, sensorReadTimeout)
	defer cancel()

	key := s.resolver.Kinds().KeyFor(sensor, "value")
	value, err := s.resolver.Resolve(readCtx, string(key), nil)
	if err != nil {
		s.writeEntityError(w, err, "sensor value")
		return
	}
	if value == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "sensor value unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":    sensor.ID,
		"key":   string(key),
		"value": value,
	})
}
