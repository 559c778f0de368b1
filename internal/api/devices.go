package api

import (
	"net/http"

	"github.com/nerrad567/pihome/internal/entity"
)

// deviceRequest is the body of device create and update requests.
// Nil fields are left unchanged on update.
type deviceRequest struct {
	Label *string `json:"label"`
	Pin   *string `json:"pin"`
	Value *bool   `json:"value"`
}

// deviceValueRequest is the body of PUT /devices/{id}/value.
type deviceValueRequest struct {
	Value *bool `json:"value"`
}

// handleListDevices returns all devices ordered by id.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.registry.List(r.Context(), entity.KindDevice)
	if err != nil {
		s.writeEntityError(w, err, "devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": views(devices), "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	dev, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		s.writeEntityError(w, err, "device")
		return
	}
	writeJSON(w, http.StatusOK, dev.ClientView())
}

// handleCreateDevice creates a device. The value defaults to off.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	dev := &entity.Device{}
	if req.Label != nil {
		dev.Label = *req.Label
	}
	if req.Pin != nil {
		dev.Pin = *req.Pin
	}
	if req.Value != nil {
		dev.Value = *req.Value
	}

	if err := s.registry.Create(r.Context(), dev); err != nil {
		s.writeEntityError(w, err, "device")
		return
	}
	writeJSON(w, http.StatusCreated, dev.ClientView())
}

// handleUpdateDevice partially updates a device.
//
// Label and pin are replaced through Update; a value goes through
// SetDeviceValue so the change is published like any other.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	existing, err := s.registry.GetDevice(ctx, id)
	if err != nil {
		s.writeEntityError(w, err, "device")
		return
	}

	var req deviceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Label != nil || req.Pin != nil {
		if req.Label != nil {
			existing.Label = *req.Label
		}
		if req.Pin != nil {
			existing.Pin = *req.Pin
		}
		if err := s.registry.Update(ctx, existing); err != nil {
			s.writeEntityError(w, err, "device")
			return
		}
	}

	if req.Value != nil {
		existing, err = s.registry.SetDeviceValue(ctx, id, *req.Value)
		if err != nil {
			s.writeEntityError(w, err, "device")
			return
		}
	}

	writeJSON(w, http.StatusOK, existing.ClientView())
}

// handleDeleteDevice removes a device by ID.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := s.registry.Delete(r.Context(), entity.KindDevice, id); err != nil {
		s.writeEntityError(w, err, "device")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetDeviceValue switches a device on or off.
func (s *Server) handleSetDeviceValue(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req deviceValueRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Value == nil {
		writeBadRequest(w, "value is required")
		return
	}

	dev, err := s.registry.SetDeviceValue(r.Context(), id, *req.Value)
	if err != nil {
		s.writeEntityError(w, err, "device")
		return
	}
	writeJSON(w, http.StatusOK, dev.ClientView())
}
