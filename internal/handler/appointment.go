package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/agenda/internal/appointment"
	"github.com/dukerupert/agenda/internal/schedule"
	"github.com/dukerupert/agenda/internal/websocket"
)

type AppointmentHandler struct {
	svc    *schedule.Service
	logger *slog.Logger
	broadcaster
}

func NewAppointmentHandler(svc *schedule.Service, hub *websocket.Hub, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, logger: logger, broadcaster: broadcaster{hub: hub}}
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Appointments(r.Context())
	if err != nil {
		respondErr(w, h.logger, err, "list appointments")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Appointment(r.Context(), r.PathValue("id"))
	if err != nil {
		respondErr(w, h.logger, err, "get appointment")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var raw appointment.Raw
	if !decodeJSON(w, r, &raw) {
		return
	}

	a, created, err := h.svc.Create(r.Context(), raw)
	if err != nil {
		respondErr(w, h.logger, err, "create appointment")
		return
	}

	status, action := http.StatusCreated, websocket.ActionCreated
	if !created {
		status, action = http.StatusOK, websocket.ActionUpdated
	}
	h.broadcast(websocket.NewMessage(websocket.EntityAppointment, action, a.ID, a))

	writeJSON(w, status, a)
}

func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var raw appointment.Raw
	if !decodeJSON(w, r, &raw) {
		return
	}

	a, err := h.svc.Update(r.Context(), id, raw)
	if err != nil {
		respondErr(w, h.logger, err, "update appointment")
		return
	}
	h.broadcast(websocket.NewMessage(websocket.EntityAppointment, websocket.ActionUpdated, id, a))

	writeJSON(w, http.StatusOK, a)
}

func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		respondErr(w, h.logger, err, "delete appointment")
		return
	}
	h.broadcast(websocket.NewMessage(websocket.EntityAppointment, websocket.ActionDeleted, id, nil))

	w.WriteHeader(http.StatusNoContent)
}
