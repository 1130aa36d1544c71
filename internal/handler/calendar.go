package handler

import (
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/dukerupert/agenda/internal/model"
	"github.com/dukerupert/agenda/internal/schedule"
	"github.com/dukerupert/agenda/internal/websocket"
)

var hexColorRegexp = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

const defaultCalendarColor = "#2563eb"

type CalendarHandler struct {
	svc    *schedule.Service
	logger *slog.Logger
	broadcaster
}

func NewCalendarHandler(svc *schedule.Service, hub *websocket.Hub, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{svc: svc, logger: logger, broadcaster: broadcaster{hub: hub}}
}

func (h *CalendarHandler) List(w http.ResponseWriter, r *http.Request) {
	calendars, err := h.svc.Calendars(r.Context())
	if err != nil {
		respondErr(w, h.logger, err, "list calendars")
		return
	}
	writeJSON(w, http.StatusOK, calendars)
}

// Put creates or renames the calendar named by the path id.
func (h *CalendarHandler) Put(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Color == "" {
		req.Color = defaultCalendarColor
	}
	if !hexColorRegexp.MatchString(req.Color) {
		writeError(w, http.StatusBadRequest, "color must be a hex color (e.g. #FF0000)")
		return
	}

	c := model.Calendar{ID: id, Name: req.Name, Color: req.Color}
	if err := h.svc.PutCalendar(r.Context(), c); err != nil {
		respondErr(w, h.logger, err, "save calendar")
		return
	}
	h.broadcast(websocket.NewMessage(websocket.EntityCalendar, websocket.ActionUpdated, id, c))

	writeJSON(w, http.StatusOK, c)
}
