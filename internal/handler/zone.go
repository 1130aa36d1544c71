package handler

import (
	"net/http"

	"github.com/dukerupert/agenda/internal/schedule"
	"github.com/dukerupert/agenda/internal/tz"
)

type ZoneHandler struct {
	svc *schedule.Service
}

func NewZoneHandler(svc *schedule.Service) *ZoneHandler {
	return &ZoneHandler{svc: svc}
}

// List returns the selectable zones and the server default.
func (h *ZoneHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"default": h.svc.Zone(),
		"zones":   tz.Zones(),
	})
}
