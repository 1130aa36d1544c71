package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/agenda/internal/appointment"
	"github.com/dukerupert/agenda/internal/model"
	"github.com/dukerupert/agenda/internal/recurrence"
	"github.com/dukerupert/agenda/internal/schedule"
	"github.com/dukerupert/agenda/internal/tz"
)

// OccurrenceHandler serves expanded views of the schedule.
type OccurrenceHandler struct {
	svc    *schedule.Service
	logger *slog.Logger
}

func NewOccurrenceHandler(svc *schedule.Service, logger *slog.Logger) *OccurrenceHandler {
	return &OccurrenceHandler{svc: svc, logger: logger}
}

// parseTimeParam reads an optional date query parameter in zone. ok is
// false only when the parameter is present and unreadable.
func parseTimeParam(r *http.Request, name, zone string) (t time.Time, ok bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, true
	}
	return appointment.ParseDate(v, zone)
}

// List handles GET /api/occurrences?focus=&view=&sort=&zone=.
func (h *OccurrenceHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	zone := h.svc.ResolveZone(q.Get("zone"))
	focus, ok := parseTimeParam(r, "focus", zone)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid focus date")
		return
	}

	window, err := h.svc.Occurrences(r.Context(), schedule.Query{
		Focus: focus,
		View:  model.ViewMode(q.Get("view")),
		Sort:  model.SortMode(q.Get("sort")),
		Zone:  zone,
	})
	if err != nil {
		respondErr(w, h.logger, err, "expand appointments")
		return
	}
	writeJSON(w, http.StatusOK, window)
}

// Agenda handles GET /api/agenda?from=&to=&zone=. Missing bounds default to
// the next thirty days; a date-only to covers that whole day.
func (h *OccurrenceHandler) Agenda(w http.ResponseWriter, r *http.Request) {
	zone := h.svc.ResolveZone(r.URL.Query().Get("zone"))
	defFrom, defTo := h.svc.AgendaRange(zone)

	from, ok := parseTimeParam(r, "from", zone)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid from date")
		return
	}
	to, ok := parseTimeParam(r, "to", zone)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid to date")
		return
	}
	if from.IsZero() {
		from = defFrom
	}
	if to.IsZero() {
		to = defTo
	} else if tz.IsDateOnly(r.URL.Query().Get("to")) {
		to = tz.EndOfDay(to.In(tz.Location(zone)))
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to must not be before from")
		return
	}

	days, err := h.svc.Agenda(r.Context(), from, to, zone)
	if err != nil {
		respondErr(w, h.logger, err, "build agenda")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		From time.Time              `json:"from"`
		To   time.Time              `json:"to"`
		Zone string                 `json:"zone"`
		Days []recurrence.DayBucket `json:"days"`
	}{from.UTC(), to.UTC(), zone, days})
}
