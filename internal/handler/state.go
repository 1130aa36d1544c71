package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/agenda/internal/schedule"
	"github.com/dukerupert/agenda/internal/websocket"
)

// StateHandler loads and replaces the whole schedule.
type StateHandler struct {
	svc    *schedule.Service
	logger *slog.Logger
	broadcaster
}

func NewStateHandler(svc *schedule.Service, hub *websocket.Hub, logger *slog.Logger) *StateHandler {
	return &StateHandler{svc: svc, logger: logger, broadcaster: broadcaster{hub: hub}}
}

func (h *StateHandler) Get(w http.ResponseWriter, r *http.Request) {
	state, err := h.svc.State(r.Context())
	if err != nil {
		respondErr(w, h.logger, err, "load state")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// Put replaces the schedule with the body. The body is read with the same
// rules as a JSON import, and every appointment must normalize.
func (h *StateHandler) Put(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	state, err := h.svc.ParseState(string(body))
	if err != nil {
		respondErr(w, h.logger, err, "parse state")
		return
	}

	saved, err := h.svc.Replace(r.Context(), state)
	if err != nil {
		respondErr(w, h.logger, err, "save state")
		return
	}
	h.broadcast(websocket.NewMessage(websocket.EntityState, websocket.ActionReplaced, "", nil))

	writeJSON(w, http.StatusOK, saved)
}
