package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/agenda/internal/interchange"
	"github.com/dukerupert/agenda/internal/schedule"
	"github.com/dukerupert/agenda/internal/websocket"
)

// ExchangeHandler downloads and uploads interchange files.
type ExchangeHandler struct {
	svc    *schedule.Service
	logger *slog.Logger
	broadcaster
}

func NewExchangeHandler(svc *schedule.Service, hub *websocket.Hub, logger *slog.Logger) *ExchangeHandler {
	return &ExchangeHandler{svc: svc, logger: logger, broadcaster: broadcaster{hub: hub}}
}

// Export handles GET /api/export?format=&target=. An empty or "auto"
// format picks the one target imports best.
func (h *ExchangeHandler) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		out interchange.Export
		err error
	)
	switch name := strings.TrimSpace(q.Get("format")); name {
	case "", "auto":
		out, err = h.svc.ExportFor(r.Context(), q.Get("target"))
	default:
		format, perr := interchange.ParseFormat(name)
		if perr != nil {
			writeError(w, http.StatusBadRequest, perr.Error())
			return
		}
		out, err = h.svc.Export(r.Context(), format)
	}
	if err != nil {
		respondErr(w, h.logger, err, "export schedule")
		return
	}

	w.Header().Set("Content-Type", out.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, out.Body)
}

// Import handles POST /api/import?filename=&mode=merge|replace. The body is
// the raw file content.
func (h *ExchangeHandler) Import(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var replace bool
	switch q.Get("mode") {
	case "", "merge":
	case "replace":
		replace = true
	default:
		writeError(w, http.StatusBadRequest, "mode must be merge or replace")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	result, err := h.svc.Import(r.Context(), q.Get("filename"), string(body), replace)
	if err != nil {
		respondErr(w, h.logger, err, "import schedule")
		return
	}
	if replace || result.Imported > 0 {
		h.broadcast(websocket.NewMessage(websocket.EntityState, websocket.ActionReplaced, "", nil))
	}
	h.logger.Info("imported schedule",
		"format", result.Format,
		"imported", result.Imported,
		"skipped", len(result.Skipped),
		"rejected", len(result.Rejected),
		"replace", replace,
	)

	writeJSON(w, http.StatusOK, result)
}
