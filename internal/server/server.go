package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dukerupert/agenda/internal/backup"
	"github.com/dukerupert/agenda/internal/config"
	"github.com/dukerupert/agenda/internal/handler"
	"github.com/dukerupert/agenda/internal/middleware"
	"github.com/dukerupert/agenda/internal/schedule"
	"github.com/dukerupert/agenda/internal/scheduler"
	"github.com/dukerupert/agenda/internal/store"
	"github.com/dukerupert/agenda/internal/tz"
	ws "github.com/dukerupert/agenda/internal/websocket"
)

const (
	// Writes that replace the schedule or touch the disk are limited per
	// client address.
	writeLimit      = 10
	writeWindow     = time.Minute
	cleanupInterval = 5 * time.Minute
)

type Server struct {
	hub           *ws.Hub
	service       *schedule.Service
	appointmentH  *handler.AppointmentHandler
	stateH        *handler.StateHandler
	occurrenceH   *handler.OccurrenceHandler
	calendarH     *handler.CalendarHandler
	exchangeH     *handler.ExchangeHandler
	zoneH         *handler.ZoneHandler
	snapshotH     *handler.SnapshotHandler
	rateLimiter   *middleware.RateLimiter
	backupManager *backup.Manager
	scheduler     *scheduler.Scheduler
	logger        *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(db *sql.DB, cfg *config.Config, clock tz.Clock, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"), cfg.AllowedOrigins...)

	stateStore := store.NewStateStore(db)
	svc := schedule.New(stateStore, schedule.Options{
		Clock:       clock,
		Zone:        cfg.Timezone,
		DefaultView: cfg.DefaultView,
		DefaultSort: cfg.DefaultSort,
	})

	backupMgr := backup.NewManager(backup.Config{
		Dir:        cfg.Snapshots.Dir,
		Passphrase: cfg.Snapshots.Passphrase,
		Keep:       cfg.Snapshots.Keep,
	}, svc, store.NewSnapshotStore(db), func(s backup.Status) {
		hub.Broadcast(ws.Message{
			Type:   "snapshot_status",
			Entity: ws.EntitySnapshot,
			Action: string(s.State),
			Extra: map[string]any{
				"in_progress": s.InProgress,
				"error":       s.Error,
			},
		})
	}, logger.With("component", "backup"))

	var snapshotter scheduler.Snapshotter
	if backupMgr.Enabled() {
		snapshotter = backupMgr
	}
	sched := scheduler.New(scheduler.Config{
		ReminderSpec: cfg.Reminders.Cron,
		SnapshotSpec: cfg.Snapshots.Cron,
		Location:     tz.Location(cfg.Timezone),
	}, stateStore, store.NewReminderStore(db), snapshotter, func(r scheduler.Reminder) {
		hub.Broadcast(ws.NewMessage(ws.EntityReminder, ws.ActionDue, r.Occurrence.SourceID, r))
	}, clock, logger.With("component", "scheduler"))

	return &Server{
		hub:           hub,
		service:       svc,
		appointmentH:  handler.NewAppointmentHandler(svc, hub, logger.With("component", "appointment")),
		stateH:        handler.NewStateHandler(svc, hub, logger.With("component", "state")),
		occurrenceH:   handler.NewOccurrenceHandler(svc, logger.With("component", "occurrence")),
		calendarH:     handler.NewCalendarHandler(svc, hub, logger.With("component", "calendar")),
		exchangeH:     handler.NewExchangeHandler(svc, hub, logger.With("component", "exchange")),
		zoneH:         handler.NewZoneHandler(svc),
		snapshotH:     handler.NewSnapshotHandler(backupMgr, hub, logger.With("component", "snapshot")),
		rateLimiter:   middleware.NewRateLimiter(),
		backupManager: backupMgr,
		scheduler:     sched,
		logger:        logger,
	}
}

// Hub returns the change-feed hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// Service returns the schedule service.
func (s *Server) Service() *schedule.Service {
	return s.service
}

// BackupManager returns the snapshot manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Start starts the scheduled jobs and the rate limiter cleanup loop.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}
	if err := s.scheduler.Start(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.rateLimiter.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
	s.cancel, s.done = cancel, done
	return nil
}

// Stop disconnects change-feed subscribers and stops the scheduled jobs,
// waiting for running ones to finish.
func (s *Server) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	s.hub.Close()
	s.scheduler.Stop()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	mux.HandleFunc("GET /api/state", s.stateH.Get)
	mux.HandleFunc("PUT /api/state", s.rateLimited(s.stateH.Put))

	mux.HandleFunc("GET /api/appointments", s.appointmentH.List)
	mux.HandleFunc("POST /api/appointments", s.appointmentH.Create)
	mux.HandleFunc("GET /api/appointments/{id}", s.appointmentH.Get)
	mux.HandleFunc("PUT /api/appointments/{id}", s.appointmentH.Update)
	mux.HandleFunc("DELETE /api/appointments/{id}", s.appointmentH.Delete)

	mux.HandleFunc("GET /api/occurrences", s.occurrenceH.List)
	mux.HandleFunc("GET /api/agenda", s.occurrenceH.Agenda)

	mux.HandleFunc("GET /api/calendars", s.calendarH.List)
	mux.HandleFunc("PUT /api/calendars/{id}", s.calendarH.Put)

	mux.HandleFunc("GET /api/export", s.exchangeH.Export)
	mux.HandleFunc("POST /api/import", s.rateLimited(s.exchangeH.Import))

	mux.HandleFunc("GET /api/zones", s.zoneH.List)

	mux.HandleFunc("GET /api/snapshots", s.snapshotH.List)
	mux.HandleFunc("POST /api/snapshots", s.rateLimited(s.snapshotH.Create))
	mux.HandleFunc("POST /api/snapshots/{id}/restore", s.rateLimited(s.snapshotH.Restore))

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"clients":   s.hub.ClientCount(),
		"snapshots": s.backupManager.Status().State,
	})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, writeLimit, writeWindow)
	return rl(h).ServeHTTP
}
