// Package scheduler runs the periodic jobs: reminder checks and encrypted
// snapshots.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukerupert/agenda/internal/model"
	"github.com/dukerupert/agenda/internal/recurrence"
	"github.com/dukerupert/agenda/internal/store"
	"github.com/dukerupert/agenda/internal/tz"
)

const (
	// Occurrences that started less than grace ago still get their reminder,
	// so a slow or skipped tick does not lose it.
	grace = 2 * time.Minute
	// Delivered-reminder records older than this are pruned.
	retention = 7 * 24 * time.Hour
)

// Reminder is one due reminder for one occurrence.
type Reminder struct {
	Occurrence model.Occurrence `json:"occurrence"`
	RemindAt   time.Time        `json:"remindAt"`
}

// Snapshotter takes a scheduled snapshot.
type Snapshotter interface {
	Scheduled(ctx context.Context)
}

type Config struct {
	ReminderSpec string
	SnapshotSpec string
	Location     *time.Location
}

// Scheduler owns the cron runner and the reminder check.
type Scheduler struct {
	mu        sync.Mutex
	cfg       Config
	states    *store.StateStore
	reminders *store.ReminderStore
	snapshots Snapshotter
	notify    func(Reminder)
	clock     tz.Clock
	logger    *slog.Logger

	cron   *cron.Cron
	cancel context.CancelFunc
}

// New creates a scheduler. snapshots may be nil when snapshots are disabled.
func New(cfg Config, states *store.StateStore, reminders *store.ReminderStore, snapshots Snapshotter, notify func(Reminder), clock tz.Clock, logger *slog.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if clock == nil {
		clock = tz.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:       cfg,
		states:    states,
		reminders: reminders,
		snapshots: snapshots,
		notify:    notify,
		clock:     clock,
		logger:    logger,
	}
}

// Start registers the jobs and starts the cron runner. Jobs run until Stop
// is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithLocation(s.cfg.Location))

	if s.cfg.ReminderSpec != "" {
		if _, err := c.AddFunc(s.cfg.ReminderSpec, func() { s.tick(ctx) }); err != nil {
			cancel()
			return fmt.Errorf("reminder schedule %q: %w", s.cfg.ReminderSpec, err)
		}
	}
	if s.snapshots != nil && s.cfg.SnapshotSpec != "" {
		if _, err := c.AddFunc(s.cfg.SnapshotSpec, func() { s.snapshots.Scheduled(ctx) }); err != nil {
			cancel()
			return fmt.Errorf("snapshot schedule %q: %w", s.cfg.SnapshotSpec, err)
		}
	}

	c.Start()
	s.cron = c
	s.cancel = cancel
	s.logger.Info("scheduler started", "reminders", s.cfg.ReminderSpec, "snapshots", s.cfg.SnapshotSpec, "jobs", len(c.Entries()))
	return nil
}

// Stop stops the cron runner and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.clock.Now()
	due, err := s.CheckReminders(ctx, now)
	if err != nil {
		s.logger.Error("check reminders", "error", err)
		return
	}
	for _, r := range due {
		s.logger.Debug("reminder due", "appointment", r.Occurrence.SourceID, "at", r.Occurrence.OccurrenceDate)
		if s.notify != nil {
			s.notify(r)
		}
	}
	if _, err := s.reminders.DeleteOlderThan(ctx, now.Add(-retention)); err != nil {
		s.logger.Warn("prune reminders", "error", err)
	}
}

// CheckReminders returns the reminders due at now that were not delivered
// before, and records them as delivered. A reminder is due once now has
// reached the occurrence minus its lead time, until grace after the
// occurrence starts.
func (s *Scheduler) CheckReminders(ctx context.Context, now time.Time) ([]Reminder, error) {
	appointments, err := s.states.ListWithReminders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reminder appointments: %w", err)
	}
	if len(appointments) == 0 {
		return nil, nil
	}

	maxLead := 0
	for _, a := range appointments {
		maxLead = max(maxLead, *a.ReminderMinutes)
	}
	occurrences := recurrence.Expand(appointments, now.Add(-grace), now.Add(time.Duration(maxLead)*time.Minute))

	var due []Reminder
	for _, occ := range occurrences {
		if occ.ReminderMinutes == nil {
			continue
		}
		remindAt := occ.OccurrenceDate.Add(-time.Duration(*occ.ReminderMinutes) * time.Minute)
		if remindAt.After(now) || occ.OccurrenceDate.Before(now.Add(-grace)) {
			continue
		}
		fresh, err := s.reminders.MarkSent(ctx, occ.SourceID, occ.OccurrenceDate)
		if err != nil {
			return due, err
		}
		if fresh {
			due = append(due, Reminder{Occurrence: occ, RemindAt: remindAt})
		}
	}
	slices.SortFunc(due, func(a, b Reminder) int {
		return a.Occurrence.OccurrenceDate.Compare(b.Occurrence.OccurrenceDate)
	})
	return due, nil
}
