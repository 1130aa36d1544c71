// Package backup writes encrypted snapshots of the schedule to local disk
// and restores them.
package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dukerupert/agenda/internal/interchange"
	"github.com/dukerupert/agenda/internal/model"
	"github.com/dukerupert/agenda/internal/store"
)

const (
	defaultKeep = 14
	fileSuffix  = ".json.enc"
)

var (
	ErrDisabled = errors.New("snapshots not configured")
	ErrNotFound = errors.New("snapshot not found")
)

// Config holds snapshot configuration. Snapshots are disabled unless both
// Dir and Passphrase are set.
type Config struct {
	Dir        string
	Passphrase string
	// Keep is how many snapshots survive cleanup.
	Keep int
}

func (c Config) enabled() bool {
	return c.Dir != "" && c.Passphrase != ""
}

// State represents the snapshot manager state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current snapshot manager status.
type Status struct {
	State        State      `json:"state"`
	LastSnapshot *time.Time `json:"last_snapshot,omitempty"`
	Error        string     `json:"error,omitempty"`
	InProgress   bool       `json:"in_progress"`
}

// StatusCallback is called whenever the snapshot state changes.
type StatusCallback func(Status)

// Schedule is what a snapshot captures and a restore replaces.
type Schedule interface {
	State(ctx context.Context) (model.ScheduleState, error)
	Replace(ctx context.Context, state model.ScheduleState) (model.ScheduleState, error)
}

// Manager writes and restores encrypted snapshots of the stored schedule.
type Manager struct {
	mu       sync.RWMutex
	run      sync.Mutex
	cfg      Config
	status   Status
	callback StatusCallback

	schedule  Schedule
	snapshots *store.SnapshotStore
	logger    *slog.Logger
}

// NewManager creates a new snapshot manager.
func NewManager(cfg Config, schedule Schedule, snapshots *store.SnapshotStore, callback StatusCallback, logger *slog.Logger) *Manager {
	if cfg.Keep <= 0 {
		cfg.Keep = defaultKeep
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		cfg:       cfg,
		schedule:  schedule,
		snapshots: snapshots,
		callback:  callback,
		logger:    logger,
		status:    Status{State: StateDisabled},
	}
	if cfg.enabled() {
		m.status.State = StateIdle
	}
	return m
}

// Enabled reports whether snapshots are configured.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.enabled()
}

// Status returns the current snapshot status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	if s.LastSnapshot == nil {
		s.LastSnapshot = m.status.LastSnapshot
	}
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

// Scheduled is the cron entry point: it snapshots and then prunes, logging
// failures instead of returning them.
func (m *Manager) Scheduled(ctx context.Context) {
	if !m.Enabled() {
		return
	}
	id, err := m.RunNow(ctx)
	if err != nil {
		m.logger.Error("scheduled snapshot failed", "error", err)
		return
	}
	m.logger.Info("snapshot written", "id", id)
	if err := m.Cleanup(ctx); err != nil {
		m.logger.Error("snapshot cleanup failed", "error", err)
	}
}

// RunNow snapshots the stored schedule immediately and returns the record ID.
func (m *Manager) RunNow(ctx context.Context) (int64, error) {
	m.mu.RLock()
	cfg := m.cfg
	m.mu.RUnlock()
	if !cfg.enabled() {
		return 0, ErrDisabled
	}

	m.run.Lock()
	defer m.run.Unlock()

	m.setStatus(Status{State: StateRunning, InProgress: true})

	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return 0, fmt.Errorf("create snapshot dir: %w", err)
	}

	filename := fmt.Sprintf("snapshot-%s%s", time.Now().UTC().Format("2006-01-02T150405.000Z"), fileSuffix)
	path := filepath.Join(cfg.Dir, filename)

	record, err := m.snapshots.Create(ctx, filename, path)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return 0, fmt.Errorf("create snapshot record: %w", err)
	}

	fail := func(err error) (int64, error) {
		if uerr := m.snapshots.UpdateStatus(ctx, record.ID, model.SnapshotStatusFailed, err.Error()); uerr != nil {
			m.logger.Error("update snapshot status", "id", record.ID, "error", uerr)
		}
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return 0, err
	}

	if err := m.snapshots.UpdateStatus(ctx, record.ID, model.SnapshotStatusWriting, ""); err != nil {
		return fail(err)
	}

	state, err := m.schedule.State(ctx)
	if err != nil {
		return fail(fmt.Errorf("load state: %w", err))
	}

	size, err := WriteSnapshot(path, state, cfg.Passphrase)
	if err != nil {
		return fail(err)
	}
	if err := m.snapshots.UpdateCompleted(ctx, record.ID, size); err != nil {
		return fail(err)
	}

	now := time.Now().UTC()
	m.setStatus(Status{State: StateIdle, LastSnapshot: &now})
	return record.ID, nil
}

// Restore decrypts snapshot id, replaces the stored schedule with it and
// returns the restored state.
func (m *Manager) Restore(ctx context.Context, id int64) (*model.ScheduleState, error) {
	m.mu.RLock()
	cfg := m.cfg
	m.mu.RUnlock()
	if !cfg.enabled() {
		return nil, ErrDisabled
	}

	record, err := m.snapshots.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	if record == nil || record.Status != model.SnapshotStatusCompleted {
		return nil, ErrNotFound
	}

	state, err := ReadSnapshot(record.Path, cfg.Passphrase)
	if err != nil {
		return nil, err
	}
	restored, err := m.schedule.Replace(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("save restored state: %w", err)
	}
	m.logger.Info("snapshot restored", "id", id, "appointments", len(restored.Appointments))
	return &restored, nil
}

// List returns the most recent snapshots, newest first.
func (m *Manager) List(ctx context.Context, limit int) ([]model.Snapshot, error) {
	return m.snapshots.List(ctx, limit)
}

// Cleanup removes all but the newest Keep snapshots.
func (m *Manager) Cleanup(ctx context.Context) error {
	m.mu.RLock()
	keep := m.cfg.Keep
	m.mu.RUnlock()

	paths, err := m.snapshots.DeleteAllButNewest(ctx, keep)
	if err != nil {
		return fmt.Errorf("delete old snapshots: %w", err)
	}
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("remove snapshot file", "path", path, "error", err)
		}
	}
	return nil
}

// ReadSnapshot decrypts the snapshot file at path into a schedule state.
func ReadSnapshot(path, passphrase string) (model.ScheduleState, error) {
	plaintext, err := ReadEncrypted(path, passphrase)
	if err != nil {
		return model.ScheduleState{}, err
	}
	state, err := interchange.FromJSON(string(plaintext))
	if err != nil {
		return model.ScheduleState{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return state, nil
}

// WriteSnapshot encrypts state to path and returns the file size.
func WriteSnapshot(path string, state model.ScheduleState, passphrase string) (int64, error) {
	body, err := interchange.ToJSON(state)
	if err != nil {
		return 0, err
	}
	return WriteEncrypted(path, []byte(body), passphrase)
}
