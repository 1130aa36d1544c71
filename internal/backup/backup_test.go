package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukerupert/agenda/internal/database"
	"github.com/dukerupert/agenda/internal/model"
	"github.com/dukerupert/agenda/internal/schedule"
	"github.com/dukerupert/agenda/internal/store"
)

func setupManager(t *testing.T, cfg Config, callback StatusCallback) (*Manager, *schedule.Service) {
	t.Helper()
	db, err := database.Open(database.MemoryPath)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc := schedule.New(store.NewStateStore(db), schedule.Options{Zone: "UTC"})
	return NewManager(cfg, svc, store.NewSnapshotStore(db), callback, nil), svc
}

func TestManagerStateLifecycle(t *testing.T) {
	m, _ := setupManager(t, Config{}, nil)
	if m.Status().State != StateDisabled {
		t.Errorf("state = %q, want %q", m.Status().State, StateDisabled)
	}
	if _, err := m.RunNow(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Errorf("RunNow err = %v, want ErrDisabled", err)
	}

	m2, _ := setupManager(t, Config{Dir: t.TempDir()}, nil)
	if m2.Status().State != StateDisabled {
		t.Errorf("passphrase missing: state = %q, want %q", m2.Status().State, StateDisabled)
	}

	m3, _ := setupManager(t, Config{Dir: t.TempDir(), Passphrase: "pw"}, nil)
	if m3.Status().State != StateIdle {
		t.Errorf("state = %q, want %q", m3.Status().State, StateIdle)
	}
}

func TestRunNowAndRestore(t *testing.T) {
	dir := t.TempDir()
	var statuses []State
	m, svc := setupManager(t, Config{Dir: dir, Passphrase: "secret"}, func(s Status) {
		statuses = append(statuses, s.State)
	})
	ctx := context.Background()

	saved := model.NewScheduleState(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	saved.Appointments = []model.Appointment{{
		ID:         "a",
		Date:       time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC),
		Recurrence: model.RecurrenceNone,
		Title:      "Keep me",
		Status:     model.StatusConfirmed,
		Attendees:  []string{},
		Contact:    []string{},
		Tags:       []string{},
		Category:   model.DefaultCategory,
		Priority:   1,
		Timezone:   "UTC",
		CalendarID: model.DefaultCalendarID,
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}}
	if _, err := svc.Replace(ctx, saved); err != nil {
		t.Fatalf("save: %v", err)
	}

	id, err := m.RunNow(ctx)
	if err != nil {
		t.Fatalf("run now: %v", err)
	}
	if len(statuses) != 2 || statuses[0] != StateRunning || statuses[1] != StateIdle {
		t.Errorf("statuses = %v", statuses)
	}
	if m.Status().LastSnapshot == nil {
		t.Error("expected LastSnapshot to be set")
	}

	list, err := m.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != id || list[0].Status != model.SnapshotStatusCompleted {
		t.Fatalf("snapshots = %+v", list)
	}
	if filepath.Dir(list[0].Path) != dir {
		t.Errorf("snapshot written to %q, want under %q", list[0].Path, dir)
	}

	// Wipe the schedule, then restore.
	if _, err := svc.Replace(ctx, model.NewScheduleState(time.Now())); err != nil {
		t.Fatalf("clear: %v", err)
	}
	restored, err := m.Restore(ctx, id)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if len(restored.Appointments) != 1 || restored.Appointments[0].Title != "Keep me" {
		t.Errorf("restored = %+v", restored)
	}

	loaded, err := svc.State(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Appointments) != 1 || loaded.Appointments[0].ID != "a" {
		t.Errorf("stored after restore = %+v", loaded.Appointments)
	}
}

func TestRestoreUnknownSnapshot(t *testing.T) {
	m, _ := setupManager(t, Config{Dir: t.TempDir(), Passphrase: "pw"}, nil)
	if _, err := m.Restore(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCleanupKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	m, _ := setupManager(t, Config{Dir: dir, Passphrase: "pw", Keep: 2}, nil)
	ctx := context.Background()

	for range 4 {
		if _, err := m.RunNow(ctx); err != nil {
			t.Fatalf("run now: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	if err := m.Cleanup(ctx); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("got %d snapshot files, want 2", len(entries))
	}
	list, _ := m.List(ctx, 10)
	if len(list) != 2 {
		t.Errorf("got %d snapshot records, want 2", len(list))
	}
}

func TestReadSnapshotWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s"+fileSuffix)
	if _, err := WriteSnapshot(path, model.NewScheduleState(time.Now()), "right"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadSnapshot(path, "wrong"); !errors.Is(err, ErrDecrypt) {
		t.Errorf("err = %v, want ErrDecrypt", err)
	}
	state, err := ReadSnapshot(path, "right")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if state.ViewMode != model.ViewMonth {
		t.Errorf("ViewMode = %q", state.ViewMode)
	}
}
