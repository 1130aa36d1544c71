package store

import (
	"context"
	"testing"

	"github.com/dukerupert/agenda/internal/model"
)

func setupSnapshotTestDB(t *testing.T) *SnapshotStore {
	t.Helper()
	return NewSnapshotStore(openTestDB(t))
}

func TestSnapshotCreate(t *testing.T) {
	ss := setupSnapshotTestDB(t)

	snap, err := ss.Create(context.Background(), "snapshot-1.json.enc", "/tmp/snapshot-1.json.enc")
	if err != nil {
		t.Fatalf("create snapshot: %v", err)
	}
	if snap.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if snap.Status != model.SnapshotStatusPending {
		t.Errorf("status = %q, want %q", snap.Status, model.SnapshotStatusPending)
	}

	got, err := ss.GetByID(context.Background(), snap.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Filename != "snapshot-1.json.enc" || got.Path != "/tmp/snapshot-1.json.enc" {
		t.Errorf("got %+v", got)
	}
}

func TestSnapshotGetNotFound(t *testing.T) {
	ss := setupSnapshotTestDB(t)

	got, err := ss.GetByID(context.Background(), 999)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestSnapshotStatusTransitions(t *testing.T) {
	ss := setupSnapshotTestDB(t)
	ctx := context.Background()

	snap, err := ss.Create(ctx, "a", "/a")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := ss.UpdateStatus(ctx, snap.ID, model.SnapshotStatusFailed, "disk full"); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, _ := ss.GetByID(ctx, snap.ID)
	if got.Status != model.SnapshotStatusFailed || got.ErrorMessage != "disk full" {
		t.Errorf("got %+v", got)
	}

	latest, err := ss.LatestCompleted(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest != nil {
		t.Errorf("expected no completed snapshot, got %+v", latest)
	}

	if err := ss.UpdateCompleted(ctx, snap.ID, 1234); err != nil {
		t.Fatalf("update completed: %v", err)
	}
	latest, err = ss.LatestCompleted(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest == nil || latest.ID != snap.ID || latest.SizeBytes != 1234 || latest.CompletedAt == nil {
		t.Errorf("latest = %+v", latest)
	}
}

func TestSnapshotRetention(t *testing.T) {
	ss := setupSnapshotTestDB(t)
	ctx := context.Background()

	for _, name := range []string{"one", "two", "three", "four"} {
		if _, err := ss.Create(ctx, name, "/snapshots/"+name); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	paths, err := ss.DeleteAllButNewest(ctx, 2)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(paths) != 2 || paths[0] != "/snapshots/two" || paths[1] != "/snapshots/one" {
		t.Errorf("deleted paths = %q", paths)
	}

	list, err := ss.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Filename != "four" || list[1].Filename != "three" {
		t.Errorf("remaining = %+v", list)
	}
}
