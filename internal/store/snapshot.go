package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/agenda/internal/model"
)

const snapshotColumns = `id, filename, path, size_bytes, status, error_message, started_at, completed_at, created_at`

type SnapshotStore struct {
	db *sql.DB
}

func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) Create(ctx context.Context, filename, path string) (*model.Snapshot, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (filename, path, status, started_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		filename, path, model.SnapshotStatusPending, formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("create snapshot: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &model.Snapshot{
		ID:        id,
		Filename:  filename,
		Path:      path,
		Status:    model.SnapshotStatusPending,
		StartedAt: &now,
		CreatedAt: now,
	}, nil
}

func (s *SnapshotStore) GetByID(ctx context.Context, id int64) (*model.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+snapshotColumns+` FROM snapshots WHERE id = ?`, id)
	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot %d: %w", id, err)
	}
	return snap, nil
}

// List returns up to limit snapshots, newest first.
func (s *SnapshotStore) List(ctx context.Context, limit int) ([]model.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []model.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snapshots = append(snapshots, *snap)
	}
	return snapshots, rows.Err()
}

func (s *SnapshotStore) UpdateStatus(ctx context.Context, id int64, status model.SnapshotStatus, errorMsg string) error {
	var errPtr *string
	if errorMsg != "" {
		errPtr = &errorMsg
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE snapshots SET status = ?, error_message = ? WHERE id = ?`,
		status, errPtr, id,
	)
	if err != nil {
		return fmt.Errorf("update snapshot status: %w", err)
	}
	return nil
}

func (s *SnapshotStore) UpdateCompleted(ctx context.Context, id, sizeBytes int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE snapshots SET status = ?, size_bytes = ?, completed_at = ? WHERE id = ?`,
		model.SnapshotStatusCompleted, sizeBytes, formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("update snapshot completed: %w", err)
	}
	return nil
}

// DeleteAllButNewest keeps the newest keep snapshots and returns the paths
// of the records it deleted.
func (s *SnapshotStore) DeleteAllButNewest(ctx context.Context, keep int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path FROM snapshots ORDER BY created_at DESC, id DESC LIMIT -1 OFFSET ?`, keep)
	if err != nil {
		return nil, fmt.Errorf("select old snapshots: %w", err)
	}

	var ids []int64
	var paths []string
	for rows.Next() {
		var id int64
		var path string
		if err := rows.Scan(&id, &path); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan snapshot path: %w", err)
		}
		ids = append(ids, id)
		paths = append(paths, path)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("delete snapshot %d: %w", id, err)
		}
	}
	return paths, nil
}

// LatestCompleted returns the newest completed snapshot, or nil.
func (s *SnapshotStore) LatestCompleted(ctx context.Context) (*model.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots WHERE status = ? ORDER BY completed_at DESC, id DESC LIMIT 1`,
		model.SnapshotStatusCompleted,
	)
	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest completed snapshot: %w", err)
	}
	return snap, nil
}

func scanSnapshot(row scanner) (*model.Snapshot, error) {
	snap := &model.Snapshot{}
	var errMsg, startedAt, completedAt sql.NullString
	var createdAt string
	err := row.Scan(&snap.ID, &snap.Filename, &snap.Path, &snap.SizeBytes, &snap.Status, &errMsg,
		&startedAt, &completedAt, &createdAt)
	if err != nil {
		return nil, err
	}
	snap.ErrorMessage = errMsg.String
	if snap.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("snapshot created_at: %w", err)
	}
	if startedAt.Valid {
		t, err := parseTime(startedAt.String)
		if err != nil {
			return nil, fmt.Errorf("snapshot started_at: %w", err)
		}
		snap.StartedAt = &t
	}
	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("snapshot completed_at: %w", err)
		}
		snap.CompletedAt = &t
	}
	return snap, nil
}
