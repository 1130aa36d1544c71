package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ReminderStore remembers which occurrence reminders were already delivered
// so a scheduler tick never announces the same occurrence twice.
type ReminderStore struct {
	db *sql.DB
}

func NewReminderStore(db *sql.DB) *ReminderStore {
	return &ReminderStore{db: db}
}

// MarkSent records a reminder for the occurrence of appointmentID at
// occurrence. It reports false when one was already recorded.
func (s *ReminderStore) MarkSent(ctx context.Context, appointmentID string, occurrence time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders_sent (appointment_id, occurrence_date, sent_at) VALUES (?, ?, ?)
		 ON CONFLICT(appointment_id, occurrence_date) DO NOTHING`,
		appointmentID, formatTime(occurrence), formatTime(time.Now()),
	)
	if err != nil {
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *ReminderStore) WasSent(ctx context.Context, appointmentID string, occurrence time.Time) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reminders_sent WHERE appointment_id = ? AND occurrence_date = ?`,
		appointmentID, formatTime(occurrence),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check reminder sent: %w", err)
	}
	return count > 0, nil
}

// DeleteOlderThan drops records for occurrences before before.
func (s *ReminderStore) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM reminders_sent WHERE occurrence_date < ?`, formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("delete old reminders: %w", err)
	}
	return result.RowsAffected()
}
