package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/agenda/internal/model"
)

const (
	keyViewMode  = "view_mode"
	keySortMode  = "sort_mode"
	keyFocusDate = "focus_date"
	keySavedAt   = "saved_at"
)

const appointmentColumns = `id, date, end_date, recurrence, recurrence_count, title, description, location, url, status,
	attendees, contact, category, tags, priority, all_day, timezone, calendar_id, reminder_minutes, created_at`

// StateStore persists the schedule: appointments, calendars and the view
// settings the UI restores on load.
type StateStore struct {
	db *sql.DB
}

func NewStateStore(db *sql.DB) *StateStore {
	return &StateStore{db: db}
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

// Load returns the saved schedule, or nil if Save has never run.
func (s *StateStore) Load(ctx context.Context) (*model.ScheduleState, error) {
	var savedAt string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, keySavedAt).Scan(&savedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	appointments, err := s.ListAppointments(ctx)
	if err != nil {
		return nil, err
	}
	calendars, err := s.ListCalendars(ctx)
	if err != nil {
		return nil, err
	}
	view, sortMode, focus, err := s.GetView(ctx)
	if err != nil {
		return nil, err
	}

	return &model.ScheduleState{
		Appointments: appointments,
		ViewMode:     view,
		SortMode:     sortMode,
		FocusDate:    focus,
		Calendars:    calendars,
	}, nil
}

// Save replaces the stored schedule with state in a single transaction.
// Calendars are only replaced when state carries some.
func (s *StateStore) Save(ctx context.Context, state model.ScheduleState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM appointments`); err != nil {
		return fmt.Errorf("clear appointments: %w", err)
	}
	for i, a := range state.Appointments {
		if err := upsertAppointment(ctx, tx, a, i); err != nil {
			return err
		}
	}

	if len(state.Calendars) > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM calendars`); err != nil {
			return fmt.Errorf("clear calendars: %w", err)
		}
		for i, c := range state.Calendars {
			if err := upsertCalendar(ctx, tx, c, i); err != nil {
				return err
			}
		}
	}

	focus := ""
	if !state.FocusDate.IsZero() {
		focus = formatTime(state.FocusDate)
	}
	settings := map[string]string{
		keyViewMode:  string(model.ParseViewMode(string(state.ViewMode))),
		keySortMode:  string(model.ParseSortMode(string(state.SortMode))),
		keyFocusDate: focus,
		keySavedAt:   formatTime(time.Now()),
	}
	for key, value := range settings {
		if err := setSetting(ctx, tx, key, value); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

func (s *StateStore) ListAppointments(ctx context.Context) ([]model.Appointment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments ORDER BY position, created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	appointments := []model.Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, a)
	}
	return appointments, rows.Err()
}

// ListWithReminders returns the appointments that carry a reminder lead time.
func (s *StateStore) ListWithReminders(ctx context.Context) ([]model.Appointment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE reminder_minutes IS NOT NULL ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query reminder appointments: %w", err)
	}
	defer rows.Close()

	var appointments []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, a)
	}
	return appointments, rows.Err()
}

func (s *StateStore) GetAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id)
	a, err := scanAppointment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// PutAppointment inserts a or replaces the stored appointment with the same
// ID. Replacements keep their position; new appointments go last. created
// reports whether a was new.
func (s *StateStore) PutAppointment(ctx context.Context, a model.Appointment) (created bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin put appointment: %w", err)
	}
	defer tx.Rollback()

	var position int
	err = tx.QueryRowContext(ctx, `SELECT position FROM appointments WHERE id = ?`, a.ID).Scan(&position)
	switch {
	case err == sql.ErrNoRows:
		created = true
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM appointments`).Scan(&position); err != nil {
			return false, fmt.Errorf("next position: %w", err)
		}
	case err != nil:
		return false, fmt.Errorf("query appointment position: %w", err)
	}

	if err := upsertAppointment(ctx, tx, a, position); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit put appointment: %w", err)
	}
	return created, nil
}

// DeleteAppointment removes the appointment with id and reports whether it
// existed.
func (s *StateStore) DeleteAppointment(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete appointment: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM reminders_sent WHERE appointment_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete appointment reminders: %w", err)
	}
	return n > 0, nil
}

func (s *StateStore) ListCalendars(ctx context.Context) ([]model.Calendar, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, color FROM calendars ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("query calendars: %w", err)
	}
	defer rows.Close()

	var calendars []model.Calendar
	for rows.Next() {
		var c model.Calendar
		if err := rows.Scan(&c.ID, &c.Name, &c.Color); err != nil {
			return nil, fmt.Errorf("scan calendar: %w", err)
		}
		calendars = append(calendars, c)
	}
	return calendars, rows.Err()
}

// PutCalendar inserts or renames a calendar. New calendars go last.
func (s *StateStore) PutCalendar(ctx context.Context, c model.Calendar) error {
	var position int
	err := s.db.QueryRowContext(ctx, `SELECT position FROM calendars WHERE id = ?`, c.ID).Scan(&position)
	if err == sql.ErrNoRows {
		err = s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM calendars`).Scan(&position)
	}
	if err != nil {
		return fmt.Errorf("calendar position: %w", err)
	}
	return upsertCalendar(ctx, s.db, c, position)
}

// GetView returns the stored view and sort modes and focus date. The focus
// date is zero when none was saved.
func (s *StateStore) GetView(ctx context.Context) (model.ViewMode, model.SortMode, time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM settings WHERE key IN (?, ?, ?)`, keyViewMode, keySortMode, keyFocusDate)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("query view settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return "", "", time.Time{}, fmt.Errorf("scan setting: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return "", "", time.Time{}, err
	}

	var focus time.Time
	if v := values[keyFocusDate]; v != "" {
		if focus, err = parseTime(v); err != nil {
			return "", "", time.Time{}, fmt.Errorf("parse focus date: %w", err)
		}
	}
	return model.ParseViewMode(values[keyViewMode]), model.ParseSortMode(values[keySortMode]), focus, nil
}

// SetView stores the view settings. A zero focus clears the stored date.
func (s *StateStore) SetView(ctx context.Context, view model.ViewMode, sortMode model.SortMode, focus time.Time) error {
	focusValue := ""
	if !focus.IsZero() {
		focusValue = formatTime(focus)
	}
	for key, value := range map[string]string{
		keyViewMode:  string(model.ParseViewMode(string(view))),
		keySortMode:  string(model.ParseSortMode(string(sortMode))),
		keyFocusDate: focusValue,
	} {
		if err := setSetting(ctx, s.db, key, value); err != nil {
			return err
		}
	}
	return nil
}

func setSetting(ctx context.Context, db execer, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

func upsertCalendar(ctx context.Context, db execer, c model.Calendar, position int) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO calendars (id, name, color, position) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, color = excluded.color`,
		c.ID, c.Name, c.Color, position,
	)
	if err != nil {
		return fmt.Errorf("upsert calendar %q: %w", c.ID, err)
	}
	return nil
}

func upsertAppointment(ctx context.Context, db execer, a model.Appointment, position int) error {
	attendees, err := encodeList(a.Attendees)
	if err != nil {
		return err
	}
	contact, err := encodeList(a.Contact)
	if err != nil {
		return err
	}
	tags, err := encodeList(a.Tags)
	if err != nil {
		return err
	}

	var endDate sql.NullString
	if a.EndDate != nil {
		endDate = sql.NullString{String: formatTime(*a.EndDate), Valid: true}
	}
	var allDay int
	if a.AllDay {
		allDay = 1
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO appointments (id, position, date, end_date, recurrence, recurrence_count, title, description,
			location, url, status, attendees, contact, category, tags, priority, all_day, timezone, calendar_id,
			reminder_minutes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			position = excluded.position, date = excluded.date, end_date = excluded.end_date,
			recurrence = excluded.recurrence, recurrence_count = excluded.recurrence_count,
			title = excluded.title, description = excluded.description, location = excluded.location,
			url = excluded.url, status = excluded.status, attendees = excluded.attendees,
			contact = excluded.contact, category = excluded.category, tags = excluded.tags,
			priority = excluded.priority, all_day = excluded.all_day, timezone = excluded.timezone,
			calendar_id = excluded.calendar_id, reminder_minutes = excluded.reminder_minutes,
			created_at = excluded.created_at`,
		a.ID, position, formatTime(a.Date), endDate, string(a.Recurrence), nullInt(a.RecurrenceCount),
		a.Title, a.Description, a.Location, a.URL, string(a.Status), attendees, contact, a.Category, tags,
		a.Priority, allDay, a.Timezone, a.CalendarID, nullInt(a.ReminderMinutes), formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert appointment %q: %w", a.ID, err)
	}
	return nil
}

func scanAppointment(row scanner) (model.Appointment, error) {
	var a model.Appointment
	var date, createdAt string
	var endDate sql.NullString
	var recurrenceCount, reminderMinutes sql.NullInt64
	var attendees, contact, tags string
	var allDay int

	err := row.Scan(&a.ID, &date, &endDate, &a.Recurrence, &recurrenceCount, &a.Title, &a.Description,
		&a.Location, &a.URL, &a.Status, &attendees, &contact, &a.Category, &tags, &a.Priority, &allDay,
		&a.Timezone, &a.CalendarID, &reminderMinutes, &createdAt)
	if err == sql.ErrNoRows {
		return a, err
	}
	if err != nil {
		return a, fmt.Errorf("scan appointment: %w", err)
	}

	if a.Date, err = parseTime(date); err != nil {
		return a, fmt.Errorf("appointment %q date: %w", a.ID, err)
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return a, fmt.Errorf("appointment %q created_at: %w", a.ID, err)
	}
	if endDate.Valid {
		end, err := parseTime(endDate.String)
		if err != nil {
			return a, fmt.Errorf("appointment %q end_date: %w", a.ID, err)
		}
		a.EndDate = &end
	}
	a.RecurrenceCount = intPtr(recurrenceCount)
	a.ReminderMinutes = intPtr(reminderMinutes)
	a.AllDay = allDay != 0

	if a.Attendees, err = decodeList(attendees); err != nil {
		return a, err
	}
	if a.Contact, err = decodeList(contact); err != nil {
		return a, err
	}
	if a.Tags, err = decodeList(tags); err != nil {
		return a, err
	}
	return a, nil
}

// Stored instants use a fixed-width UTC layout so they sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(b), nil
}

func decodeList(s string) ([]string, error) {
	items := []string{}
	if s == "" {
		return items, nil
	}
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return items, nil
}
