package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/agenda/internal/appointment"
	"github.com/dukerupert/agenda/internal/database"
	"github.com/dukerupert/agenda/internal/interchange"
	"github.com/dukerupert/agenda/internal/model"
	"github.com/dukerupert/agenda/internal/store"
	"github.com/dukerupert/agenda/internal/tz"
)

// Tuesday 2026-02-10 10:00 in Madrid.
var now = time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

func setupService(t *testing.T) *Service {
	t.Helper()
	db, err := database.Open(database.MemoryPath)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	n := 0
	return New(store.NewStateStore(db), Options{
		Clock:       tz.FixedClock(now),
		Zone:        "Europe/Madrid",
		DefaultView: model.ViewWeek,
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	})
}

func mustCreate(t *testing.T, s *Service, raw appointment.Raw) model.Appointment {
	t.Helper()
	a, _, err := s.Create(context.Background(), raw)
	if err != nil {
		t.Fatalf("create %q: %v", raw.Title, err)
	}
	return a
}

func TestStateDefaults(t *testing.T) {
	s := setupService(t)

	state, err := s.State(context.Background())
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.ViewMode != model.ViewWeek {
		t.Errorf("view = %q, want week", state.ViewMode)
	}
	if state.SortMode != model.SortPriority {
		t.Errorf("sort = %q, want priority", state.SortMode)
	}
	if !state.FocusDate.Equal(now) {
		t.Errorf("focus = %v, want %v", state.FocusDate, now)
	}
	if len(state.Calendars) != 3 {
		t.Errorf("calendars = %d, want 3", len(state.Calendars))
	}
	if len(state.Appointments) != 0 {
		t.Errorf("appointments = %d, want 0", len(state.Appointments))
	}
}

func TestCreateUpdateDelete(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	a, created, err := s.Create(ctx, appointment.Raw{Date: "2026-02-12T10:00", Title: " Dentist "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created {
		t.Error("expected created")
	}
	if a.ID != "id-1" || a.Title != "Dentist" || a.Timezone != "Europe/Madrid" {
		t.Errorf("unexpected appointment: %+v", a)
	}
	if want := time.Date(2026, 2, 12, 9, 0, 0, 0, time.UTC); !a.Date.Equal(want) {
		t.Errorf("date = %v, want %v", a.Date, want)
	}

	updated, err := s.Update(ctx, a.ID, appointment.Raw{Date: "2026-02-12T11:00", Title: "Dentist (moved)"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.CreatedAt.Equal(a.CreatedAt) {
		t.Errorf("createdAt changed: %v -> %v", a.CreatedAt, updated.CreatedAt)
	}
	got, err := s.Appointment(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Dentist (moved)" {
		t.Errorf("title = %q", got.Title)
	}

	if err := s.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
	if _, err := s.Update(ctx, a.ID, appointment.Raw{Date: "2026-02-12"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing err = %v, want ErrNotFound", err)
	}
}

func TestCreateRejectsInvalidDate(t *testing.T) {
	s := setupService(t)

	_, _, err := s.Create(context.Background(), appointment.Raw{Date: "next tuesday", Title: "x"})
	var verr *appointment.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if verr.Field != "date" {
		t.Errorf("field = %q, want date", verr.Field)
	}
}

func TestReplaceIsAllOrNothing(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	state := model.NewScheduleState(now)
	state.Appointments = []model.Appointment{
		{ID: "ok", Date: now, Title: "fine"},
		{ID: "bad", Title: "no date"},
	}
	if _, err := s.Replace(ctx, state); err == nil {
		t.Fatal("expected error for appointment without date")
	}
	list, err := s.Appointments(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("stored %d appointments after failed replace", len(list))
	}

	state.Appointments = state.Appointments[:1]
	state.ViewMode = "bogus"
	saved, err := s.Replace(ctx, state)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if saved.ViewMode != model.ViewMonth {
		t.Errorf("view = %q, want month", saved.ViewMode)
	}
	if len(saved.Appointments) != 1 || saved.Appointments[0].Category != model.DefaultCategory {
		t.Errorf("appointments not normalized: %+v", saved.Appointments)
	}
}

func TestOccurrences(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()
	mustCreate(t, s, appointment.Raw{Date: "2026-02-03T10:00", Title: "Standup", Recurrence: "weekly"})
	mustCreate(t, s, appointment.Raw{Date: "2026-02-11T08:00", Title: "Review", Priority: appointment.Int(9)})

	tests := []struct {
		name  string
		view  model.ViewMode
		sort  model.SortMode
		want  []string
		start time.Time
	}{
		{
			name:  "week by priority",
			view:  model.ViewWeek,
			want:  []string{"Review", "Standup"},
			start: time.Date(2026, 2, 8, 23, 0, 0, 0, time.UTC),
		},
		{
			name:  "week by time",
			view:  model.ViewWeek,
			sort:  model.SortDateTime,
			want:  []string{"Standup", "Review"},
			start: time.Date(2026, 2, 8, 23, 0, 0, 0, time.UTC),
		},
		{
			name:  "month",
			view:  model.ViewMonth,
			sort:  model.SortDateTime,
			want:  []string{"Standup", "Standup", "Review", "Standup", "Standup"},
			start: time.Date(2026, 1, 31, 23, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := s.Occurrences(ctx, Query{View: tt.view, Sort: tt.sort})
			if err != nil {
				t.Fatalf("occurrences: %v", err)
			}
			if !w.Start.Equal(tt.start) {
				t.Errorf("start = %v, want %v", w.Start, tt.start)
			}
			var titles []string
			for _, o := range w.Occurrences {
				titles = append(titles, o.Title)
			}
			if strings.Join(titles, ",") != strings.Join(tt.want, ",") {
				t.Errorf("titles = %v, want %v", titles, tt.want)
			}
		})
	}
}

func TestOccurrencesZone(t *testing.T) {
	s := setupService(t)
	w, err := s.Occurrences(context.Background(), Query{View: model.ViewDay, Zone: "America/New_York"})
	if err != nil {
		t.Fatalf("occurrences: %v", err)
	}
	if w.Zone != "America/New_York" {
		t.Errorf("zone = %q", w.Zone)
	}
	if want := time.Date(2026, 2, 10, 5, 0, 0, 0, time.UTC); !w.Start.Equal(want) {
		t.Errorf("start = %v, want %v", w.Start, want)
	}
	if w.Occurrences == nil {
		t.Error("occurrences should be an empty list, not nil")
	}
}

func TestAgenda(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()
	mustCreate(t, s, appointment.Raw{
		Date:            "2026-02-03T10:00",
		Title:           "Physio",
		Recurrence:      "weekly",
		RecurrenceCount: appointment.Int(2),
	})
	mustCreate(t, s, appointment.Raw{Date: "2026-02-10T15:00", Title: "Call"})

	from, to := s.AgendaRange("")
	if want := time.Date(2026, 2, 9, 23, 0, 0, 0, time.UTC); !from.Equal(want) {
		t.Errorf("from = %v, want %v", from, want)
	}
	if want := time.Date(2026, 3, 12, 22, 59, 59, 999_000_000, time.UTC); !to.Equal(want) {
		t.Errorf("to = %v, want %v", to, want)
	}

	days, err := s.Agenda(ctx, from, to, "")
	if err != nil {
		t.Fatalf("agenda: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("days = %d, want 2", len(days))
	}
	if days[0].Date != "2026-02-10" || len(days[0].Occurrences) != 2 {
		t.Errorf("first day = %s with %d", days[0].Date, len(days[0].Occurrences))
	}
	if days[0].Occurrences[0].Title != "Physio" {
		t.Errorf("first occurrence = %q, want Physio", days[0].Occurrences[0].Title)
	}
	if days[1].Date != "2026-02-17" {
		t.Errorf("second day = %s, want 2026-02-17", days[1].Date)
	}
}

const importCSV = `id,date,endDate,timezone,title,priority
a1,2026-02-12T10:00,,Europe/Madrid,Gym,4
a2,2026-02-13T10:00,2026-02-13T09:00,Europe/Madrid,Backwards,2
a3,not a date,,UTC,Broken,1
`

func TestImportMerge(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()
	mustCreate(t, s, appointment.Raw{ID: "keep", Date: "2026-02-11T09:00", Title: "Existing"})

	result, err := s.Import(ctx, "export.csv", importCSV, false)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Format != interchange.FormatCSV {
		t.Errorf("format = %q", result.Format)
	}
	if result.Imported != 1 {
		t.Errorf("imported = %d, want 1", result.Imported)
	}
	if len(result.Skipped) != 1 || result.Skipped[0].Line != 4 {
		t.Errorf("skipped = %+v, want line 4", result.Skipped)
	}
	if len(result.Rejected) != 1 || result.Rejected[0].ID != "a2" || result.Rejected[0].Field != "endDate" {
		t.Errorf("rejected = %+v", result.Rejected)
	}

	list, err := s.Appointments(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "keep" || list[1].ID != "a1" {
		t.Errorf("stored = %+v", list)
	}
}

func TestImportReplaceKeepsViewForCSV(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()
	mustCreate(t, s, appointment.Raw{ID: "gone", Date: "2026-02-11T09:00", Title: "Old"})
	state := mustState(t, s)
	state.ViewMode = model.ViewYear
	state.SortMode = model.SortDateTime
	if _, err := s.Replace(ctx, state); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := s.Import(ctx, "", importCSV, true); err != nil {
		t.Fatalf("import: %v", err)
	}
	state = mustState(t, s)
	if len(state.Appointments) != 1 || state.Appointments[0].ID != "a1" {
		t.Errorf("appointments = %+v", state.Appointments)
	}
	if state.ViewMode != model.ViewYear || state.SortMode != model.SortDateTime {
		t.Errorf("view settings lost: %s/%s", state.ViewMode, state.SortMode)
	}
}

func TestImportMalformedJSON(t *testing.T) {
	s := setupService(t)
	_, err := s.Import(context.Background(), "state.json", "{not json", true)
	if !errors.Is(err, interchange.ErrParse) {
		t.Errorf("err = %v, want ErrParse", err)
	}
}

func TestExportRoundTrip(t *testing.T) {
	src := setupService(t)
	ctx := context.Background()
	mustCreate(t, src, appointment.Raw{Date: "2026-02-12T10:00", Title: "Gym", Recurrence: "daily"})

	out, err := src.ExportFor(ctx, "")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if out.Filename != "appointment-state.json" || out.MIMEType != "application/json" {
		t.Errorf("export metadata = %q %q", out.Filename, out.MIMEType)
	}

	dst := setupService(t)
	if _, err := dst.Import(ctx, out.Filename, out.Body, true); err != nil {
		t.Fatalf("import: %v", err)
	}
	want, _ := src.Appointments(ctx)
	got, _ := dst.Appointments(ctx)
	if len(got) != 1 || got[0].ID != want[0].ID || !got[0].Date.Equal(want[0].Date) {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestConvert(t *testing.T) {
	s := setupService(t)
	out, result, err := s.Convert("in.csv", importCSV, interchange.FormatICS)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if result.Imported != 1 {
		t.Errorf("imported = %d, want 1", result.Imported)
	}
	if strings.Count(out.Body, "BEGIN:VEVENT") != 1 {
		t.Errorf("expected one VEVENT in:\n%s", out.Body)
	}
	if !strings.Contains(out.Body, "SUMMARY:Gym") {
		t.Errorf("missing summary in:\n%s", out.Body)
	}
}

func mustState(t *testing.T, s *Service) model.ScheduleState {
	t.Helper()
	state, err := s.State(context.Background())
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	return state
}
