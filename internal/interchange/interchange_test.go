package interchange

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/agenda/internal/appointment"
	"github.com/dukerupert/agenda/internal/model"
	"github.com/dukerupert/agenda/internal/tz"
)

var fixedNow = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func testCodec() Codec {
	n := 0
	return Codec{
		Clock: tz.FixedClock(fixedNow),
		NewID: func() string {
			n++
			return fmt.Sprintf("new-%d", n)
		},
	}
}

func mustNormalize(t *testing.T, raw appointment.Raw) model.Appointment {
	t.Helper()
	n := appointment.Normalizer{Clock: tz.FixedClock(fixedNow), DefaultZone: "UTC"}
	a, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	return a
}

func sampleState(t *testing.T) model.ScheduleState {
	t.Helper()
	state := model.NewScheduleState(time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC))
	state.Calendars = model.DefaultCalendars()
	state.Appointments = []model.Appointment{
		mustNormalize(t, appointment.Raw{
			ID:              "standup",
			Date:            "2026-02-15T10:00",
			EndDate:         "2026-02-15T10:15",
			Timezone:        "Europe/Madrid",
			Recurrence:      "weekly",
			RecurrenceCount: appointment.Int(5),
			Title:           "Standup",
			Description:     "Agenda: status, blockers; \"quick\" round\nsecond line \\ done",
			Location:        "Room 4, Floor 2",
			URL:             "https://example.com/meet?id=1",
			Status:          "tentative",
			Attendees:       appointment.StringList{"a@x.com", "b@y.com"},
			Contact:         appointment.StringList{"Ann", "Bob"},
			Category:        "work",
			Tags:            appointment.StringList{"x", "y"},
			Priority:        appointment.Int(7),
			AllDay:          false,
			CalendarID:      "work",
			ReminderMinutes: appointment.Int(15),
		}),
		mustNormalize(t, appointment.Raw{
			ID:       "dentist",
			Date:     "2026-02-20",
			Timezone: "America/New_York",
			Title:    "Dentist",
			AllDay:   true,
		}),
	}
	return state
}

func TestJSONRoundTrip(t *testing.T) {
	c := testCodec()
	state := sampleState(t)

	text, err := c.ToJSON(state)
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	if !strings.Contains(text, `"viewMode": "month"`) {
		t.Errorf("expected indented JSON, got:\n%s", text)
	}

	got, err := c.FromJSON(text)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if !reflect.DeepEqual(got.Appointments, state.Appointments) {
		t.Errorf("appointments changed:\n got %+v\nwant %+v", got.Appointments, state.Appointments)
	}
	if !got.FocusDate.Equal(state.FocusDate) {
		t.Errorf("FocusDate = %v, want %v", got.FocusDate, state.FocusDate)
	}
	if !reflect.DeepEqual(got.Calendars, state.Calendars) {
		t.Errorf("Calendars = %+v", got.Calendars)
	}
}

func TestFromJSONDefaultsFocusDate(t *testing.T) {
	got, err := testCodec().FromJSON(`{"appointments": [], "viewMode": "week"}`)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if !got.FocusDate.Equal(fixedNow) {
		t.Errorf("FocusDate = %v, want %v", got.FocusDate, fixedNow)
	}
	if got.ViewMode != model.ViewWeek || got.SortMode != model.SortPriority {
		t.Errorf("modes = %q/%q", got.ViewMode, got.SortMode)
	}

	got, err = testCodec().FromJSON("")
	if err != nil {
		t.Fatalf("FromJSON(empty): %v", err)
	}
	if got.Appointments == nil || len(got.Appointments) != 0 {
		t.Errorf("Appointments = %#v", got.Appointments)
	}
}

func TestFromJSONMalformed(t *testing.T) {
	for _, text := range []string{`{"appointments": [`, `not json`, `{"focusDate": "yesterday"}`} {
		_, err := testCodec().FromJSON(text)
		if !errors.Is(err, ErrParse) {
			t.Errorf("FromJSON(%q) error = %v, want ErrParse", text, err)
		}
	}
}

func TestCSVRoundTrip(t *testing.T) {
	c := testCodec()
	state := sampleState(t)

	text := c.ToCSV(state)
	header := strings.SplitN(text, "\n", 2)[0]
	if header != strings.Join(csvColumns, ",") {
		t.Errorf("header = %q", header)
	}

	result := c.FromCSV(text)
	if len(result.Skipped) != 0 {
		t.Fatalf("skipped: %+v", result.Skipped)
	}
	if !reflect.DeepEqual(result.State.Appointments, state.Appointments) {
		t.Errorf("appointments changed:\n got %+v\nwant %+v", result.State.Appointments, state.Appointments)
	}

	first := result.State.Appointments[0]
	if !reflect.DeepEqual(first.Attendees, []string{"a@x.com", "b@y.com"}) {
		t.Errorf("Attendees = %q", first.Attendees)
	}
	if !reflect.DeepEqual(first.Tags, []string{"x", "y"}) {
		t.Errorf("Tags = %q", first.Tags)
	}
}

func TestCSVSkipsMalformedRows(t *testing.T) {
	text := strings.Join([]string{
		"id,date,title",
		"a,2026-02-15T10:00:00.000Z,Good",
		"b,2026-02-16T10:00:00.000Z",
		"c,garbage,Bad date",
		`d,2026-02-17T10:00:00.000Z,"Quoted, with comma"`,
		"",
	}, "\n")

	result := testCodec().FromCSV(text)
	if len(result.State.Appointments) != 2 {
		t.Fatalf("got %d appointments, want 2", len(result.State.Appointments))
	}
	if result.State.Appointments[1].Title != "Quoted, with comma" {
		t.Errorf("Title = %q", result.State.Appointments[1].Title)
	}
	if len(result.Skipped) != 2 {
		t.Fatalf("got %d skipped, want 2: %+v", len(result.Skipped), result.Skipped)
	}
	if result.Skipped[0].Line != 3 || result.Skipped[1].Line != 4 {
		t.Errorf("skipped lines = %d, %d; want 3, 4", result.Skipped[0].Line, result.Skipped[1].Line)
	}
}

func TestCSVHeaderDriven(t *testing.T) {
	text := "title,date,tags,priority\nLunch,2026-02-15T12:30,food|social,high\n"
	result := testCodec().FromCSV(text)
	if len(result.State.Appointments) != 1 {
		t.Fatalf("got %d appointments, skipped %+v", len(result.State.Appointments), result.Skipped)
	}
	a := result.State.Appointments[0]
	if a.ID != "new-1" {
		t.Errorf("ID = %q", a.ID)
	}
	if a.Title != "Lunch" || a.Timezone != "UTC" || a.Priority != 1 {
		t.Errorf("got %+v", a)
	}
	if !a.Date.Equal(time.Date(2026, 2, 15, 12, 30, 0, 0, time.UTC)) {
		t.Errorf("Date = %v", a.Date)
	}
	if !reflect.DeepEqual(a.Tags, []string{"food", "social"}) {
		t.Errorf("Tags = %q", a.Tags)
	}
	if !a.CreatedAt.Equal(fixedNow) {
		t.Errorf("CreatedAt = %v", a.CreatedAt)
	}
}

func TestCSVEmpty(t *testing.T) {
	result := testCodec().FromCSV("")
	if len(result.State.Appointments) != 0 || len(result.Skipped) != 0 {
		t.Errorf("got %+v", result)
	}
	if !result.State.FocusDate.Equal(fixedNow) {
		t.Errorf("FocusDate = %v", result.State.FocusDate)
	}
}

func TestICSExport(t *testing.T) {
	text := testCodec().ToICS(sampleState(t))
	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"BEGIN:VEVENT",
		"UID:standup",
		"DTSTART:20260215T090000Z",
		"DTEND:20260215T091500Z",
		"SUMMARY:Standup",
		"STATUS:TENTATIVE",
		"PRIORITY:7",
		"RRULE:FREQ=WEEKLY;COUNT=5",
		"ATTENDEE:mailto:a@x.com",
		"ATTENDEE:mailto:b@y.com",
		"X-AGENDA-TIMEZONE:Europe/Madrid",
		"X-AGENDA-ALLDAY:TRUE",
		"END:VCALENDAR",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("ICS output missing %q", want)
		}
	}
	if strings.Count(text, "RRULE:") != 1 {
		t.Errorf("single-shot appointments should carry no RRULE:\n%s", text)
	}
	if !strings.HasPrefix(text, "BEGIN:VCALENDAR\r\n") {
		t.Errorf("output does not start with a CRLF-terminated BEGIN:VCALENDAR: %q", text[:min(len(text), 40)])
	}
	if strings.Count(text, "\n") != strings.Count(text, "\r\n") {
		t.Error("bare LF line endings in ICS output")
	}
	for _, line := range strings.Split(text, "\r\n") {
		if len(line) > 75 {
			t.Errorf("line not folded: %q", line)
		}
	}
}

func TestICSRoundTrip(t *testing.T) {
	c := testCodec()
	state := sampleState(t)

	result := c.FromICS(c.ToICS(state))
	if len(result.Skipped) != 0 {
		t.Fatalf("skipped: %+v", result.Skipped)
	}
	if len(result.State.Appointments) != len(state.Appointments) {
		t.Fatalf("got %d appointments, want %d", len(result.State.Appointments), len(state.Appointments))
	}

	for i, want := range state.Appointments {
		got := result.State.Appointments[i]
		if got.ID != want.ID || got.Title != want.Title || got.Status != want.Status ||
			got.Recurrence != want.Recurrence || got.Location != want.Location ||
			got.Timezone != want.Timezone || got.CalendarID != want.CalendarID {
			t.Errorf("appointment %d:\n got %+v\nwant %+v", i, got, want)
		}
		if !got.Date.Equal(want.Date) {
			t.Errorf("appointment %d Date = %v, want %v", i, got.Date, want.Date)
		}
		if got.AllDay != want.AllDay || got.Priority != want.Priority || got.Category != want.Category {
			t.Errorf("appointment %d flags:\n got %+v\nwant %+v", i, got, want)
		}
	}

	first := result.State.Appointments[0]
	want := state.Appointments[0]
	if first.Description != want.Description {
		t.Errorf("Description = %q, want %q", first.Description, want.Description)
	}
	if first.URL != want.URL {
		t.Errorf("URL = %q", first.URL)
	}
	if !reflect.DeepEqual(first.Attendees, want.Attendees) {
		t.Errorf("Attendees = %q", first.Attendees)
	}
	if !reflect.DeepEqual(first.Tags, want.Tags) || !reflect.DeepEqual(first.Contact, want.Contact) {
		t.Errorf("Tags = %q, Contact = %q", first.Tags, first.Contact)
	}
	if first.RecurrenceCount == nil || *first.RecurrenceCount != 5 {
		t.Errorf("RecurrenceCount = %v", first.RecurrenceCount)
	}
	if first.ReminderMinutes == nil || *first.ReminderMinutes != 15 {
		t.Errorf("ReminderMinutes = %v", first.ReminderMinutes)
	}
	if first.EndDate == nil || !first.EndDate.Equal(*want.EndDate) {
		t.Errorf("EndDate = %v", first.EndDate)
	}
}

const foreignICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Other//EN
BEGIN:VEVENT
UID:ext-1
DTSTART:20260301T090000Z
DTEND:20260301T100000Z
SUMMARY:Planning session with a rather long title that goes past the fold
  limit
DESCRIPTION:Bring notes\, laptop\nand coffee
ATTENDEE;CN=Ann:mailto:ann@example.com
ATTENDEE:MAILTO:bob@example.com
CATEGORIES:planning,quarterly
RRULE:FREQ=WEEKLY;COUNT=4
END:VEVENT
BEGIN:VEVENT
UID:broken
THIS LINE IS BROKEN
DTSTART:20260302T090000Z
END:VEVENT
BEGIN:VEVENT
UID:no-start
SUMMARY:Nothing
END:VEVENT
BEGIN:VEVENT
UID:tz-1
DTSTART;TZID=Europe/Madrid:20260215T100000
END:VEVENT
END:VCALENDAR
`

func TestICSForeignImport(t *testing.T) {
	result := testCodec().FromICS(foreignICS)
	if len(result.Skipped) != 2 {
		t.Errorf("got %d skipped, want 2: %+v", len(result.Skipped), result.Skipped)
	}
	if len(result.Skipped) > 0 && result.Skipped[0].Line != 16 {
		t.Errorf("first skipped line = %d, want 16", result.Skipped[0].Line)
	}
	if len(result.State.Appointments) != 2 {
		t.Fatalf("got %d appointments, want 2", len(result.State.Appointments))
	}

	a := result.State.Appointments[0]
	if a.ID != "ext-1" {
		t.Errorf("ID = %q", a.ID)
	}
	if a.Title != "Planning session with a rather long title that goes past the fold limit" {
		t.Errorf("Title = %q", a.Title)
	}
	if a.Description != "Bring notes, laptop\nand coffee" {
		t.Errorf("Description = %q", a.Description)
	}
	if !reflect.DeepEqual(a.Attendees, []string{"ann@example.com", "bob@example.com"}) {
		t.Errorf("Attendees = %q", a.Attendees)
	}
	if !reflect.DeepEqual(a.Tags, []string{"planning", "quarterly"}) {
		t.Errorf("Tags = %q", a.Tags)
	}
	if a.Recurrence != model.RecurrenceWeekly || a.RecurrenceCount == nil || *a.RecurrenceCount != 4 {
		t.Errorf("Recurrence = %q %v", a.Recurrence, a.RecurrenceCount)
	}
	if a.Category != model.DefaultCategory || a.CalendarID != model.DefaultCalendarID || a.Timezone != "UTC" {
		t.Errorf("defaults = %q %q %q", a.Category, a.CalendarID, a.Timezone)
	}

	local := result.State.Appointments[1]
	if local.Timezone != "Europe/Madrid" {
		t.Errorf("Timezone = %q", local.Timezone)
	}
	if !local.Date.Equal(time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("Date = %v", local.Date)
	}
	if local.Title != importTitle {
		t.Errorf("Title = %q", local.Title)
	}
}

func TestICSCRLFAndUnterminated(t *testing.T) {
	text := strings.ReplaceAll(foreignICS, "\n", "\r\n")
	if got := len(testCodec().FromICS(text).State.Appointments); got != 2 {
		t.Errorf("CRLF input: got %d appointments, want 2", got)
	}

	cut := "BEGIN:VCALENDAR\nBEGIN:VEVENT\nUID:x\nDTSTART:20260301T090000Z\n"
	result := testCodec().FromICS(cut)
	if len(result.State.Appointments) != 0 || len(result.Skipped) != 1 {
		t.Errorf("unterminated: %+v", result)
	}
}

func TestDescriptionPacking(t *testing.T) {
	a := model.Appointment{
		Description: "line one\nline two, with; punctuation \\ end",
		Tags:        []string{"a", "b"},
		Timezone:    "Asia/Tokyo",
		AllDay:      true,
	}
	fields, ok := unpackDescription(packDescription(a))
	if !ok {
		t.Fatal("packed description not recognized")
	}
	if fields[keyDetail] != a.Description {
		t.Errorf("DETAIL = %q, want %q", fields[keyDetail], a.Description)
	}
	if fields[keyTags] != "a,b" || fields[keyTimezone] != "Asia/Tokyo" || fields[keyAllDay] != "true" {
		t.Errorf("fields = %+v", fields)
	}

	if _, ok := unpackDescription("just some notes"); ok {
		t.Error("plain description should not be treated as packed")
	}
	if fields, ok := unpackDescription("Join the call\nURL:https://meet.example/abc\nBring notes"); ok || len(fields) != 0 {
		t.Errorf("description with a URL line treated as packed: %+v", fields)
	}
}

const foreignURLICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Other//Calendar//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:call-1\r\n" +
	"DTSTART:20260220T150000Z\r\n" +
	"SUMMARY:Weekly sync\r\n" +
	"DESCRIPTION:Join the call\\nURL:https://meet.example/abc\\nBring notes\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestICSForeignDescriptionKept(t *testing.T) {
	result := testCodec().FromICS(foreignURLICS)
	if len(result.State.Appointments) != 1 {
		t.Fatalf("got %d appointments, skipped %+v", len(result.State.Appointments), result.Skipped)
	}
	a := result.State.Appointments[0]
	want := "Join the call\nURL:https://meet.example/abc\nBring notes"
	if a.Description != want {
		t.Errorf("Description = %q, want %q", a.Description, want)
	}
	if a.URL != "" {
		t.Errorf("URL = %q, want none", a.URL)
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		filename, text string
		want           Format
	}{
		{"export.ics", "{}", FormatICS},
		{"export.CSV", "BEGIN:VCALENDAR", FormatCSV},
		{"export.json", "id,date,title", FormatJSON},
		{"upload", "  BEGIN:VCALENDAR\nVERSION:2.0", FormatICS},
		{"upload", "id,date,title\n", FormatCSV},
		{"upload", "date,title\n", FormatCSV},
		{"upload", `{"appointments": []}`, FormatJSON},
		{"", "", FormatJSON},
	}
	for _, tt := range tests {
		if got := Detect(tt.filename, tt.text); got != tt.want {
			t.Errorf("Detect(%q, %q) = %q, want %q", tt.filename, tt.text, got, tt.want)
		}
	}
}

func TestImportDispatch(t *testing.T) {
	c := testCodec()
	state := sampleState(t)

	for _, f := range []Format{FormatJSON, FormatCSV, FormatICS} {
		exp, err := c.Export(state, f)
		if err != nil {
			t.Fatalf("Export(%s): %v", f, err)
		}
		result, err := c.Import(exp.Filename, exp.Body)
		if err != nil {
			t.Fatalf("Import(%s): %v", f, err)
		}
		if len(result.State.Appointments) != len(state.Appointments) {
			t.Errorf("Import(%s) got %d appointments", f, len(result.State.Appointments))
		}
	}

	if _, err := c.Import("broken.json", "{"); !errors.Is(err, ErrParse) {
		t.Errorf("Import(broken json) error = %v", err)
	}
}

func TestExportMetadata(t *testing.T) {
	tests := []struct {
		format         Format
		filename, mime string
	}{
		{FormatJSON, "appointment-state.json", "application/json"},
		{FormatCSV, "appointment-state.csv", "text/csv"},
		{FormatICS, "appointment-state.ics", "text/calendar"},
	}
	for _, tt := range tests {
		exp, err := testCodec().Export(model.NewScheduleState(fixedNow), tt.format)
		if err != nil {
			t.Fatalf("Export(%s): %v", tt.format, err)
		}
		if exp.Filename != tt.filename || exp.MIMEType != tt.mime {
			t.Errorf("Export(%s) = %q %q", tt.format, exp.Filename, exp.MIMEType)
		}
	}
	if _, err := testCodec().Export(model.ScheduleState{}, Format("xml")); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Export(xml) error = %v", err)
	}
}

func TestPreferredFormat(t *testing.T) {
	tests := map[string]Format{
		"google":   FormatICS,
		"Outlook":  FormatICS,
		"ical":     FormatICS,
		"apple":    FormatICS,
		"download": FormatJSON,
		"":         FormatJSON,
	}
	for app, want := range tests {
		if got := PreferredFormat(app); got != want {
			t.Errorf("PreferredFormat(%q) = %q, want %q", app, got, want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"json": FormatJSON, ".CSV": FormatCSV, "ics": FormatICS, "ical": FormatICS} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("ParseFormat(xml) error = %v", err)
	}
}
