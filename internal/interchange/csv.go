package interchange

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/agenda/internal/appointment"
	"github.com/dukerupert/agenda/internal/model"
	"github.com/dukerupert/agenda/internal/tz"
)

var csvColumns = []string{
	"id", "date", "endDate", "timezone", "allDay", "recurrence", "calendarId",
	"reminderMinutes", "recurrenceCount", "title", "description", "location",
	"url", "status", "contact", "attendees", "category", "tags", "priority",
	"createdAt",
}

const listSeparator = "|"

// ToCSV renders one row per appointment under a fixed header.
func (c Codec) ToCSV(state model.ScheduleState) string {
	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write(csvColumns)
	for _, a := range state.Appointments {
		_ = w.Write(csvRow(a))
	}
	w.Flush()
	return b.String()
}

func csvRow(a model.Appointment) []string {
	return []string{
		a.ID,
		formatInstant(a.Date),
		formatInstantPtr(a.EndDate),
		orDefault(a.Timezone, tz.UTC),
		strconv.FormatBool(a.AllDay),
		orDefault(string(a.Recurrence), string(model.RecurrenceNone)),
		orDefault(a.CalendarID, model.DefaultCalendarID),
		formatIntPtr(a.ReminderMinutes),
		formatIntPtr(a.RecurrenceCount),
		a.Title,
		a.Description,
		a.Location,
		a.URL,
		orDefault(string(a.Status), string(model.StatusConfirmed)),
		joinList(a.Contact),
		joinList(a.Attendees),
		orDefault(a.Category, model.DefaultCategory),
		joinList(a.Tags),
		strconv.Itoa(max(a.Priority, model.MinPriority)),
		formatInstant(a.CreatedAt),
	}
}

func formatInstant(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(model.InstantLayout)
}

func formatInstantPtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatInstant(*t)
}

func formatIntPtr(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func joinList(items []string) string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return strings.Join(out, listSeparator)
}

// FromCSV reads rows by header name, so columns may be reordered or
// missing. Rows whose field count differs from the header, or whose date
// does not parse, are skipped.
func (c Codec) FromCSV(text string) ParseResult {
	result := ParseResult{State: c.emptyState()}

	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(text, "\ufeff")))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var header map[string]int
	var width int
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				result.skip(pe.StartLine, "malformed row: %v", pe.Err)
				continue
			}
			result.skip(0, "read csv: %v", err)
			break
		}
		line, _ := r.FieldPos(0)

		if header == nil {
			header = make(map[string]int, len(record))
			for i, name := range record {
				header[strings.TrimSpace(name)] = i
			}
			width = len(record)
			continue
		}
		if len(record) != width {
			result.skip(line, "expected %d fields, got %d", width, len(record))
			continue
		}

		a, ok := c.csvAppointment(func(col string) string {
			if i, ok := header[col]; ok {
				return strings.TrimSpace(record[i])
			}
			return ""
		})
		if !ok {
			result.skip(line, "invalid date")
			continue
		}
		result.State.Appointments = append(result.State.Appointments, a)
	}
	return result
}

func (c Codec) csvAppointment(get func(string) string) (model.Appointment, bool) {
	zone := orDefault(get("timezone"), tz.UTC)
	date, ok := appointment.ParseDate(get("date"), zone)
	if !ok {
		return model.Appointment{}, false
	}

	a := model.Appointment{
		ID:          get("id"),
		Date:        date,
		Recurrence:  model.Recurrence(strings.ToLower(orDefault(get("recurrence"), string(model.RecurrenceNone)))),
		Title:       orDefault(get("title"), importTitle),
		Description: get("description"),
		Location:    get("location"),
		URL:         get("url"),
		Status:      model.Status(strings.ToLower(orDefault(get("status"), string(model.StatusConfirmed)))),
		Contact:     splitTrim(get("contact"), listSeparator),
		Attendees:   splitTrim(get("attendees"), listSeparator),
		Category:    orDefault(get("category"), model.DefaultCategory),
		Tags:        splitTrim(get("tags"), listSeparator),
		Priority:    model.MinPriority,
		AllDay:      bool(appointment.ParseLooseBool(get("allDay"))),
		Timezone:    zone,
		CalendarID:  orDefault(get("calendarId"), model.DefaultCalendarID),
		CreatedAt:   c.now(),
	}
	if a.ID == "" {
		a.ID = c.newID()
	}
	if end, ok := appointment.ParseDate(get("endDate"), zone); ok {
		a.EndDate = &end
	}
	if p := appointment.ParseLooseInt(get("priority")); p.Set && p.Value != 0 {
		a.Priority = p.Value
	}
	if n := appointment.ParseLooseInt(get("reminderMinutes")); n.Set {
		a.ReminderMinutes = &n.Value
	}
	if n := appointment.ParseLooseInt(get("recurrenceCount")); n.Set {
		a.RecurrenceCount = &n.Value
	}
	if created, err := time.Parse(time.RFC3339Nano, get("createdAt")); err == nil {
		a.CreatedAt = created.UTC()
	}
	return a, true
}
