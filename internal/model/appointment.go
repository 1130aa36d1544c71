package model

import "time"

// InstantLayout is the text form used for instants outside of JSON
// (CSV cells, query echoes). Always formatted in UTC.
const InstantLayout = "2006-01-02T15:04:05.000Z07:00"

type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
	RecurrenceYearly  Recurrence = "yearly"
)

// Valid reports whether r is one of the known recurrence values.
func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly:
		return true
	}
	return false
}

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusTentative Status = "tentative"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusConfirmed, StatusTentative, StatusCancelled:
		return true
	}
	return false
}

// Defaults applied by the normalizer and the interchange codec.
const (
	DefaultTitle      = "Untitled"
	DefaultCategory   = "general"
	DefaultCalendarID = "default"
	MinPriority       = 1
	MaxPriority       = 10
)

// Appointment is a normalized schedule entry. Date and EndDate are UTC.
type Appointment struct {
	ID              string     `json:"id" validate:"required"`
	Date            time.Time  `json:"date" validate:"required"`
	EndDate         *time.Time `json:"endDate"`
	Recurrence      Recurrence `json:"recurrence" validate:"recurrence"`
	RecurrenceCount *int       `json:"recurrenceCount" validate:"omitempty,min=1"`
	Title           string     `json:"title" validate:"required"`
	Description     string     `json:"description"`
	Location        string     `json:"location"`
	URL             string     `json:"url"`
	Status          Status     `json:"status" validate:"status"`
	Attendees       []string   `json:"attendees"`
	Contact         []string   `json:"contact"`
	Category        string     `json:"category" validate:"required"`
	Tags            []string   `json:"tags"`
	Priority        int        `json:"priority" validate:"min=1,max=10"`
	AllDay          bool       `json:"allDay"`
	Timezone        string     `json:"timezone" validate:"required"`
	CalendarID      string     `json:"calendarId" validate:"required"`
	ReminderMinutes *int       `json:"reminderMinutes" validate:"omitempty,min=0"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Occurrence is an appointment projected onto one concrete instant of a
// query window. Occurrences are never persisted.
type Occurrence struct {
	Appointment
	OccurrenceDate time.Time `json:"occurrenceDate"`
	SourceID       string    `json:"sourceId"`
}

// When returns the occurrence instant, falling back to the appointment date
// for values that were never expanded.
func (o Occurrence) When() time.Time {
	if o.OccurrenceDate.IsZero() {
		return o.Date
	}
	return o.OccurrenceDate
}

// Duration returns EndDate-Date, or zero when the appointment has no end.
func (a Appointment) Duration() time.Duration {
	if a.EndDate == nil {
		return 0
	}
	return a.EndDate.Sub(a.Date)
}
