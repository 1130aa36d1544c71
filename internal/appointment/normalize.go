// Package appointment turns raw input into validated appointments.
package appointment

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/agenda/internal/model"
	"github.com/dukerupert/agenda/internal/tz"
)

// Normalizer validates and canonicalizes raw appointment input. The zero
// value uses the system clock and zone.
type Normalizer struct {
	Clock tz.Clock
	Zones tz.ZoneProvider
	// DefaultZone is used when the input names no valid zone.
	DefaultZone string
	NewID       func() string
}

var std = Normalizer{}

// Normalize normalizes raw with the system clock and zone.
func Normalize(raw Raw) (model.Appointment, error) {
	return std.Normalize(raw)
}

func (n Normalizer) now() time.Time {
	if n.Clock == nil {
		return tz.SystemClock{}.Now()
	}
	return n.Clock.Now().UTC()
}

func (n Normalizer) fallbackZone() string {
	if tz.Valid(n.DefaultZone) {
		return n.DefaultZone
	}
	zones := n.Zones
	if zones == nil {
		zones = tz.SystemZone{}
	}
	return tz.NormalizeTimeZone(zones.Zone(), tz.UTC)
}

func (n Normalizer) newID() string {
	if n.NewID != nil {
		return n.NewID()
	}
	return uuid.NewString()
}

// Normalize returns the canonical appointment for raw. It fails only when
// the date does not parse or the end precedes the start; every other field
// falls back to its default.
func (n Normalizer) Normalize(raw Raw) (model.Appointment, error) {
	zone := tz.NormalizeTimeZone(raw.Timezone, n.fallbackZone())

	date, ok := ParseDate(raw.Date, zone)
	if !ok {
		return model.Appointment{}, invalid("date", ErrInvalidDate)
	}

	a := model.Appointment{
		ID:          strings.TrimSpace(raw.ID),
		Date:        date,
		Recurrence:  normalizeRecurrence(raw.Recurrence),
		Title:       strings.TrimSpace(raw.Title),
		Description: strings.TrimSpace(raw.Description),
		Location:    strings.TrimSpace(raw.Location),
		URL:         strings.TrimSpace(raw.URL),
		Status:      normalizeStatus(raw.Status),
		Attendees:   raw.Attendees.Clean(),
		Contact:     raw.Contact.Clean(),
		Category:    strings.TrimSpace(raw.Category),
		Tags:        raw.Tags.Clean(),
		Priority:    clampPriority(raw.Priority),
		AllDay:      bool(raw.AllDay),
		Timezone:    zone,
		CalendarID:  strings.TrimSpace(raw.CalendarID),
		CreatedAt:   createdAtOr(raw.CreatedAt, n.now()),
	}
	if a.ID == "" {
		a.ID = n.newID()
	}
	if a.Title == "" {
		a.Title = model.DefaultTitle
	}
	if a.Category == "" {
		a.Category = model.DefaultCategory
	}
	if a.CalendarID == "" {
		a.CalendarID = model.DefaultCalendarID
	}

	// An end date that does not parse is dropped rather than rejected.
	if end, ok := ParseDate(raw.EndDate, zone); ok {
		if end.Before(date) {
			return model.Appointment{}, invalid("endDate", ErrEndBeforeStart)
		}
		a.EndDate = &end
	}
	if raw.RecurrenceCount.Set && raw.RecurrenceCount.Value > 0 {
		c := raw.RecurrenceCount.Value
		a.RecurrenceCount = &c
	}
	if raw.ReminderMinutes.Set && raw.ReminderMinutes.Value >= 0 {
		m := raw.ReminderMinutes.Value
		a.ReminderMinutes = &m
	}

	if err := Check(a); err != nil {
		return model.Appointment{}, err
	}
	return a, nil
}

// ParseDate reads a date field in zone. Bare wall-clock strings are taken
// as local to zone; anything else goes through the generic parser with zone
// as its location.
func ParseDate(s, zone string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if tz.IsWallClock(s) && !tz.HasExplicitZone(s) {
		return tz.WallClockToInstant(s, zone)
	}
	return tz.ParseInstant(s, tz.Location(zone))
}

func normalizeRecurrence(s string) model.Recurrence {
	r := model.Recurrence(strings.ToLower(strings.TrimSpace(s)))
	if r.Valid() {
		return r
	}
	return model.RecurrenceNone
}

func normalizeStatus(s string) model.Status {
	st := model.Status(strings.ToLower(strings.TrimSpace(s)))
	if st.Valid() {
		return st
	}
	return model.StatusConfirmed
}

func clampPriority(p LooseInt) int {
	if !p.Set {
		return model.MinPriority
	}
	return min(max(p.Value, model.MinPriority), model.MaxPriority)
}
