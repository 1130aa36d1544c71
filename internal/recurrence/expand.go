// Package recurrence expands recurring appointments into the concrete
// occurrences visible in a window, and orders and groups the results.
package recurrence

import (
	"time"

	"github.com/dukerupert/agenda/internal/model"
	"github.com/dukerupert/agenda/internal/tz"
)

// MaxExpansion caps the iterations spent on a single appointment, so an
// unbounded daily series against a window decades wide stays cheap.
// Hitting the cap truncates silently.
const MaxExpansion = 1000

// Expand returns the occurrences of appointments inside the closed window
// [start, end], in input order per appointment. Appointments without a
// date are skipped.
func Expand(appointments []model.Appointment, start, end time.Time) []model.Occurrence {
	results := []model.Occurrence{}
	for _, a := range appointments {
		if a.Date.IsZero() {
			continue
		}
		results = expandOne(results, a, start, end)
	}
	return results
}

func expandOne(results []model.Occurrence, a model.Appointment, start, end time.Time) []model.Occurrence {
	it := newIterator(a)
	occ := a.Date
	emitted, iterations := 0, 0

	for !occ.After(end) && iterations < MaxExpansion {
		iterations++
		if a.RecurrenceCount != nil && emitted >= *a.RecurrenceCount {
			break
		}
		if !occ.Before(start) {
			results = append(results, model.Occurrence{
				Appointment:    a,
				OccurrenceDate: occ.UTC(),
				SourceID:       a.ID,
			})
			emitted++
		}
		if a.Recurrence == model.RecurrenceNone || a.Recurrence == "" {
			break
		}
		next, ok := it.next()
		if !ok {
			// Unknown recurrence values end the series.
			break
		}
		occ = next
	}
	return results
}

// iterator steps an appointment's series on the wall-clock fields of its
// own zone. Each step is computed from the first occurrence, not from the
// previous one, so a clamped month does not pull later months back.
type iterator struct {
	recurrence model.Recurrence
	loc        *time.Location
	base       time.Time
	n          int
}

func newIterator(a model.Appointment) *iterator {
	loc := tz.Location(a.Timezone)
	return &iterator{
		recurrence: a.Recurrence,
		loc:        loc,
		base:       a.Date.In(loc),
	}
}

func (it *iterator) next() (time.Time, bool) {
	it.n++
	t, ok := it.at(it.n)
	if !ok {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func (it *iterator) at(n int) (time.Time, bool) {
	y, m, d := it.base.Date()
	hh, mm, ss := it.base.Clock()
	ns := it.base.Nanosecond()

	switch it.recurrence {
	case model.RecurrenceDaily:
		return time.Date(y, m, d+n, hh, mm, ss, ns, it.loc), true
	case model.RecurrenceWeekly:
		return time.Date(y, m, d+7*n, hh, mm, ss, ns, it.loc), true
	case model.RecurrenceMonthly:
		ty, tm, _ := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC).Date()
		return time.Date(ty, tm, clampDay(ty, tm, d), hh, mm, ss, ns, it.loc), true
	case model.RecurrenceYearly:
		return time.Date(y+n, m, clampDay(y+n, m, d), hh, mm, ss, ns, it.loc), true
	}
	return time.Time{}, false
}

// clampDay returns day, or the last day of the month when the month is
// shorter.
func clampDay(year int, month time.Month, day int) int {
	return min(day, tz.DaysIn(year, month))
}
