package schedule

import (
	"context"
	"time"

	"github.com/dukerupert/agenda/internal/model"
	"github.com/dukerupert/agenda/internal/recurrence"
	"github.com/dukerupert/agenda/internal/tz"
)

// Query selects the occurrences shown by one calendar view.
type Query struct {
	Focus time.Time
	View  model.ViewMode
	Sort  model.SortMode
	Zone  string
}

// Window is the expanded content of a view.
type Window struct {
	Start       time.Time          `json:"start"`
	End         time.Time          `json:"end"`
	View        model.ViewMode     `json:"view"`
	Sort        model.SortMode     `json:"sort"`
	Zone        string             `json:"zone"`
	Occurrences []model.Occurrence `json:"occurrences"`
}

// ResolveZone returns zone if it names a usable zone, else the service zone.
func (s *Service) ResolveZone(zone string) string {
	return tz.NormalizeTimeZone(zone, s.zone)
}

// Occurrences expands the stored appointments over the window q describes.
// The window is laid out in q.Zone so day and month edges follow the
// viewer's calendar.
func (s *Service) Occurrences(ctx context.Context, q Query) (Window, error) {
	zone := s.ResolveZone(q.Zone)
	focus := q.Focus
	if focus.IsZero() {
		focus = s.Now()
	}
	view := model.ParseViewMode(string(q.View))
	sortMode := model.ParseSortMode(string(q.Sort))

	start, end := recurrence.RangeForView(focus.In(tz.Location(zone)), view)
	appointments, err := s.states.ListAppointments(ctx)
	if err != nil {
		return Window{}, err
	}
	items := recurrence.SortOccurrences(recurrence.Expand(appointments, start, end), sortMode)
	return Window{
		Start:       start.UTC(),
		End:         end.UTC(),
		View:        view,
		Sort:        sortMode,
		Zone:        zone,
		Occurrences: items,
	}, nil
}

// AgendaRange returns the default agenda window in zone: today through the
// end of the day agendaDays later.
func (s *Service) AgendaRange(zone string) (time.Time, time.Time) {
	today := tz.StartOfDay(s.Now().In(tz.Location(s.ResolveZone(zone))))
	return today, tz.EndOfDay(today.AddDate(0, 0, agendaDays))
}

// Agenda expands [from, to] in chronological order and groups the result by
// calendar day in zone.
func (s *Service) Agenda(ctx context.Context, from, to time.Time, zone string) ([]recurrence.DayBucket, error) {
	appointments, err := s.states.ListAppointments(ctx)
	if err != nil {
		return nil, err
	}
	items := recurrence.SortOccurrences(recurrence.Expand(appointments, from, to), model.SortDateTime)
	return recurrence.GroupByDay(items, s.ResolveZone(zone)), nil
}
