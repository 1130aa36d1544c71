// Package schedule runs the schedule operations shared by the HTTP API and
// agendactl on top of the state store.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/agenda/internal/appointment"
	"github.com/dukerupert/agenda/internal/interchange"
	"github.com/dukerupert/agenda/internal/model"
	"github.com/dukerupert/agenda/internal/store"
	"github.com/dukerupert/agenda/internal/tz"
)

// agendaDays is the length of the agenda listing when no end is given.
const agendaDays = 30

// ErrNotFound is returned when an appointment id is not stored.
var ErrNotFound = errors.New("appointment not found")

type Options struct {
	Clock       tz.Clock
	Zone        string
	DefaultView model.ViewMode
	DefaultSort model.SortMode
	NewID       func() string
}

type Service struct {
	states     *store.StateStore
	clock      tz.Clock
	zone       string
	view       model.ViewMode
	sort       model.SortMode
	normalizer appointment.Normalizer
	codec      interchange.Codec
}

func New(states *store.StateStore, opts Options) *Service {
	clock := opts.Clock
	if clock == nil {
		clock = tz.SystemClock{}
	}
	zone := tz.NormalizeTimeZone(opts.Zone, tz.NormalizeTimeZone(tz.SystemZone{}.Zone(), tz.UTC))
	return &Service{
		states: states,
		clock:  clock,
		zone:   zone,
		view:   model.ParseViewMode(string(opts.DefaultView)),
		sort:   model.ParseSortMode(string(opts.DefaultSort)),
		normalizer: appointment.Normalizer{
			Clock:       clock,
			DefaultZone: zone,
			NewID:       opts.NewID,
		},
		codec: interchange.Codec{Clock: clock, NewID: opts.NewID},
	}
}

// Zone returns the zone used when a request names none.
func (s *Service) Zone() string { return s.zone }

func (s *Service) Now() time.Time { return s.clock.Now() }

// State returns the stored schedule. Until the whole state has been saved
// once, the view settings are the configured defaults and the appointments
// are whatever was created one by one.
func (s *Service) State(ctx context.Context) (model.ScheduleState, error) {
	saved, err := s.states.Load(ctx)
	if err != nil {
		return model.ScheduleState{}, err
	}
	if saved != nil {
		return *saved, nil
	}
	state := model.NewScheduleState(s.Now())
	state.ViewMode = s.view
	state.SortMode = s.sort
	if state.Appointments, err = s.states.ListAppointments(ctx); err != nil {
		return model.ScheduleState{}, err
	}
	if state.Calendars, err = s.states.ListCalendars(ctx); err != nil {
		return model.ScheduleState{}, err
	}
	if len(state.Calendars) == 0 {
		state.Calendars = model.DefaultCalendars()
	}
	return state, nil
}

// Rejected is an appointment that did not survive normalization.
type Rejected struct {
	ID     string `json:"id,omitempty"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

func rejection(id string, err error) Rejected {
	r := Rejected{ID: id, Reason: err.Error()}
	var verr *appointment.ValidationError
	if errors.As(err, &verr) {
		r.Field = verr.Field
		r.Reason = verr.Message
	}
	return r
}

// normalizeAll re-runs every appointment through the normalizer.
func (s *Service) normalizeAll(list []model.Appointment) ([]model.Appointment, []Rejected) {
	out := make([]model.Appointment, 0, len(list))
	var rejected []Rejected
	for _, a := range list {
		n, err := s.normalizer.Normalize(appointment.FromAppointment(a))
		if err != nil {
			rejected = append(rejected, rejection(a.ID, err))
			continue
		}
		out = append(out, n)
	}
	return out, rejected
}

// Replace normalizes every appointment in state and stores the result in
// place of the current schedule. Nothing is stored if any appointment is
// invalid.
func (s *Service) Replace(ctx context.Context, state model.ScheduleState) (model.ScheduleState, error) {
	list := make([]model.Appointment, 0, len(state.Appointments))
	for _, a := range state.Appointments {
		n, err := s.normalizer.Normalize(appointment.FromAppointment(a))
		if err != nil {
			return model.ScheduleState{}, fmt.Errorf("appointment %q: %w", a.ID, err)
		}
		list = append(list, n)
	}
	state.Appointments = list
	state.ViewMode = model.ParseViewMode(string(state.ViewMode))
	state.SortMode = model.ParseSortMode(string(state.SortMode))
	if state.FocusDate.IsZero() {
		state.FocusDate = s.Now()
	}
	if err := s.states.Save(ctx, state); err != nil {
		return model.ScheduleState{}, err
	}
	return s.State(ctx)
}

func (s *Service) Appointments(ctx context.Context) ([]model.Appointment, error) {
	return s.states.ListAppointments(ctx)
}

// Appointment returns the stored appointment with id or ErrNotFound.
func (s *Service) Appointment(ctx context.Context, id string) (model.Appointment, error) {
	a, err := s.states.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if a == nil {
		return model.Appointment{}, ErrNotFound
	}
	return *a, nil
}

// Create normalizes raw and stores it. A raw id that is already stored
// replaces that appointment.
func (s *Service) Create(ctx context.Context, raw appointment.Raw) (model.Appointment, bool, error) {
	a, err := s.normalizer.Normalize(raw)
	if err != nil {
		return model.Appointment{}, false, err
	}
	created, err := s.states.PutAppointment(ctx, a)
	if err != nil {
		return model.Appointment{}, false, err
	}
	return a, created, nil
}

// Update replaces the stored appointment id with raw. The original
// creation time is kept unless raw carries one.
func (s *Service) Update(ctx context.Context, id string, raw appointment.Raw) (model.Appointment, error) {
	existing, err := s.Appointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	raw.ID = id
	if strings.TrimSpace(raw.CreatedAt) == "" {
		raw.CreatedAt = existing.CreatedAt.UTC().Format(model.InstantLayout)
	}
	a, err := s.normalizer.Normalize(raw)
	if err != nil {
		return model.Appointment{}, err
	}
	if _, err := s.states.PutAppointment(ctx, a); err != nil {
		return model.Appointment{}, err
	}
	return a, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	deleted, err := s.states.DeleteAppointment(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

func (s *Service) Calendars(ctx context.Context) ([]model.Calendar, error) {
	return s.states.ListCalendars(ctx)
}

func (s *Service) PutCalendar(ctx context.Context, c model.Calendar) error {
	return s.states.PutCalendar(ctx, c)
}

// SetView stores the view settings without touching appointments.
func (s *Service) SetView(ctx context.Context, view model.ViewMode, sortMode model.SortMode, focus time.Time) error {
	if focus.IsZero() {
		focus = s.Now()
	}
	return s.states.SetView(ctx, model.ParseViewMode(string(view)), model.ParseSortMode(string(sortMode)), focus)
}
