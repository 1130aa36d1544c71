package model

import "time"

type ViewMode string

const (
	ViewDay    ViewMode = "day"
	ViewWeek   ViewMode = "week"
	ViewMonth  ViewMode = "month"
	ViewYear   ViewMode = "year"
	ViewAgenda ViewMode = "agenda"
)

// ParseViewMode returns the view mode named by s, or ViewMonth.
func ParseViewMode(s string) ViewMode {
	switch v := ViewMode(s); v {
	case ViewDay, ViewWeek, ViewMonth, ViewYear, ViewAgenda:
		return v
	}
	return ViewMonth
}

type SortMode string

const (
	SortPriority SortMode = "priority"
	SortDateTime SortMode = "datetime"
)

// ParseSortMode returns the sort mode named by s, or SortPriority.
func ParseSortMode(s string) SortMode {
	if SortMode(s) == SortDateTime {
		return SortDateTime
	}
	return SortPriority
}

type Calendar struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// DefaultCalendars returns the calendars every new schedule starts with.
func DefaultCalendars() []Calendar {
	return []Calendar{
		{ID: "default", Name: "Default", Color: "#2563eb"},
		{ID: "work", Name: "Work", Color: "#7c3aed"},
		{ID: "health", Name: "Health", Color: "#059669"},
	}
}

// ScheduleState is the whole persisted schedule: appointments plus the view
// settings the UI restores on load.
type ScheduleState struct {
	Appointments []Appointment `json:"appointments"`
	ViewMode     ViewMode      `json:"viewMode"`
	SortMode     SortMode      `json:"sortMode"`
	FocusDate    time.Time     `json:"focusDate"`
	Calendars    []Calendar    `json:"calendars,omitempty"`
}

// NewScheduleState returns an empty month/priority state focused on focus.
func NewScheduleState(focus time.Time) ScheduleState {
	return ScheduleState{
		Appointments: []Appointment{},
		ViewMode:     ViewMonth,
		SortMode:     SortPriority,
		FocusDate:    focus.UTC(),
	}
}
