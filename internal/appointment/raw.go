package appointment

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/agenda/internal/model"
)

// Raw is an appointment as it arrives from a form, an API body or an
// import, before any validation. Loose fields accept the shapes browsers
// and foreign files actually send.
type Raw struct {
	ID              string     `json:"id"`
	Date            string     `json:"date"`
	EndDate         string     `json:"endDate"`
	Recurrence      string     `json:"recurrence"`
	RecurrenceCount LooseInt   `json:"recurrenceCount"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Location        string     `json:"location"`
	URL             string     `json:"url"`
	Status          string     `json:"status"`
	Attendees       StringList `json:"attendees"`
	Contact         StringList `json:"contact"`
	Category        string     `json:"category"`
	Tags            StringList `json:"tags"`
	Priority        LooseInt   `json:"priority"`
	AllDay          LooseBool  `json:"allDay"`
	Timezone        string     `json:"timezone"`
	CalendarID      string     `json:"calendarId"`
	ReminderMinutes LooseInt   `json:"reminderMinutes"`
	CreatedAt       string     `json:"createdAt"`
}

// FromAppointment turns a stored or imported appointment back into raw
// input so it can be normalized again.
func FromAppointment(a model.Appointment) Raw {
	r := Raw{
		ID:          a.ID,
		Recurrence:  string(a.Recurrence),
		Title:       a.Title,
		Description: a.Description,
		Location:    a.Location,
		URL:         a.URL,
		Status:      string(a.Status),
		Attendees:   StringList(a.Attendees),
		Contact:     StringList(a.Contact),
		Category:    a.Category,
		Tags:        StringList(a.Tags),
		Priority:    Int(a.Priority),
		AllDay:      LooseBool(a.AllDay),
		Timezone:    a.Timezone,
		CalendarID:  a.CalendarID,
	}
	if !a.Date.IsZero() {
		r.Date = a.Date.UTC().Format(model.InstantLayout)
	}
	if a.EndDate != nil && !a.EndDate.IsZero() {
		r.EndDate = a.EndDate.UTC().Format(model.InstantLayout)
	}
	if a.RecurrenceCount != nil {
		r.RecurrenceCount = Int(*a.RecurrenceCount)
	}
	if a.ReminderMinutes != nil {
		r.ReminderMinutes = Int(*a.ReminderMinutes)
	}
	if !a.CreatedAt.IsZero() {
		r.CreatedAt = a.CreatedAt.UTC().Format(model.InstantLayout)
	}
	return r
}

// StringList is a list field that also accepts a comma-delimited string.
type StringList []string

// SplitList splits s on commas, trimming items and dropping empties.
func SplitList(s string) StringList {
	return splitOn(s, ",")
}

func splitOn(s, sep string) StringList {
	out := StringList{}
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = SplitList(s)
		return nil
	}
	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		*l = nil
		return nil
	}
	out := StringList{}
	for _, item := range items {
		var v string
		switch x := item.(type) {
		case string:
			v = x
		case float64:
			v = strconv.FormatFloat(x, 'f', -1, 64)
		case bool:
			v = strconv.FormatBool(x)
		}
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	*l = out
	return nil
}

// Clean returns the trimmed, non-empty items in order.
func (l StringList) Clean() []string {
	out := []string{}
	for _, item := range l {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// LooseInt is an integer field that accepts a number or a numeric string.
// Anything else leaves it unset.
type LooseInt struct {
	Value int
	Set   bool
}

// Int returns a LooseInt holding n.
func Int(n int) LooseInt { return LooseInt{Value: n, Set: true} }

// ParseLooseInt reads s the way LooseInt reads a JSON string.
func ParseLooseInt(s string) LooseInt {
	s = strings.TrimSpace(s)
	if s == "" {
		return LooseInt{}
	}
	if n, err := strconv.Atoi(s); err == nil {
		return Int(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromFloat(f)
	}
	return LooseInt{}
}

func fromFloat(f float64) LooseInt {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return LooseInt{}
	}
	return Int(int(math.Round(f)))
}

func (n *LooseInt) UnmarshalJSON(data []byte) error {
	*n = LooseInt{}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	switch x := v.(type) {
	case float64:
		*n = fromFloat(x)
	case string:
		*n = ParseLooseInt(x)
	}
	return nil
}

func (n LooseInt) MarshalJSON() ([]byte, error) {
	if !n.Set {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(n.Value)), nil
}

// LooseBool accepts true, "true", "1", "yes" and 1 as true.
type LooseBool bool

// ParseLooseBool reads s the way LooseBool reads a JSON string.
func ParseLooseBool(s string) LooseBool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

func (b *LooseBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		*b = false
		return nil
	}
	switch x := v.(type) {
	case bool:
		*b = LooseBool(x)
	case float64:
		*b = x == 1
	case string:
		*b = ParseLooseBool(x)
	default:
		*b = false
	}
	return nil
}

// createdAtOr parses s as an instant, returning fallback when it does not.
func createdAtOr(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s)); err == nil {
		return t.UTC()
	}
	return fallback
}
