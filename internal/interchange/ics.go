package interchange

import (
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/dukerupert/agenda/internal/appointment"
	"github.com/dukerupert/agenda/internal/model"
	"github.com/dukerupert/agenda/internal/recurrence"
	"github.com/dukerupert/agenda/internal/tz"
)

const (
	propTimezone ical.ComponentProperty = "X-AGENDA-TIMEZONE"
	propAllDay   ical.ComponentProperty = "X-AGENDA-ALLDAY"
)

// Keys of the pseudo-fields packed into DESCRIPTION for values ICS has no
// property for.
const (
	keyDetail          = "DETAIL"
	keyCategory        = "CATEGORY"
	keyTags            = "TAGS"
	keyContact         = "CONTACT"
	keyTimezone        = "TIMEZONE"
	keyAllDay          = "ALLDAY"
	keyCalendarID      = "CALENDARID"
	keyReminderMinutes = "REMINDERMINUTES"
	keyLocation        = "LOCATION"
	keyURL             = "URL"
	keyStatus          = "STATUS"
	keyAttendees       = "ATTENDEES"
)

var packedKeys = []string{
	keyDetail, keyCategory, keyTags, keyContact, keyTimezone, keyAllDay,
	keyCalendarID, keyReminderMinutes, keyLocation, keyURL, keyStatus, keyAttendees,
}

// ToICS renders state as a VCALENDAR with one VEVENT per appointment.
func (c Codec) ToICS(state model.ScheduleState) string {
	cal := ical.NewCalendarFor(c.productID())
	cal.SetCalscale("GREGORIAN")
	stamp := c.now()

	for _, a := range state.Appointments {
		if a.Date.IsZero() {
			continue
		}
		id := a.ID
		if id == "" {
			id = c.newID()
		}
		ev := cal.AddEvent(id)
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(a.Date)
		if a.EndDate != nil {
			ev.SetEndAt(*a.EndDate)
		}
		ev.SetProperty(propTimezone, orDefault(a.Timezone, tz.UTC))
		ev.SetProperty(propAllDay, strings.ToUpper(strconv.FormatBool(a.AllDay)))
		ev.SetSummary(orDefault(a.Title, importTitle))
		ev.SetDescription(packDescription(a))
		if a.Location != "" {
			ev.SetLocation(a.Location)
		}
		if a.URL != "" {
			ev.SetURL(a.URL)
		}
		ev.SetStatus(ical.ObjectStatus(strings.ToUpper(orDefault(string(a.Status), string(model.StatusConfirmed)))))
		for _, attendee := range a.Attendees {
			ev.AddAttendee(attendee)
		}
		for _, tag := range a.Tags {
			ev.AddCategory(tag)
		}
		ev.SetPriority(clampPriority(a.Priority))
		if rule := recurrence.ToRRule(a.Recurrence, a.RecurrenceCount); rule != "" {
			ev.AddRrule(rule)
		}
	}
	return cal.Serialize(ical.WithNewLineWindows)
}

// packDescription writes one KEY:value line per pseudo-field. Each value
// is text-escaped here so it stays on its line; the ICS writer escapes the
// whole block again.
func packDescription(a model.Appointment) string {
	reminder := ""
	if a.ReminderMinutes != nil {
		reminder = strconv.Itoa(*a.ReminderMinutes)
	}
	values := map[string]string{
		keyDetail:          a.Description,
		keyCategory:        orDefault(a.Category, model.DefaultCategory),
		keyTags:            strings.Join(a.Tags, ","),
		keyContact:         strings.Join(a.Contact, ","),
		keyTimezone:        orDefault(a.Timezone, tz.UTC),
		keyAllDay:          strconv.FormatBool(a.AllDay),
		keyCalendarID:      orDefault(a.CalendarID, model.DefaultCalendarID),
		keyReminderMinutes: reminder,
		keyLocation:        a.Location,
		keyURL:             a.URL,
		keyStatus:          orDefault(string(a.Status), string(model.StatusConfirmed)),
		keyAttendees:       strings.Join(a.Attendees, ","),
	}
	lines := make([]string, 0, len(packedKeys))
	for _, key := range packedKeys {
		lines = append(lines, key+":"+ical.ToText(values[key]))
	}
	return strings.Join(lines, "\n")
}

// unpackDescription reads the pseudo-fields back. ok is false unless the
// description has a DETAIL line, which packDescription always writes;
// text from other calendars that merely contains a line like "URL:..." is
// left alone.
func unpackDescription(s string) (map[string]string, bool) {
	fields := map[string]string{}
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, "\r")
		for _, key := range packedKeys {
			if value, found := strings.CutPrefix(line, key+":"); found {
				fields[key] = ical.FromText(strings.TrimSpace(value))
				break
			}
		}
	}
	if _, ok := fields[keyDetail]; !ok {
		return map[string]string{}, false
	}
	return fields, true
}

// eventBlock is one VEVENT's raw lines and the line it starts on.
type eventBlock struct {
	line  int
	lines []string
	ended bool
}

func splitEvents(text string) []eventBlock {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var blocks []eventBlock
	var cur *eventBlock
	for i, line := range strings.Split(text, "\n") {
		folded := strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")
		token := strings.ToUpper(strings.TrimSpace(line))
		if !folded && token == "BEGIN:VEVENT" {
			if cur != nil {
				blocks = append(blocks, *cur)
			}
			cur = &eventBlock{line: i + 1}
		}
		if cur == nil {
			continue
		}
		if !folded && token == "" {
			continue
		}
		cur.lines = append(cur.lines, line)
		if !folded && token == "END:VEVENT" {
			cur.ended = true
			blocks = append(blocks, *cur)
			cur = nil
		}
	}
	if cur != nil {
		blocks = append(blocks, *cur)
	}
	return blocks
}

// parseEvent runs one VEVENT through the ICS parser on its own, so a broken
// event does not take the rest of the file with it.
func parseEvent(b eventBlock) (*ical.VEvent, error) {
	var sb strings.Builder
	sb.WriteString("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//agenda//import\r\n")
	for _, line := range b.lines {
		sb.WriteString(line)
		sb.WriteString("\r\n")
	}
	sb.WriteString("END:VCALENDAR\r\n")

	cal, err := ical.ParseCalendar(strings.NewReader(sb.String()))
	if err != nil {
		return nil, err
	}
	events := cal.Events()
	if len(events) == 0 {
		return nil, errNoEvent
	}
	return events[0], nil
}

// FromICS reads every VEVENT it can. Events that fail to parse, or that
// lack a usable DTSTART, are skipped.
func (c Codec) FromICS(text string) ParseResult {
	result := ParseResult{State: c.emptyState()}
	for _, block := range splitEvents(text) {
		if !block.ended {
			result.skip(block.line, "unterminated VEVENT")
			continue
		}
		ev, err := parseEvent(block)
		if err != nil {
			result.skip(block.line, "malformed VEVENT: %v", err)
			continue
		}
		a, reason := c.icsAppointment(ev)
		if reason != "" {
			result.skip(block.line, "%s", reason)
			continue
		}
		result.State.Appointments = append(result.State.Appointments, a)
	}
	return result
}

func propValue(ev *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ev.GetProperty(p); prop != nil {
		return strings.TrimSpace(prop.Value)
	}
	return ""
}

func param(prop *ical.IANAProperty, name ical.Parameter) string {
	if vs := prop.ICalParameters[string(name)]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// eventTime reads a DTSTART or DTEND. Floating values are taken in the
// property's TZID, else in zone.
func eventTime(prop *ical.IANAProperty, zone string) (time.Time, bool) {
	loc := tz.Location(zone)
	if tzid := param(prop, ical.ParameterTzid); tzid != "" {
		loc = tz.Location(tz.NormalizeTimeZone(tzid, zone))
	}
	return tz.ParseInstant(prop.Value, loc)
}

func (c Codec) icsAppointment(ev *ical.VEvent) (model.Appointment, string) {
	start := ev.GetProperty(ical.ComponentPropertyDtStart)
	if start == nil {
		return model.Appointment{}, "missing DTSTART"
	}

	fields, packed := unpackDescription(propValue(ev, ical.ComponentPropertyDescription))
	zone := orDefault(propValue(ev, propTimezone), orDefault(fields[keyTimezone], param(start, ical.ParameterTzid)))
	zone = orDefault(zone, tz.UTC)

	date, ok := eventTime(start, zone)
	if !ok {
		return model.Appointment{}, "invalid DTSTART"
	}

	a := model.Appointment{
		ID:         propValue(ev, ical.ComponentPropertyUniqueId),
		Date:       date,
		Title:      orDefault(propValue(ev, ical.ComponentPropertySummary), importTitle),
		Location:   orDefault(propValue(ev, ical.ComponentPropertyLocation), fields[keyLocation]),
		URL:        orDefault(propValue(ev, ical.ComponentPropertyUrl), fields[keyURL]),
		Status:     model.Status(strings.ToLower(orDefault(propValue(ev, ical.ComponentPropertyStatus), orDefault(fields[keyStatus], string(model.StatusConfirmed))))),
		Contact:    splitTrim(fields[keyContact], ","),
		Category:   orDefault(fields[keyCategory], model.DefaultCategory),
		Priority:   model.MinPriority,
		Timezone:   zone,
		CalendarID: orDefault(fields[keyCalendarID], model.DefaultCalendarID),
		CreatedAt:  c.now(),
	}
	if a.ID == "" {
		a.ID = c.newID()
	}
	if packed {
		a.Description = fields[keyDetail]
	} else {
		a.Description = propValue(ev, ical.ComponentPropertyDescription)
	}

	if end := ev.GetProperty(ical.ComponentPropertyDtEnd); end != nil {
		if t, ok := eventTime(end, zone); ok {
			a.EndDate = &t
		}
	}

	a.AllDay = strings.EqualFold(propValue(ev, propAllDay), "true") ||
		strings.EqualFold(fields[keyAllDay], "true") ||
		strings.EqualFold(param(start, ical.ParameterValue), string(ical.ValueDataTypeDate))

	a.Recurrence, a.RecurrenceCount = recurrence.FromRRule(propValue(ev, ical.ComponentPropertyRrule))

	for _, attendee := range ev.Attendees() {
		email := strings.TrimSpace(attendee.Value)
		if len(email) >= len("mailto:") && strings.EqualFold(email[:len("mailto:")], "mailto:") {
			email = email[len("mailto:"):]
		}
		if email != "" {
			a.Attendees = append(a.Attendees, email)
		}
	}
	if len(a.Attendees) == 0 {
		a.Attendees = splitTrim(fields[keyAttendees], ",")
	}

	for _, cat := range ev.GetProperties(ical.ComponentPropertyCategories) {
		a.Tags = append(a.Tags, splitTrim(cat.Value, ",")...)
	}
	if len(a.Tags) == 0 {
		a.Tags = splitTrim(fields[keyTags], ",")
	}

	if p := appointment.ParseLooseInt(propValue(ev, ical.ComponentPropertyPriority)); p.Set && p.Value != 0 {
		a.Priority = p.Value
	}
	if n := appointment.ParseLooseInt(fields[keyReminderMinutes]); n.Set && n.Value >= 0 {
		a.ReminderMinutes = &n.Value
	}
	if created := ev.GetProperty(ical.ComponentPropertyCreated); created != nil {
		if t, ok := tz.ParseInstant(created.Value, time.UTC); ok {
			a.CreatedAt = t
		}
	}
	return a, ""
}
