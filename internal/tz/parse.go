package tz

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var explicitZonePattern = regexp.MustCompile(`(?i)T[\d:.]+(Z|[+-]\d{2}(:?\d{2})?)$`)

var dateOnlyPattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}|\d{8}|\d{1,2}/\d{1,2}/\d{4})$`)

// IsDateOnly reports whether s names a whole day with no time of day.
func IsDateOnly(s string) bool {
	return dateOnlyPattern.MatchString(strings.TrimSpace(s))
}

// HasExplicitZone reports whether s carries its own UTC designator or offset.
func HasExplicitZone(s string) bool {
	return explicitZonePattern.MatchString(strings.TrimSpace(s))
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04-0700",
	"20060102T150405Z",
	time.RFC1123Z,
	time.RFC1123,
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"20060102T150405",
	"20060102",
}

// ParseInstant is the generic instant parser. Strings with their own zone
// are parsed as given; DD/MM/YYYY and zone-less layouts are read in loc.
// Returns false when nothing matches.
func ParseInstant(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	if strings.Contains(s, "/") {
		return parseDayMonthYear(s, loc)
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseDayMonthYear(s string, loc *time.Location) (time.Time, bool) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	var n [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v <= 0 {
			return time.Time{}, false
		}
		n[i] = v
	}
	day, month, year := n[0], n[1], n[2]
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t.UTC(), true
}
