package tz

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaxZoneCorrections bounds the offset-correction loop in WallClockToInstant.
// Zone offsets are piecewise constant, so one correction lands on the right
// offset and a second settles the case where the first guess crossed a DST
// transition.
const MaxZoneCorrections = 2

const (
	wallClockLayout = "2006-01-02T15:04"
	dateKeyLayout   = "2006-01-02"
)

var wallClockPattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})(?:[T ](\d{2}):(\d{2})(?::(\d{2})(?:\.\d{1,9})?)?)?$`)

// IsWallClock reports whether s is a bare YYYY-MM-DD[THH:mm[:ss]] string with
// no zone designator.
func IsWallClock(s string) bool {
	return wallClockPattern.MatchString(strings.TrimSpace(s))
}

type wallFields struct {
	year, month, day, hour, minute, second int
}

func parseWallClock(s string) (wallFields, bool) {
	m := wallClockPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return wallFields{}, false
	}
	atoi := func(v string) int {
		if v == "" {
			return 0
		}
		n, _ := strconv.Atoi(v)
		return n
	}
	f := wallFields{
		year: atoi(m[1]), month: atoi(m[2]), day: atoi(m[3]),
		hour: atoi(m[4]), minute: atoi(m[5]), second: atoi(m[6]),
	}
	// time.Date normalizes out-of-range fields; reject anything it had to move.
	t := f.utc()
	if t.Year() != f.year || int(t.Month()) != f.month || t.Day() != f.day ||
		t.Hour() != f.hour || t.Minute() != f.minute || t.Second() != f.second {
		return wallFields{}, false
	}
	return f, true
}

func (f wallFields) utc() time.Time {
	return time.Date(f.year, time.Month(f.month), f.day, f.hour, f.minute, f.second, 0, time.UTC)
}

func wallOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// WallClockToInstant returns the instant whose wall clock in zone matches
// wall. The fields are first read as UTC, then the guess is shifted by the
// difference between the wanted and the observed wall clock, at most
// MaxZoneCorrections times. Wall times inside a DST gap resolve to wherever
// the last correction lands. Returns false when wall does not parse.
func WallClockToInstant(wall, zone string) (time.Time, bool) {
	f, ok := parseWallClock(wall)
	if !ok {
		return time.Time{}, false
	}
	loc := Location(zone)
	target := f.utc()
	guess := target
	for i := 0; i < MaxZoneCorrections; i++ {
		delta := target.Sub(wallOf(guess.In(loc)))
		if delta == 0 {
			break
		}
		guess = guess.Add(delta)
	}
	return guess.UTC(), true
}

// InstantToWallClock formats t as YYYY-MM-DDTHH:mm in zone.
func InstantToWallClock(t time.Time, zone string) string {
	return t.In(Location(zone)).Format(wallClockLayout)
}

// DateKey returns the YYYY-MM-DD day of t in zone.
func DateKey(t time.Time, zone string) string {
	return t.In(Location(zone)).Format(dateKeyLayout)
}
