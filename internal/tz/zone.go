// Package tz converts between wall-clock strings and absolute instants for
// arbitrary IANA zones without relying on the host's local zone.
package tz

import (
	"os"
	"strings"
	"time"
)

// UTC is the last-resort zone name.
const UTC = "UTC"

// Valid reports whether name loads as an IANA zone. The empty string and
// "Local" are rejected because they silently mean the host zone.
func Valid(name string) bool {
	_, ok := load(name)
	return ok
}

func load(name string) (*time.Location, bool) {
	name = strings.TrimSpace(name)
	if name == "" || name == "Local" {
		return nil, false
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, false
	}
	return loc, true
}

// windowsZones maps the Windows zone names some calendar exports use onto
// their IANA equivalents.
var windowsZones = map[string]string{
	"Pacific Standard Time":        "America/Los_Angeles",
	"Mountain Standard Time":       "America/Denver",
	"Central Standard Time":        "America/Chicago",
	"Eastern Standard Time":        "America/New_York",
	"Atlantic Standard Time":       "America/Halifax",
	"Alaskan Standard Time":        "America/Anchorage",
	"Hawaiian Standard Time":       "Pacific/Honolulu",
	"GMT Standard Time":            "Europe/London",
	"Romance Standard Time":        "Europe/Paris",
	"Central Europe Standard Time": "Europe/Budapest",
	"W. Europe Standard Time":      "Europe/Berlin",
	"China Standard Time":          "Asia/Shanghai",
	"Tokyo Standard Time":          "Asia/Tokyo",
	"India Standard Time":          "Asia/Kolkata",
	"AUS Eastern Standard Time":    "Australia/Sydney",
}

// NormalizeTimeZone returns candidate if it is a valid zone, else fallback if
// valid, else "UTC". Windows zone names resolve to their IANA equivalent.
func NormalizeTimeZone(candidate, fallback string) string {
	for _, name := range []string{candidate, fallback} {
		name = strings.TrimSpace(name)
		if iana, ok := windowsZones[name]; ok {
			name = iana
		}
		if Valid(name) {
			return name
		}
	}
	return UTC
}

// Location loads name, falling back to UTC.
func Location(name string) *time.Location {
	if loc, ok := load(NormalizeTimeZone(name, UTC)); ok {
		return loc
	}
	return time.UTC
}

var commonZones = []string{
	"UTC",
	"Africa/Cairo", "Africa/Johannesburg", "Africa/Lagos", "Africa/Nairobi",
	"America/Anchorage", "America/Argentina/Buenos_Aires", "America/Bogota", "America/Chicago",
	"America/Denver", "America/Halifax", "America/Lima", "America/Los_Angeles", "America/Mexico_City",
	"America/New_York", "America/Phoenix", "America/Santiago", "America/Sao_Paulo", "America/Toronto",
	"Asia/Bangkok", "Asia/Dubai", "Asia/Hong_Kong", "Asia/Jakarta", "Asia/Jerusalem", "Asia/Kolkata",
	"Asia/Manila", "Asia/Seoul", "Asia/Shanghai", "Asia/Singapore", "Asia/Tokyo",
	"Atlantic/Reykjavik",
	"Australia/Adelaide", "Australia/Brisbane", "Australia/Perth", "Australia/Sydney",
	"Europe/Amsterdam", "Europe/Athens", "Europe/Berlin", "Europe/Dublin", "Europe/Istanbul",
	"Europe/Lisbon", "Europe/London", "Europe/Madrid", "Europe/Moscow", "Europe/Paris",
	"Europe/Rome", "Europe/Stockholm", "Europe/Warsaw", "Europe/Zurich",
	"Pacific/Auckland", "Pacific/Honolulu",
}

// Zones lists the common zones offered in zone pickers, filtered to those
// the host can load.
func Zones() []string {
	zones := make([]string, 0, len(commonZones))
	for _, z := range commonZones {
		if Valid(z) {
			zones = append(zones, z)
		}
	}
	return zones
}

// ZoneProvider supplies the "current zone" used when neither the record nor
// the caller names one.
type ZoneProvider interface {
	Zone() string
}

// SystemZone reports the host zone from $TZ or time.Local.
type SystemZone struct{}

func (SystemZone) Zone() string {
	if z := os.Getenv("TZ"); Valid(z) {
		return z
	}
	if name := time.Local.String(); Valid(name) {
		return name
	}
	return UTC
}

// FixedZone always reports the same zone name.
type FixedZone string

func (z FixedZone) Zone() string { return string(z) }
