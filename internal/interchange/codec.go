// Package interchange converts schedule state to and from the JSON, CSV and
// ICS files other calendar applications exchange.
//
// JSON is strict: a malformed document fails the whole import. CSV and ICS
// are best-effort: records that cannot be read are skipped and reported in
// ParseResult.Skipped while the rest import. Imported appointments carry the
// values found in the file; callers run them through the appointment
// normalizer before storing them.
package interchange

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/agenda/internal/model"
	"github.com/dukerupert/agenda/internal/tz"
)

var (
	ErrParse         = errors.New("parse schedule")
	ErrUnknownFormat = errors.New("unknown format")
)

// Title given to imported records that have none.
const importTitle = "Untitled Appointment"

// Format names an interchange encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatICS  Format = "ics"
)

// ParseFormat maps a name or file extension onto a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))); f {
	case FormatJSON, FormatCSV, FormatICS:
		return f, nil
	case "ical", "ifb", "icalendar":
		return FormatICS, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// MIMEType returns the content type served for f.
func (f Format) MIMEType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatICS:
		return "text/calendar"
	}
	return "application/json"
}

// Filename returns the download name for f.
func (f Format) Filename() string {
	return "appointment-state." + string(f)
}

// PreferredFormat returns the format a target application imports best.
func PreferredFormat(targetApp string) Format {
	switch strings.ToLower(strings.TrimSpace(targetApp)) {
	case "google", "outlook", "ical", "apple":
		return FormatICS
	}
	return FormatJSON
}

// Detect picks the format of an uploaded file: the extension wins, then
// the content is sniffed.
func Detect(filename, text string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".ics", ".ical", ".ifb":
		return FormatICS
	case ".csv":
		return FormatCSV
	case ".json":
		return FormatJSON
	}
	trimmed := strings.TrimSpace(strings.TrimPrefix(text, "\ufeff"))
	switch {
	case strings.Contains(strings.ToUpper(trimmed), "BEGIN:VCALENDAR"):
		return FormatICS
	case strings.HasPrefix(trimmed, "id,date,"), strings.HasPrefix(trimmed, "date,"):
		return FormatCSV
	}
	return FormatJSON
}

// Skipped records one input record that could not be read. Line is the
// 1-based line the record starts on.
type Skipped struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// ParseResult is the outcome of a best-effort parse.
type ParseResult struct {
	State   model.ScheduleState
	Skipped []Skipped
}

func (r *ParseResult) skip(line int, format string, args ...any) {
	r.Skipped = append(r.Skipped, Skipped{Line: line, Reason: fmt.Sprintf(format, args...)})
}

// Export is a rendered file ready for download.
type Export struct {
	Body     string
	Filename string
	MIMEType string
}

// Codec encodes and decodes schedule state. The zero value uses the
// system clock and random UUIDs.
type Codec struct {
	Clock tz.Clock
	// NewID supplies identifiers for imported records that have none.
	NewID     func() string
	ProductID string
}

func (c Codec) now() time.Time {
	if c.Clock == nil {
		return tz.SystemClock{}.Now()
	}
	return c.Clock.Now().UTC()
}

func (c Codec) newID() string {
	if c.NewID != nil {
		return c.NewID()
	}
	return uuid.NewString()
}

func (c Codec) productID() string {
	if c.ProductID != "" {
		return c.ProductID
	}
	return "agenda"
}

func (c Codec) emptyState() model.ScheduleState {
	return model.NewScheduleState(c.now())
}

// Import parses text in the format Detect picks for it.
func (c Codec) Import(filename, text string) (ParseResult, error) {
	switch Detect(filename, text) {
	case FormatICS:
		return c.FromICS(text), nil
	case FormatCSV:
		return c.FromCSV(text), nil
	}
	state, err := c.FromJSON(text)
	if err != nil {
		return ParseResult{}, err
	}
	return ParseResult{State: state}, nil
}

// Export renders state as format.
func (c Codec) Export(state model.ScheduleState, format Format) (Export, error) {
	var body string
	switch format {
	case FormatJSON:
		var err error
		if body, err = c.ToJSON(state); err != nil {
			return Export{}, err
		}
	case FormatCSV:
		body = c.ToCSV(state)
	case FormatICS:
		body = c.ToICS(state)
	default:
		return Export{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return Export{Body: body, Filename: format.Filename(), MIMEType: format.MIMEType()}, nil
}

var std = Codec{}

func ToJSON(state model.ScheduleState) (string, error) { return std.ToJSON(state) }
func FromJSON(text string) (model.ScheduleState, error) { return std.FromJSON(text) }
func ToCSV(state model.ScheduleState) string { return std.ToCSV(state) }
func FromCSV(text string) ParseResult { return std.FromCSV(text) }
func ToICS(state model.ScheduleState) string { return std.ToICS(state) }
func FromICS(text string) ParseResult { return std.FromICS(text) }
func Import(filename, text string) (ParseResult, error) { return std.Import(filename, text) }
func ExportAs(state model.ScheduleState, f Format) (Export, error) { return std.Export(state, f) }

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

func clampPriority(p int) int {
	return min(max(p, model.MinPriority), model.MaxPriority)
}

func splitTrim(s, sep string) []string {
	out := []string{}
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var errNoEvent = errors.New("no VEVENT found")
