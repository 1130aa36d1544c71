package recurrence

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/teambition/rrule-go"

	"github.com/dukerupert/agenda/internal/model"
)

var freqToRecurrence = map[rrule.Frequency]model.Recurrence{
	rrule.DAILY:   model.RecurrenceDaily,
	rrule.WEEKLY:  model.RecurrenceWeekly,
	rrule.MONTHLY: model.RecurrenceMonthly,
	rrule.YEARLY:  model.RecurrenceYearly,
}

var recurrenceToFreq = map[model.Recurrence]rrule.Frequency{
	model.RecurrenceDaily:   rrule.DAILY,
	model.RecurrenceWeekly:  rrule.WEEKLY,
	model.RecurrenceMonthly: rrule.MONTHLY,
	model.RecurrenceYearly:  rrule.YEARLY,
}

var (
	freqPattern  = regexp.MustCompile(`FREQ=([A-Z]+)`)
	countPattern = regexp.MustCompile(`COUNT=(\d+)`)
)

// FromRRule maps an RRULE value like "FREQ=WEEKLY;COUNT=5" onto a
// recurrence and an optional count. Parts the model cannot express
// (INTERVAL, BYDAY, UNTIL) are ignored. Anything without a supported FREQ
// is RecurrenceNone.
func FromRRule(s string) (model.Recurrence, *int) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "RRULE:")
	if s == "" {
		return model.RecurrenceNone, nil
	}

	opt, err := rrule.StrToROption(s)
	if err != nil {
		// Foreign calendars add properties rrule-go rejects; keep what we can.
		return fromRRuleFallback(s)
	}
	r, ok := freqToRecurrence[opt.Freq]
	if !ok {
		return model.RecurrenceNone, nil
	}
	return r, positive(opt.Count)
}

func fromRRuleFallback(s string) (model.Recurrence, *int) {
	m := freqPattern.FindStringSubmatch(s)
	if m == nil {
		return model.RecurrenceNone, nil
	}
	f, err := rrule.StrToFreq(m[1])
	if err != nil {
		return model.RecurrenceNone, nil
	}
	r, ok := freqToRecurrence[f]
	if !ok {
		return model.RecurrenceNone, nil
	}
	if c := countPattern.FindStringSubmatch(s); c != nil {
		n, _ := strconv.Atoi(c[1])
		return r, positive(n)
	}
	return r, nil
}

func positive(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}

// ToRRule serializes a recurrence as an RRULE value. It returns "" for
// RecurrenceNone and unknown values.
func ToRRule(r model.Recurrence, count *int) string {
	freq, ok := recurrenceToFreq[r]
	if !ok {
		return ""
	}
	opt := rrule.ROption{Freq: freq}
	if count != nil && *count > 0 {
		opt.Count = *count
	}
	return opt.RRuleString()
}

// Describe returns a human-readable description of the recurrence.
func Describe(r model.Recurrence, count *int) string {
	var s string
	switch r {
	case model.RecurrenceDaily:
		s = "Repeats daily"
	case model.RecurrenceWeekly:
		s = "Repeats weekly"
	case model.RecurrenceMonthly:
		s = "Repeats monthly"
	case model.RecurrenceYearly:
		s = "Repeats yearly"
	default:
		return "Does not repeat"
	}
	if count != nil && *count > 0 {
		if *count == 1 {
			return s + ", once"
		}
		return fmt.Sprintf("%s, %d times", s, *count)
	}
	return s
}
