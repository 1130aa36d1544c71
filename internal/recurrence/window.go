package recurrence

import (
	"cmp"
	"slices"
	"time"

	"github.com/dukerupert/agenda/internal/model"
	"github.com/dukerupert/agenda/internal/tz"
)

// RangeForView returns the closed window shown by mode around focus. The
// window is laid out on focus's own location. Unknown modes and the agenda
// view use the month window.
func RangeForView(focus time.Time, mode model.ViewMode) (time.Time, time.Time) {
	switch mode {
	case model.ViewDay:
		return tz.StartOfDay(focus), tz.EndOfDay(focus)
	case model.ViewWeek:
		return tz.StartOfWeek(focus), tz.EndOfWeek(focus)
	case model.ViewYear:
		return tz.StartOfYear(focus), tz.EndOfYear(focus)
	default:
		return tz.StartOfMonth(focus), tz.EndOfMonth(focus)
	}
}

// SortOccurrences returns a sorted copy of items. SortDateTime orders by
// occurrence instant; anything else orders by descending priority with
// earlier occurrences first among equals. The sort is stable.
func SortOccurrences(items []model.Occurrence, mode model.SortMode) []model.Occurrence {
	out := slices.Clone(items)
	if out == nil {
		out = []model.Occurrence{}
	}
	byTime := func(a, b model.Occurrence) int {
		return a.When().Compare(b.When())
	}
	if mode == model.SortDateTime {
		slices.SortStableFunc(out, byTime)
		return out
	}
	slices.SortStableFunc(out, func(a, b model.Occurrence) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return byTime(a, b)
	})
	return out
}

// DayBucket holds the occurrences that fall on one calendar day.
type DayBucket struct {
	Date        string             `json:"date"`
	Occurrences []model.Occurrence `json:"occurrences"`
}

// GroupByDay buckets items by their calendar day in zone, keeping the input
// order inside each bucket. Buckets are returned in ascending day order.
func GroupByDay(items []model.Occurrence, zone string) []DayBucket {
	index := map[string]int{}
	buckets := []DayBucket{}
	for _, item := range items {
		key := tz.DateKey(item.When(), zone)
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, DayBucket{Date: key})
		}
		buckets[i].Occurrences = append(buckets[i].Occurrences, item)
	}
	slices.SortStableFunc(buckets, func(a, b DayBucket) int {
		return cmp.Compare(a.Date, b.Date)
	})
	return buckets
}
