// Package schedule projects weekly wall-clock timetables onto absolute time.
//
// All projection goes through a Zone, a fixed UTC offset chosen once for the
// deployment. Daylight saving is not modelled: every local day is exactly 24h.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"roombooking/internal/interval"
)

// Weekly is a recurring weekly occupation, e.g. a lesson.
type Weekly struct {
	ID    string
	Day   Day
	Range DailyRange
}

// Occurrence is a Weekly projected onto a concrete date.
type Occurrence struct {
	ID string
	interval.Interval
}

// Zone anchors wall-clock values to absolute instants.
type Zone struct {
	loc *time.Location
}

// UTC is the zero-offset zone.
var UTC = NewZone(0)

// NewZone returns a Zone with the given fixed offset east of UTC.
func NewZone(offset time.Duration) Zone {
	secs := int(offset / time.Second)
	name := "UTC"
	if secs != 0 {
		abs, sign := secs, '+'
		if secs < 0 {
			abs, sign = -secs, '-'
		}
		name = fmt.Sprintf("UTC%c%02d:%02d", sign, abs/3600, (abs%3600)/60)
	}
	return Zone{loc: time.FixedZone(name, secs)}
}

// ParseOffset parses "+03:00", "-05:30", "+0300", "Z" or "UTC".
func ParseOffset(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "", "Z", "UTC":
		return 0, nil
	}
	layout := "-07:00"
	if !strings.Contains(s, ":") {
		layout = "-0700"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid utc offset %q", s)
	}
	_, secs := t.Zone()
	return time.Duration(secs) * time.Second, nil
}

// Location returns the fixed location backing the zone.
func (z Zone) Location() *time.Location {
	if z.loc == nil {
		return time.UTC
	}
	return z.loc
}

// Midnight returns local midnight of the calendar date carried by date.
// Only the year, month and day fields of date are used.
func (z Zone) Midnight(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, z.Location())
}

// LocalDate returns local midnight of the local day containing instant t.
func (z Zone) LocalDate(t time.Time) time.Time {
	return z.Midnight(t.In(z.Location()))
}

// At returns the absolute instant (in UTC) of wall-clock w on date. EndOfDay
// maps to the next local midnight.
func (z Zone) At(date time.Time, w WallClock) time.Time {
	return z.Midnight(date).Add(w.Offset()).UTC()
}

// DayInterval returns the absolute [00:00, next 00:00) interval of date.
func (z Zone) DayInterval(date time.Time) interval.Interval {
	start := z.Midnight(date)
	return interval.New(start.UTC(), start.AddDate(0, 0, 1).UTC())
}

// DatesSpanning returns the local dates (as local midnights) whose day
// interval shares at least one instant with span.
func (z Zone) DatesSpanning(span interval.Interval) []time.Time {
	if span.Empty() {
		return nil
	}
	var dates []time.Time
	for day := z.LocalDate(span.Start); day.Before(span.End); day = day.AddDate(0, 0, 1) {
		dates = append(dates, day)
	}
	return dates
}

// Project returns the occurrences of weekly on date, ordered as given.
// Entries whose Day differs from the date's weekday contribute nothing.
func (z Zone) Project(date time.Time, weekly []Weekly) []Occurrence {
	midnight := z.Midnight(date)
	var out []Occurrence
	for _, w := range weekly {
		if w.Day.Weekday() != midnight.Weekday() {
			continue
		}
		out = append(out, Occurrence{
			ID:       w.ID,
			Interval: interval.New(z.At(midnight, w.Range.Start), z.At(midnight, w.Range.End)),
		})
	}
	return out
}

// ProjectSpan projects weekly onto every local date spanned by span.
// Occurrences are not clipped to span.
func (z Zone) ProjectSpan(span interval.Interval, weekly []Weekly) []Occurrence {
	var out []Occurrence
	for _, date := range z.DatesSpanning(span) {
		out = append(out, z.Project(date, weekly)...)
	}
	return out
}

// DailyIntervals returns r anchored on every local date spanned by span.
func (z Zone) DailyIntervals(span interval.Interval, r DailyRange) []interval.Interval {
	var out []interval.Interval
	for _, date := range z.DatesSpanning(span) {
		out = append(out, interval.New(z.At(date, r.Start), z.At(date, r.End)))
	}
	return out
}
