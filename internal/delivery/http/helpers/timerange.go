package helpers

import (
	"fmt"
	"net/http"
	"time"

	"roombooking/internal/interval"
)

// ParseInstant parses an RFC 3339 timestamp. Instants without an offset are
// refused because they are ambiguous.
func ParseInstant(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%s is required", field)
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an RFC 3339 timestamp", field)
	}
	return t.UTC(), nil
}

// ParseHorizon reads the optional from/to query parameters. With neither set
// it returns the zero interval so the service applies its default horizon;
// with only from set the horizon spans defaultSpan.
func ParseHorizon(r *http.Request, defaultSpan time.Duration) (interval.Interval, error) {
	q := r.URL.Query()
	fromStr, toStr := q.Get("from"), q.Get("to")
	if fromStr == "" && toStr == "" {
		return interval.Interval{}, nil
	}
	from, err := ParseInstant("from", fromStr)
	if err != nil {
		return interval.Interval{}, err
	}
	if toStr == "" {
		return interval.New(from, from.Add(defaultSpan)), nil
	}
	to, err := ParseInstant("to", toStr)
	if err != nil {
		return interval.Interval{}, err
	}
	return interval.New(from, to), nil
}
