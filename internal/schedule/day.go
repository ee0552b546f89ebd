package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Day is a day of the week. Its numeric value matches time.Weekday (Sunday = 0).
type Day time.Weekday

var dayNames = [...]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// ParseDay accepts a lowercase or capitalised English day name.
func ParseDay(s string) (Day, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range dayNames {
		if n == name {
			return Day(i), nil
		}
	}
	return 0, fmt.Errorf("invalid day of week %q", s)
}

// Valid reports whether d is Sunday..Saturday.
func (d Day) Valid() bool {
	return d >= 0 && int(d) < len(dayNames)
}

func (d Day) Weekday() time.Weekday {
	return time.Weekday(d)
}

func (d Day) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Day(%d)", int(d))
	}
	return dayNames[d]
}

func (d Day) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid day of week %d", int(d))
	}
	return []byte(d.String()), nil
}

func (d *Day) UnmarshalText(text []byte) error {
	parsed, err := ParseDay(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
