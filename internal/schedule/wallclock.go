package schedule

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// EndOfDay is "24:00", the midnight closing a day. It is only valid as the
// end of a DailyRange.
const EndOfDay WallClock = minutesPerDay

// WallClock is a timezone-naive time of day with minute resolution, stored as
// minutes since local midnight.
type WallClock int

// ParseWallClock parses "HH:MM", including "24:00". A trailing ":00" seconds
// part is tolerated so values read back from TIME columns round-trip.
func ParseWallClock(s string) (WallClock, error) {
	s = strings.TrimSpace(s)
	if s == "24:00" || s == "24:00:00" {
		return EndOfDay, nil
	}
	layout := "15:04"
	if strings.Count(s, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid wall clock %q: expected HH:MM", s)
	}
	if t.Second() != 0 {
		return 0, fmt.Errorf("invalid wall clock %q: seconds are not supported", s)
	}
	return WallClock(t.Hour()*60 + t.Minute()), nil
}

// MustWallClock is ParseWallClock for constants; it panics on bad input.
func MustWallClock(s string) WallClock {
	w, err := ParseWallClock(s)
	if err != nil {
		panic(err)
	}
	return w
}

// Valid reports whether w is a time of day in [00:00, 24:00).
func (w WallClock) Valid() bool {
	return w >= 0 && w < minutesPerDay
}

// ValidEnd reports whether w can close a range: (00:00, 24:00].
func (w WallClock) ValidEnd() bool {
	return w > 0 && w <= EndOfDay
}

func (w WallClock) Hour() int   { return int(w) / 60 }
func (w WallClock) Minute() int { return int(w) % 60 }

// Offset returns the duration from local midnight.
func (w WallClock) Offset() time.Duration {
	return time.Duration(w) * time.Minute
}

func (w WallClock) String() string {
	return fmt.Sprintf("%02d:%02d", w.Hour(), w.Minute())
}

func (w WallClock) MarshalText() ([]byte, error) {
	if !w.Valid() && w != EndOfDay {
		return nil, fmt.Errorf("wall clock out of range: %d", int(w))
	}
	return []byte(w.String()), nil
}

func (w *WallClock) UnmarshalText(text []byte) error {
	parsed, err := ParseWallClock(string(text))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// Scan implements sql.Scanner for TIME and text columns.
func (w *WallClock) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return w.UnmarshalText([]byte(v))
	case []byte:
		return w.UnmarshalText(v)
	case time.Time:
		// lib/pq decodes TIME '24:00:00' as midnight of the following day.
		if v.Day() > 1 && v.Hour() == 0 && v.Minute() == 0 {
			*w = EndOfDay
			return nil
		}
		*w = WallClock(v.Hour()*60 + v.Minute())
		return nil
	default:
		return fmt.Errorf("cannot scan %T into WallClock", src)
	}
}

// Value implements driver.Valuer.
func (w WallClock) Value() (driver.Value, error) {
	return w.String(), nil
}

// DailyRange is a wall-clock range [Start, End) within one day.
type DailyRange struct {
	Start WallClock `json:"start"`
	End   WallClock `json:"end"`
}

// Validate checks both bounds are inside the day and Start < End. End may be
// 24:00.
func (r DailyRange) Validate() error {
	if !r.Start.Valid() || !r.End.ValidEnd() {
		return fmt.Errorf("time of day out of range")
	}
	if r.Start >= r.End {
		return fmt.Errorf("start %s must be before end %s", r.Start, r.End)
	}
	return nil
}

// Overlaps reports whether two ranges on the same day share a minute.
func (r DailyRange) Overlaps(other DailyRange) bool {
	return r.Start < other.End && other.Start < r.End
}
