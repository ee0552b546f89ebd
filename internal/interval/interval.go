// Package interval implements half-open time ranges and the set operations the
// availability and booking code is built on.
package interval

import (
	"sort"
	"time"
)

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New returns the interval [start, end).
func New(start, end time.Time) Interval {
	return Interval{Start: start, End: end}
}

// Empty reports whether the interval contains no instant.
func (i Interval) Empty() bool {
	return !i.Start.Before(i.End)
}

// Duration returns End - Start, or zero for an empty interval.
func (i Interval) Duration() time.Duration {
	if i.Empty() {
		return 0
	}
	return i.End.Sub(i.Start)
}

// Contains reports whether other lies entirely inside i.
func (i Interval) Contains(other Interval) bool {
	return !other.Start.Before(i.Start) && !other.End.After(i.End)
}

// Overlaps reports whether a and b share at least one instant.
// Touching endpoints do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Merge returns the minimal start-ordered cover of list: overlapping or
// touching intervals are coalesced and empty ones dropped. The input is not modified.
func Merge(list []Interval) []Interval {
	sorted := make([]Interval, 0, len(list))
	for _, iv := range list {
		if !iv.Empty() {
			sorted = append(sorted, iv)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	out := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// Subtract returns the ordered gaps of universe not covered by occupied.
// Zero-length gaps are dropped.
func Subtract(universe Interval, occupied []Interval) []Interval {
	if universe.Empty() {
		return nil
	}
	var gaps []Interval
	cursor := universe.Start
	for _, busy := range Merge(occupied) {
		if !busy.End.After(cursor) {
			continue
		}
		if !busy.Start.Before(universe.End) {
			break
		}
		if busy.Start.After(cursor) {
			gaps = append(gaps, Interval{Start: cursor, End: busy.Start})
		}
		cursor = busy.End
		if !cursor.Before(universe.End) {
			return gaps
		}
	}
	if cursor.Before(universe.End) {
		gaps = append(gaps, Interval{Start: cursor, End: universe.End})
	}
	return gaps
}

// Clip intersects a with bound. The boolean is false when they are disjoint.
func Clip(a, bound Interval) (Interval, bool) {
	start := a.Start
	if bound.Start.After(start) {
		start = bound.Start
	}
	end := a.End
	if bound.End.Before(end) {
		end = bound.End
	}
	if !start.Before(end) {
		return Interval{}, false
	}
	return Interval{Start: start, End: end}, true
}

// Intersect returns the pieces shared by a and b. Both must be start-ordered
// and pairwise disjoint, as Merge and Subtract produce; the walk is linear.
func Intersect(a, b []Interval) []Interval {
	var out []Interval
	for i, j := 0, 0; i < len(a) && j < len(b); {
		if c, ok := Clip(a[i], b[j]); ok {
			out = append(out, c)
		}
		// Advance whichever ends first; it cannot meet anything further on.
		if a[i].End.Before(b[j].End) {
			i++
		} else {
			j++
		}
	}
	return out
}
