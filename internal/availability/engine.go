// Package availability computes the free time of a room from a read-only
// snapshot of its lessons, reservations and booking window.
//
// The result is advisory. The authoritative overlap check happens when a
// reservation is committed.
package availability

import (
	"roombooking/internal/domain"
	"roombooking/internal/interval"
	"roombooking/internal/schedule"
)

// Occupied returns the merged cover of everything that occupies the room
// during span: projected lessons and reservations recorded as active.
func Occupied(lessons []*domain.Lesson, reservations []*domain.Reservation, span interval.Interval, zone schedule.Zone) []interval.Interval {
	var occupied []interval.Interval
	for _, o := range zone.ProjectSpan(span, domain.WeeklyOf(lessons)) {
		occupied = append(occupied, o.Interval)
	}
	for _, r := range reservations {
		if r.Status != domain.StatusActive {
			continue
		}
		if iv := r.Interval(); interval.Overlaps(iv, span) {
			occupied = append(occupied, iv)
		}
	}
	return interval.Merge(occupied)
}

// FreeSlots returns the ordered, non-touching free intervals of room within
// horizon. A blocked room has no free time.
func FreeSlots(room *domain.Room, lessons []*domain.Lesson, reservations []*domain.Reservation, horizon interval.Interval, zone schedule.Zone) []interval.Interval {
	if room == nil || room.Blocked || horizon.Empty() {
		return nil
	}
	free := interval.Subtract(horizon, Occupied(lessons, reservations, horizon, zone))
	if room.BookingWindow == nil {
		return free
	}

	// A 00:00-24:00 window touches the next day's, so merge before clipping.
	windows := interval.Merge(zone.DailyIntervals(horizon, *room.BookingWindow))
	return interval.Intersect(free, windows)
}
