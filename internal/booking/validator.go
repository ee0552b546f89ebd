// Package booking holds the pure booking rules. Validate covers every rule
// that can be decided from a snapshot; the overlap check against other active
// reservations is applied by the store inside the commit, using FirstOverlap.
package booking

import (
	"time"

	"roombooking/internal/domain"
	"roombooking/internal/interval"
	"roombooking/internal/schedule"
)

// DefaultMinLead is the minimum time between submission and a reservation's start.
const DefaultMinLead = 60 * time.Second

// Policy holds the configurable booking limits.
type Policy struct {
	MinLead time.Duration
	// MaxDuration caps a reservation's length; zero disables the cap.
	MaxDuration time.Duration
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{MinLead: DefaultMinLead}
}

// Validate applies the snapshot rules to span in order and returns the first
// failure as a *domain.Rejection.
func Validate(room *domain.Room, lessons []*domain.Lesson, span interval.Interval, now time.Time, policy Policy, zone schedule.Zone) error {
	if !span.Start.Before(span.End) {
		return domain.Reject(domain.KindMalformedRange, "end must be after start")
	}
	if !onMinute(span.Start) || !onMinute(span.End) {
		return domain.Reject(domain.KindMalformedRange, "start and end must fall on whole minutes")
	}
	if policy.MaxDuration > 0 && span.Duration() > policy.MaxDuration {
		return domain.Reject(domain.KindMalformedRange, "reservation may last at most %s", policy.MaxDuration)
	}

	if earliest := now.Add(policy.MinLead); span.Start.Before(earliest) {
		return domain.Reject(domain.KindPastStart, "start must be at least %s in the future", policy.MinLead)
	}

	if room.Blocked {
		return domain.Reject(domain.KindRoomBlocked, "room %s is blocked", room.Name)
	}

	if w := room.BookingWindow; w != nil {
		open := zone.DailyIntervals(span, *w)
		if len(interval.Subtract(span, open)) > 0 {
			return domain.Reject(domain.KindOutsideBookingWindow, "room %s can only be booked between %s and %s", room.Name, w.Start, w.End)
		}
	}

	for _, o := range zone.ProjectSpan(span, domain.WeeklyOf(lessons)) {
		if interval.Overlaps(o.Interval, span) {
			return domain.Conflict(domain.KindLessonConflict, o.ID, "overlaps a lesson from %s to %s",
				o.Start.In(zone.Location()).Format("15:04"), o.End.In(zone.Location()).Format("15:04"))
		}
	}
	return nil
}

// FirstOverlap returns the first reservation with recorded status active,
// other than excludeID, that overlaps span.
func FirstOverlap(existing []*domain.Reservation, span interval.Interval, excludeID string) *domain.Reservation {
	for _, r := range existing {
		if r.Status != domain.StatusActive || (excludeID != "" && r.ID == excludeID) {
			continue
		}
		if interval.Overlaps(r.Interval(), span) {
			return r
		}
	}
	return nil
}

// ConflictWith builds the ReservationConflict rejection naming r.
func ConflictWith(r *domain.Reservation) *domain.Rejection {
	return domain.Conflict(domain.KindReservationConflict, r.ID, "overlaps an existing reservation from %s to %s",
		r.Start.UTC().Format(time.RFC3339), r.End.UTC().Format(time.RFC3339))
}

func onMinute(t time.Time) bool {
	return t.Second() == 0 && t.Nanosecond() == 0
}
