package booking

import (
	"testing"
	"time"

	"roombooking/internal/domain"
	"roombooking/internal/interval"
	"roombooking/internal/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2025-03-03 is a Monday.
var monday = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func at(day, h, m int) time.Time {
	return monday.AddDate(0, 0, day).Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func span(day, h1, m1, h2, m2 int) interval.Interval {
	return interval.New(at(day, h1, m1), at(day, h2, m2))
}

func TestValidate(t *testing.T) {
	now := at(0, 7, 0)
	openRoom := &domain.Room{Name: "A101"}
	windowRoom := &domain.Room{Name: "B202", BookingWindow: &schedule.DailyRange{Start: schedule.MustWallClock("08:00"), End: schedule.MustWallClock("20:00")}}
	blockedRoom := &domain.Room{Name: "C303", Blocked: true}
	eveningRoom := &domain.Room{Name: "D404", BookingWindow: &schedule.DailyRange{Start: schedule.MustWallClock("18:00"), End: schedule.EndOfDay}}
	lessons := []*domain.Lesson{
		{ID: "maths", Day: schedule.Day(time.Monday), Start: schedule.MustWallClock("10:00"), End: schedule.MustWallClock("11:30"), Subject: "Maths"},
	}

	tests := []struct {
		name     string
		room     *domain.Room
		span     interval.Interval
		policy   Policy
		wantKind domain.RejectionKind
		wantID   string
	}{
		{name: "valid", room: openRoom, span: span(0, 9, 0, 10, 0)},
		{name: "end before start", room: openRoom, span: interval.New(at(0, 10, 0), at(0, 9, 0)), wantKind: domain.KindMalformedRange},
		{name: "zero length", room: openRoom, span: span(0, 9, 0, 9, 0), wantKind: domain.KindMalformedRange},
		{name: "sub-minute precision", room: openRoom, span: interval.New(at(0, 9, 0).Add(30*time.Second), at(0, 10, 0)), wantKind: domain.KindMalformedRange},
		{name: "longer than max duration", room: openRoom, span: span(0, 9, 0, 13, 0), policy: Policy{MaxDuration: 2 * time.Hour}, wantKind: domain.KindMalformedRange},
		{name: "in the past", room: openRoom, span: span(0, 6, 0, 8, 0), wantKind: domain.KindPastStart},
		{name: "inside min lead", room: openRoom, span: interval.New(now, at(0, 8, 0)), policy: DefaultPolicy(), wantKind: domain.KindPastStart},
		{name: "exactly at min lead", room: openRoom, span: interval.New(now.Add(time.Minute), at(0, 8, 0)), policy: DefaultPolicy()},
		{name: "blocked room", room: blockedRoom, span: span(0, 9, 0, 10, 0), wantKind: domain.KindRoomBlocked},
		{name: "blocked wins over lesson", room: blockedRoom, span: span(0, 10, 30, 11, 0), wantKind: domain.KindRoomBlocked},
		{name: "inside window", room: windowRoom, span: span(0, 12, 0, 20, 0)},
		{name: "starts before window", room: windowRoom, span: span(0, 7, 30, 9, 0), wantKind: domain.KindOutsideBookingWindow},
		{name: "ends after window", room: windowRoom, span: span(0, 19, 0, 20, 30), wantKind: domain.KindOutsideBookingWindow},
		{name: "spans the closed night", room: windowRoom, span: interval.New(at(0, 19, 0), at(1, 9, 0)), wantKind: domain.KindOutsideBookingWindow},
		{name: "window closing at midnight", room: eveningRoom, span: interval.New(at(0, 22, 0), at(1, 0, 0))},
		{name: "past a midnight window", room: eveningRoom, span: interval.New(at(0, 23, 0), at(1, 1, 0)), wantKind: domain.KindOutsideBookingWindow},
		{name: "overlaps lesson", room: openRoom, span: span(0, 10, 30, 11, 0), wantKind: domain.KindLessonConflict, wantID: "maths"},
		{name: "touches lesson end", room: openRoom, span: span(0, 11, 30, 12, 0)},
		{name: "touches lesson start", room: openRoom, span: span(0, 9, 0, 10, 0)},
		{name: "lesson on another weekday", room: openRoom, span: span(1, 10, 30, 11, 0)},
		{name: "multi-day reaches next week's lesson", room: openRoom, span: interval.New(at(1, 9, 0), at(7, 10, 15)), wantKind: domain.KindLessonConflict, wantID: "maths"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.room, lessons, tt.span, now, tt.policy, schedule.UTC)
			if tt.wantKind == "" {
				require.NoError(t, err)
				return
			}
			rej, ok := domain.AsRejection(err)
			require.True(t, ok, "expected a rejection, got %v", err)
			assert.Equal(t, tt.wantKind, rej.Kind)
			assert.Equal(t, tt.wantID, rej.ConflictingID)
		})
	}
}

func TestValidate_LessonInOffsetZone(t *testing.T) {
	zone := schedule.NewZone(-5 * time.Hour)
	lessons := []*domain.Lesson{
		{ID: "maths", Day: schedule.Day(time.Monday), Start: schedule.MustWallClock("10:00"), End: schedule.MustWallClock("11:30"), Subject: "Maths"},
	}
	room := &domain.Room{Name: "A101"}
	now := at(0, 0, 0)

	// Monday 10:00 at -05:00 is 15:00 UTC.
	err := Validate(room, lessons, span(0, 15, 30, 16, 0), now, Policy{}, zone)
	assert.True(t, domain.IsRejection(err, domain.KindLessonConflict))

	assert.NoError(t, Validate(room, lessons, span(0, 10, 30, 11, 0), now, Policy{}, zone))
}

func TestFirstOverlap(t *testing.T) {
	existing := []*domain.Reservation{
		{ID: "old", Start: at(0, 14, 0), End: at(0, 15, 0), Status: domain.StatusCancelled},
		{ID: "r1", Start: at(0, 14, 0), End: at(0, 15, 0), Status: domain.StatusActive},
	}

	got := FirstOverlap(existing, span(0, 14, 30, 15, 30), "")
	require.NotNil(t, got)
	assert.Equal(t, "r1", got.ID)

	assert.Nil(t, FirstOverlap(existing, span(0, 15, 0, 16, 0), ""), "touching endpoints do not overlap")
	assert.Nil(t, FirstOverlap(existing, span(0, 14, 30, 15, 30), "r1"), "the edited reservation is excluded")

	rej := ConflictWith(got)
	assert.Equal(t, domain.KindReservationConflict, rej.Kind)
	assert.Equal(t, "r1", rej.ConflictingID)
	assert.False(t, rej.Retryable)
}
