package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"roombooking/internal/domain"
	"roombooking/internal/interval"
	"roombooking/internal/lock"
	"roombooking/internal/repository/memory"
	"roombooking/internal/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2025-03-03 is a Monday.
var monday = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func at(day, h, m int) time.Time {
	return monday.AddDate(0, 0, day).Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

type fakeEmailService struct {
	mu        sync.Mutex
	confirmed []*domain.ReservationEmailData
	cancelled []*domain.ReservationEmailData
	err       error
}

func (f *fakeEmailService) SendReservationConfirmed(_ context.Context, data *domain.ReservationEmailData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, data)
	return f.err
}

func (f *fakeEmailService) SendReservationCancelled(_ context.Context, data *domain.ReservationEmailData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, data)
	return f.err
}

type fixture struct {
	store   *memory.Store
	svc     *reservationService
	email   *fakeEmailService
	student *domain.User
	other   *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	email := &fakeEmailService{}
	svc := NewReservationService(store.Rooms(), store.Lessons(), store.Reservations(), store.Users(),
		lock.NewLocal(), email, DefaultSettings(), nil).(*reservationService)
	svc.now = func() time.Time { return at(0, 7, 0) }

	f := &fixture{store: store, svc: svc, email: email}
	f.student = f.user(t, "alice", "alice@example.com")
	f.other = f.user(t, "bob", "")
	return f
}

func (f *fixture) user(t *testing.T, name, email string) *domain.User {
	t.Helper()
	u := domain.NewUser(name, email, domain.RoleStudent, monday, monday)
	require.NoError(t, f.store.Users().Create(context.Background(), u))
	return u
}

func (f *fixture) room(t *testing.T, name string, window *schedule.DailyRange) *domain.Room {
	t.Helper()
	r := domain.NewRoom(name, domain.CategoryPublic, window, monday, monday)
	require.NoError(t, f.store.Rooms().Create(context.Background(), r))
	return r
}

func (f *fixture) lesson(t *testing.T, roomID string, day time.Weekday, start, end string) *domain.Lesson {
	t.Helper()
	l := &domain.Lesson{RoomID: roomID, Day: schedule.Day(day), Start: schedule.MustWallClock(start), End: schedule.MustWallClock(end), Subject: "Maths"}
	require.NoError(t, f.store.Lessons().Create(context.Background(), l))
	return l
}

func (f *fixture) claims(u *domain.User) *domain.Claims {
	return &domain.Claims{UserID: u.ID, Name: u.Name, Role: u.Role}
}

func requireKind(t *testing.T, err error, kind domain.RejectionKind) *domain.Rejection {
	t.Helper()
	rej, ok := domain.AsRejection(err)
	require.True(t, ok, "expected %s rejection, got %v", kind, err)
	require.Equal(t, kind, rej.Kind)
	return rej
}

func TestReservationService_FreeSlotsAfterBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, "A101", &schedule.DailyRange{Start: schedule.MustWallClock("08:00"), End: schedule.MustWallClock("20:00")})

	_, err := f.svc.Create(ctx, room.ID, domain.Requester{UserID: f.student.ID}, at(0, 9, 0), at(0, 10, 0))
	require.NoError(t, err)

	slots, err := f.svc.ComputeFreeSlots(ctx, room.ID, interval.New(at(0, 0, 0), at(1, 0, 0)))
	require.NoError(t, err)
	assert.Equal(t, []interval.Interval{
		interval.New(at(0, 8, 0), at(0, 9, 0)),
		interval.New(at(0, 10, 0), at(0, 20, 0)),
	}, slots)
}

func TestReservationService_FreeSlotsErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ComputeFreeSlots(ctx, "missing", interval.New(at(0, 0, 0), at(1, 0, 0)))
	requireKind(t, err, domain.KindNotFound)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	room := f.room(t, "A101", nil)
	_, err = f.svc.ComputeFreeSlots(ctx, room.ID, interval.New(at(1, 0, 0), at(0, 0, 0)))
	requireKind(t, err, domain.KindMalformedRange)

	_, err = f.svc.ComputeFreeSlots(ctx, room.ID, interval.New(at(0, 0, 0), at(0, 0, 0).AddDate(100, 0, 0)))
	requireKind(t, err, domain.KindMalformedRange)

	f.svc.settings.MaxHorizon = 7 * 24 * time.Hour
	_, err = f.svc.ComputeFreeSlots(ctx, room.ID, interval.New(at(0, 0, 0), at(7, 0, 0)))
	require.NoError(t, err, "exactly the maximum is allowed")
	_, err = f.svc.ComputeFreeSlots(ctx, room.ID, interval.New(at(0, 0, 0), at(7, 0, 1)))
	requireKind(t, err, domain.KindMalformedRange)

	_, err = f.store.Rooms().SetBlocked(ctx, []string{room.ID}, true)
	require.NoError(t, err)
	slots, err := f.svc.ComputeFreeSlots(ctx, room.ID, interval.New(at(0, 0, 0), at(1, 0, 0)))
	require.NoError(t, err)
	assert.NotNil(t, slots)
	assert.Empty(t, slots)
}

func TestReservationService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, "A101", nil)
	l := f.lesson(t, room.ID, time.Monday, "10:00", "11:30")

	t.Run("lesson conflict names the lesson", func(t *testing.T) {
		_, err := f.svc.Create(ctx, room.ID, domain.Requester{UserID: f.student.ID}, at(0, 10, 30), at(0, 11, 0))
		rej := requireKind(t, err, domain.KindLessonConflict)
		assert.Equal(t, l.ID, rej.ConflictingID)
	})

	t.Run("overlap with an active reservation", func(t *testing.T) {
		first, err := f.svc.Create(ctx, room.ID, domain.Requester{UserID: f.student.ID}, at(0, 14, 0), at(0, 15, 0))
		require.NoError(t, err)
		assert.Equal(t, "alice", first.RequesterName)
		assert.Equal(t, domain.StatusActive, first.Status)

		_, err = f.svc.Create(ctx, room.ID, domain.Requester{UserID: f.other.ID}, at(0, 14, 30), at(0, 15, 30))
		rej := requireKind(t, err, domain.KindReservationConflict)
		assert.Equal(t, first.ID, rej.ConflictingID)
		assert.False(t, rej.Retryable)

		_, err = f.svc.Create(ctx, room.ID, domain.Requester{UserID: f.other.ID}, at(0, 15, 0), at(0, 16, 0))
		assert.NoError(t, err, "touching reservations may coexist")
	})

	t.Run("past start", func(t *testing.T) {
		_, err := f.svc.Create(ctx, room.ID, domain.Requester{UserID: f.student.ID}, at(0, 6, 0), at(0, 8, 0))
		requireKind(t, err, domain.KindPastStart)
	})

	t.Run("unknown room", func(t *testing.T) {
		_, err := f.svc.Create(ctx, "missing", domain.Requester{UserID: f.student.ID}, at(0, 9, 0), at(0, 10, 0))
		requireKind(t, err, domain.KindNotFound)
	})

	t.Run("free text requester", func(t *testing.T) {
		res, err := f.svc.Create(ctx, room.ID, domain.Requester{Name: "  Open day  "}, at(1, 9, 0), at(1, 10, 0))
		require.NoError(t, err)
		assert.Equal(t, "Open day", res.RequesterName)
		assert.Empty(t, res.UserID)
	})

	t.Run("missing requester", func(t *testing.T) {
		_, err := f.svc.Create(ctx, room.ID, domain.Requester{}, at(1, 11, 0), at(1, 12, 0))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	f.email.mu.Lock()
	defer f.email.mu.Unlock()
	require.Len(t, f.email.confirmed, 1, "only users with an email are notified")
	assert.Equal(t, "alice@example.com", f.email.confirmed[0].Email)
	assert.Equal(t, "A101", f.email.confirmed[0].RoomName)
}

func TestReservationService_BlockedRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, "A101", nil)
	_, err := f.store.Rooms().SetBlocked(ctx, []string{room.ID}, true)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, room.ID, domain.Requester{UserID: f.student.ID}, at(0, 9, 0), at(0, 10, 0))
	requireKind(t, err, domain.KindRoomBlocked)
}

func TestReservationService_CancelThenResubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, "A101", nil)

	first, err := f.svc.Create(ctx, room.ID, domain.Requester{UserID: f.student.ID}, at(0, 14, 0), at(0, 15, 0))
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, f.claims(f.student), first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	second, err := f.svc.Create(ctx, room.ID, domain.Requester{UserID: f.other.ID}, at(0, 14, 0), at(0, 15, 0))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	_, err = f.svc.Cancel(ctx, f.claims(f.student), first.ID)
	requireKind(t, err, domain.KindInvalidTransition)

	f.email.mu.Lock()
	defer f.email.mu.Unlock()
	assert.Len(t, f.email.cancelled, 1)
}

func TestReservationService_ConcurrentCreates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, "A101", nil)

	const n = 24
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
		winnerID  string
		hitIDs    []string
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := f.svc.Create(ctx, room.ID, domain.Requester{Name: "racer"}, at(0, 14, 0), at(0, 15, 0))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				winnerID = res.ID
				return
			}
			if rej, ok := domain.AsRejection(err); ok && rej.Kind == domain.KindReservationConflict {
				conflicts++
				hitIDs = append(hitIDs, rej.ConflictingID)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, conflicts)
	for _, id := range hitIDs {
		assert.Equal(t, winnerID, id)
	}

	active, err := f.store.Reservations().ListActiveByRoom(ctx, room.ID, interval.New(at(0, 0, 0), at(1, 0, 0)))
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

type stuckLocker struct{}

func (stuckLocker) Acquire(ctx context.Context, _ string) (func(), error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestReservationService_LockTimeoutIsRetryable(t *testing.T) {
	f := newFixture(t)
	room := f.room(t, "A101", nil)
	f.svc.locker = stuckLocker{}
	f.svc.settings.CommitTimeout = 20 * time.Millisecond

	_, err := f.svc.Create(context.Background(), room.ID, domain.Requester{Name: "x"}, at(0, 9, 0), at(0, 10, 0))
	rej := requireKind(t, err, domain.KindReservationConflict)
	assert.True(t, rej.Retryable)
}

type cancelledLocker struct{}

func (cancelledLocker) Acquire(context.Context, string) (func(), error) {
	return nil, fmt.Errorf("wait for room: %w", context.Canceled)
}

func TestReservationService_CancelledLockIsRetryable(t *testing.T) {
	f := newFixture(t)
	room := f.room(t, "A101", nil)
	f.svc.locker = cancelledLocker{}

	_, err := f.svc.Create(context.Background(), room.ID, domain.Requester{Name: "x"}, at(0, 9, 0), at(0, 10, 0))
	rej := requireKind(t, err, domain.KindReservationConflict)
	assert.True(t, rej.Retryable)
}

func TestReservationService_CancelledWriteIsRetryable(t *testing.T) {
	f := newFixture(t)

	err := f.svc.commit(context.Background(), "room", func(context.Context) error {
		return fmt.Errorf("insert reservation: %w", context.Canceled)
	})
	rej := requireKind(t, err, domain.KindReservationConflict)
	assert.True(t, rej.Retryable)
}

func TestReservationService_Reschedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, "A101", nil)
	mine, err := f.svc.Create(ctx, room.ID, domain.Requester{UserID: f.student.ID}, at(0, 14, 0), at(0, 15, 0))
	require.NoError(t, err)
	theirs, err := f.svc.Create(ctx, room.ID, domain.Requester{UserID: f.other.ID}, at(0, 16, 0), at(0, 17, 0))
	require.NoError(t, err)

	t.Run("overlapping its own old slot", func(t *testing.T) {
		moved, err := f.svc.Reschedule(ctx, f.claims(f.student), mine.ID, at(0, 14, 30), at(0, 15, 30))
		require.NoError(t, err)
		assert.Equal(t, at(0, 14, 30), moved.Start)
		assert.Equal(t, at(0, 15, 30), moved.End)
	})

	t.Run("onto another reservation", func(t *testing.T) {
		_, err := f.svc.Reschedule(ctx, f.claims(f.student), mine.ID, at(0, 16, 30), at(0, 17, 30))
		rej := requireKind(t, err, domain.KindReservationConflict)
		assert.Equal(t, theirs.ID, rej.ConflictingID)
	})

	t.Run("not the owner", func(t *testing.T) {
		_, err := f.svc.Reschedule(ctx, f.claims(f.other), mine.ID, at(0, 18, 0), at(0, 19, 0))
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("admin may move any", func(t *testing.T) {
		admin := &domain.Claims{UserID: "root", Role: domain.RoleAdmin}
		_, err := f.svc.Reschedule(ctx, admin, theirs.ID, at(0, 18, 0), at(0, 19, 0))
		assert.NoError(t, err)
	})

	t.Run("finished reservations cannot move", func(t *testing.T) {
		f.svc.now = func() time.Time { return at(2, 0, 0) }
		defer func() { f.svc.now = func() time.Time { return at(0, 7, 0) } }()
		_, err := f.svc.Reschedule(ctx, f.claims(f.student), mine.ID, at(3, 9, 0), at(3, 10, 0))
		requireKind(t, err, domain.KindInvalidTransition)
	})

	t.Run("unknown reservation", func(t *testing.T) {
		_, err := f.svc.Reschedule(ctx, f.claims(f.student), "missing", at(3, 9, 0), at(3, 10, 0))
		requireKind(t, err, domain.KindNotFound)
	})
}

func TestReservationService_AdminUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, "A101", nil)
	res, err := f.svc.Create(ctx, room.ID, domain.Requester{UserID: f.student.ID}, at(0, 14, 0), at(0, 15, 0))
	require.NoError(t, err)

	finished := domain.StatusFinished
	_, err = f.svc.AdminUpdate(ctx, res.ID, domain.ReservationUpdate{Status: &finished})
	requireKind(t, err, domain.KindInvalidTransition)

	end := at(0, 16, 0)
	moved, err := f.svc.AdminUpdate(ctx, res.ID, domain.ReservationUpdate{End: &end})
	require.NoError(t, err)
	assert.Equal(t, at(0, 14, 0), moved.Start)
	assert.Equal(t, end, moved.End)

	cancelled := domain.StatusCancelled
	start := at(0, 18, 0)
	got, err := f.svc.AdminUpdate(ctx, res.ID, domain.ReservationUpdate{Start: &start, Status: &cancelled})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Equal(t, at(0, 14, 0), got.Start, "cancellation wins over the reschedule")

	active := domain.StatusActive
	_, err = f.svc.AdminUpdate(ctx, res.ID, domain.ReservationUpdate{Status: &active})
	requireKind(t, err, domain.KindInvalidTransition)
}

func TestReservationService_BulkCancelAndListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, "A101", nil)

	a, err := f.svc.Create(ctx, room.ID, domain.Requester{UserID: f.student.ID}, at(0, 9, 0), at(0, 10, 0))
	require.NoError(t, err)
	b, err := f.svc.Create(ctx, room.ID, domain.Requester{UserID: f.student.ID}, at(0, 11, 0), at(0, 12, 0))
	require.NoError(t, err)
	c, err := f.svc.Create(ctx, room.ID, domain.Requester{UserID: f.other.ID}, at(1, 9, 0), at(1, 10, 0))
	require.NoError(t, err)

	n, err := f.svc.BulkCancel(ctx, []string{a.ID, b.ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = f.svc.BulkCancel(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	mine, err := f.svc.ListMine(ctx, f.student.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	// Day 0 reservations are over by noon of day 1.
	f.svc.now = func() time.Time { return at(1, 12, 0) }
	list, total, err := f.svc.List(ctx, domain.ReservationFilter{Status: domain.StatusFinished}, domain.PaginationParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, c.ID, list[0].ID)
	assert.Equal(t, domain.StatusFinished, list[0].Status)

	_, _, err = f.svc.List(ctx, domain.ReservationFilter{Status: "bogus"}, domain.PaginationParams{Page: 1, PageSize: 10})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	history, total, err := f.svc.RoomHistory(ctx, room.ID, domain.PaginationParams{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, history, 2)

	_, _, err = f.svc.RoomHistory(ctx, "missing", domain.PaginationParams{Page: 1, PageSize: 2})
	requireKind(t, err, domain.KindNotFound)
}
