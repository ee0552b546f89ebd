package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"roombooking/internal/delivery/http/helpers"
	"roombooking/internal/domain"
	"roombooking/internal/interval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRoomService implements domain.RoomService for handler tests.
type fakeRoomService struct {
	err          error
	overviews    []*domain.RoomOverview
	detail       *domain.RoomDetail
	updated      *domain.Room
	blockedCount int
	lastCreate   *domain.Room
	lastID       string
	lastPatch    domain.RoomPatch
	lastHorizon  interval.Interval
	lastIDs      []string
	lastBlocked  bool
}

func (f *fakeRoomService) Create(ctx context.Context, room *domain.Room) error {
	f.lastCreate = room
	if f.err != nil {
		return f.err
	}
	room.ID = "room-1"
	if room.Category == "" {
		room.Category = domain.CategoryPublic
	}
	return nil
}

func (f *fakeRoomService) Update(ctx context.Context, id string, patch domain.RoomPatch) (*domain.Room, error) {
	f.lastID, f.lastPatch = id, patch
	if f.err != nil {
		return nil, f.err
	}
	return f.updated, nil
}

func (f *fakeRoomService) List(ctx context.Context) ([]*domain.RoomOverview, error) {
	return f.overviews, f.err
}

func (f *fakeRoomService) Get(ctx context.Context, id string, horizon interval.Interval) (*domain.RoomDetail, error) {
	f.lastID, f.lastHorizon = id, horizon
	if f.err != nil {
		return nil, f.err
	}
	return f.detail, nil
}

func (f *fakeRoomService) BulkSetBlocked(ctx context.Context, ids []string, blocked bool) (int, error) {
	f.lastIDs, f.lastBlocked = ids, blocked
	return f.blockedCount, f.err
}

// fakeLessonService implements domain.LessonService for handler tests.
type fakeLessonService struct {
	err        error
	lessons    []*domain.Lesson
	lastCreate *domain.Lesson
	lastRoomID string
	lastDelete string
}

func (f *fakeLessonService) Create(ctx context.Context, lesson *domain.Lesson) error {
	f.lastCreate = lesson
	if f.err != nil {
		return f.err
	}
	lesson.ID = "lesson-1"
	return nil
}

func (f *fakeLessonService) ListByRoom(ctx context.Context, roomID string) ([]*domain.Lesson, error) {
	f.lastRoomID = roomID
	return f.lessons, f.err
}

func (f *fakeLessonService) Delete(ctx context.Context, id string) error {
	f.lastDelete = id
	return f.err
}

func TestRoomController_List(t *testing.T) {
	rooms := &fakeRoomService{overviews: []*domain.RoomOverview{
		{Room: &domain.Room{ID: "room-1", Name: "A-101", Category: domain.CategoryPublic}, Status: domain.RoomOccupied},
		{Room: &domain.Room{ID: "room-2", Name: "B-202", Category: domain.CategoryService, Blocked: true}, Status: domain.RoomBlocked},
	}}
	ctrl := NewRoomController(testLogger, rooms, &fakeLessonService{}, &fakeReservationService{}, 24*time.Hour)

	rr := httptest.NewRecorder()
	ctrl.List(rr, httptest.NewRequest(http.MethodGet, "http://test/rooms", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var got []map[string]any
	decodeEnvelope(t, rr, &got)
	require.Len(t, got, 2)
	assert.Equal(t, "A-101", got[0]["name"], "room fields are inlined")
	assert.Equal(t, "occupied", got[0]["status"])
	assert.Equal(t, "blocked", got[1]["status"])
}

func TestRoomController_Get(t *testing.T) {
	from := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		name         string
		query        string
		fakeErr      error
		wantStatus   int
		wantBodyCode string
		wantHorizon  interval.Interval
	}{
		{name: "default horizon left to service", wantStatus: http.StatusOK},
		{name: "from only", query: "?from=2025-03-03T08:00:00Z", wantStatus: http.StatusOK, wantHorizon: interval.New(from, from.Add(24*time.Hour))},
		{name: "from and to", query: "?from=2025-03-03T08:00:00Z&to=2025-03-03T18:00:00Z", wantStatus: http.StatusOK, wantHorizon: interval.New(from, from.Add(10*time.Hour))},
		{name: "bad from", query: "?from=monday", wantStatus: http.StatusBadRequest, wantBodyCode: helpers.ErrCodeBadRequest},
		{name: "unknown room", fakeErr: domain.Reject(domain.KindNotFound, "room not found"), wantStatus: http.StatusNotFound, wantBodyCode: string(domain.KindNotFound)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rooms := &fakeRoomService{
				err:    tt.fakeErr,
				detail: &domain.RoomDetail{Room: &domain.Room{ID: "room-1"}, FreeSlots: []interval.Interval{}},
			}
			ctrl := NewRoomController(testLogger, rooms, &fakeLessonService{}, &fakeReservationService{}, 24*time.Hour)

			req := httptest.NewRequest(http.MethodGet, "http://test/rooms/room-1"+tt.query, nil)
			req.SetPathValue("roomID", "room-1")
			rr := httptest.NewRecorder()
			ctrl.Get(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			envelope := decodeEnvelope(t, rr, nil)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "room-1", rooms.lastID)
				assert.True(t, tt.wantHorizon.Start.Equal(rooms.lastHorizon.Start))
				assert.True(t, tt.wantHorizon.End.Equal(rooms.lastHorizon.End))
				return
			}
			require.NotNil(t, envelope.Error)
			assert.Equal(t, tt.wantBodyCode, envelope.Error.Code)
		})
	}
}

func TestRoomController_FreeSlots(t *testing.T) {
	now := time.Date(2025, 3, 3, 7, 30, 45, 0, time.UTC)
	slot := interval.New(time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC), time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC))

	t.Run("default horizon starts now", func(t *testing.T) {
		reservations := &fakeReservationService{freeSlots: []interval.Interval{slot}}
		ctrl := NewRoomController(testLogger, &fakeRoomService{}, &fakeLessonService{}, reservations, 12*time.Hour)
		ctrl.now = func() time.Time { return now }

		req := httptest.NewRequest(http.MethodGet, "http://test/rooms/room-1/free-slots", nil)
		req.SetPathValue("roomID", "room-1")
		rr := httptest.NewRecorder()
		ctrl.FreeSlots(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var resp FreeSlotsResponse
		decodeEnvelope(t, rr, &resp)
		assert.Equal(t, "room-1", resp.RoomID)
		require.Len(t, resp.Slots, 1)
		assert.True(t, slot.Start.Equal(resp.Slots[0].Start))
		wantStart := time.Date(2025, 3, 3, 7, 30, 0, 0, time.UTC)
		assert.True(t, wantStart.Equal(reservations.lastHorizon.Start))
		assert.True(t, wantStart.Add(12*time.Hour).Equal(reservations.lastHorizon.End))
	})

	t.Run("inverted horizon", func(t *testing.T) {
		reservations := &fakeReservationService{err: domain.Reject(domain.KindMalformedRange, "horizon is empty")}
		ctrl := NewRoomController(testLogger, &fakeRoomService{}, &fakeLessonService{}, reservations, 12*time.Hour)

		req := httptest.NewRequest(http.MethodGet, "http://test/rooms/room-1/free-slots?from=2025-03-03T10:00:00Z&to=2025-03-03T09:00:00Z", nil)
		req.SetPathValue("roomID", "room-1")
		rr := httptest.NewRecorder()
		ctrl.FreeSlots(rr, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)
		envelope := decodeEnvelope(t, rr, nil)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, string(domain.KindMalformedRange), envelope.Error.Code)
	})
}

func TestRoomController_ListLessons(t *testing.T) {
	lessons := &fakeLessonService{lessons: []*domain.Lesson{{ID: "l1", Subject: "Algebra"}}}
	ctrl := NewRoomController(testLogger, &fakeRoomService{}, lessons, &fakeReservationService{}, time.Hour)

	req := httptest.NewRequest(http.MethodGet, "http://test/rooms/room-1/lessons", nil)
	req.SetPathValue("roomID", "room-1")
	rr := httptest.NewRecorder()
	ctrl.ListLessons(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var got []map[string]any
	decodeEnvelope(t, rr, &got)
	require.Len(t, got, 1)
	assert.Equal(t, "Algebra", got[0]["subject"])
	assert.Equal(t, "room-1", lessons.lastRoomID)
}

func TestRoomController_History(t *testing.T) {
	reservations := &fakeReservationService{
		list:  []*domain.Reservation{{ID: "r2"}, {ID: "r1"}},
		total: 45,
	}
	ctrl := NewRoomController(testLogger, &fakeRoomService{}, &fakeLessonService{}, reservations, time.Hour)

	req := httptest.NewRequest(http.MethodGet, "http://test/rooms/room-1/history?page=2&page_size=20", nil)
	req.SetPathValue("roomID", "room-1")
	rr := httptest.NewRecorder()
	ctrl.History(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp ListReservationsResponse
	decodeEnvelope(t, rr, &resp)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, helpers.PaginationMeta{Page: 2, PageSize: 20, Total: 45, TotalPages: 3}, resp.Pagination)
	assert.Equal(t, domain.PaginationParams{Page: 2, PageSize: 20}, reservations.lastPage)
	assert.Equal(t, "room-1", reservations.lastRoomID)
}
