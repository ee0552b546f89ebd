package controllers

import (
	"log/slog"
	"net/http"
	"time"

	h "roombooking/internal/delivery/http/helpers"
	"roombooking/internal/domain"
	"roombooking/internal/interval"
)

// FreeSlotsResponse is the response body for GET /rooms/{roomID}/free-slots.
type FreeSlotsResponse struct {
	RoomID  string              `json:"room_id"`
	Horizon interval.Interval   `json:"horizon"`
	Slots   []interval.Interval `json:"slots"`
}

// ListReservationsResponse is a paginated reservation listing.
type ListReservationsResponse struct {
	Items      []*domain.Reservation `json:"items"`
	Pagination h.PaginationMeta      `json:"pagination"`
}

// RoomController serves the read side of rooms to any signed-in user.
type RoomController struct {
	Logger       *slog.Logger
	Rooms        domain.RoomService
	Lessons      domain.LessonService
	Reservations domain.ReservationService
	// DefaultHorizon is used when a request sets from without to.
	DefaultHorizon time.Duration
	now            func() time.Time
}

func NewRoomController(logger *slog.Logger, rooms domain.RoomService, lessons domain.LessonService, reservations domain.ReservationService, defaultHorizon time.Duration) *RoomController {
	return &RoomController{
		Logger:         logger,
		Rooms:          rooms,
		Lessons:        lessons,
		Reservations:   reservations,
		DefaultHorizon: defaultHorizon,
		now:            time.Now,
	}
}

// List godoc
// @Summary List rooms
// @Description Every room with its live status (available, occupied, blocked) plus the current and next reservation.
// @Tags rooms
// @Produce json
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse "data is a list of RoomOverview"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Router /rooms [get]
func (c *RoomController) List(w http.ResponseWriter, r *http.Request) {
	rooms, err := c.Rooms.List(r.Context())
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, rooms)
}

// Get godoc
// @Summary Room detail
// @Description The room with its lessons, active reservations and free slots over the horizon (from/to, RFC 3339; default the next 24 hours).
// @Tags rooms
// @Produce json
// @Security BearerAuth
// @Param roomID path string true "Room ID"
// @Param from query string false "Horizon start (RFC 3339)"
// @Param to query string false "Horizon end (RFC 3339)"
// @Success 200 {object} helpers.APIResponse "data is a RoomDetail"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /rooms/{roomID} [get]
func (c *RoomController) Get(w http.ResponseWriter, r *http.Request) {
	horizon, err := h.ParseHorizon(r, c.DefaultHorizon)
	if err != nil {
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, err.Error())
		return
	}
	detail, err := c.Rooms.Get(r.Context(), r.PathValue("roomID"), horizon)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, detail)
}

// FreeSlots godoc
// @Summary Free slots of a room
// @Description Advisory list of bookable intervals over the horizon. The authoritative check happens when a reservation is submitted.
// @Tags rooms
// @Produce json
// @Security BearerAuth
// @Param roomID path string true "Room ID"
// @Param from query string false "Horizon start (RFC 3339, default now)"
// @Param to query string false "Horizon end (RFC 3339)"
// @Success 200 {object} helpers.APIResponse "data is a FreeSlotsResponse"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request or malformed_range"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /rooms/{roomID}/free-slots [get]
func (c *RoomController) FreeSlots(w http.ResponseWriter, r *http.Request) {
	horizon, err := h.ParseHorizon(r, c.DefaultHorizon)
	if err != nil {
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, err.Error())
		return
	}
	if horizon.Start.IsZero() && horizon.End.IsZero() {
		now := c.now().UTC().Truncate(time.Minute)
		horizon = interval.New(now, now.Add(c.DefaultHorizon))
	}
	roomID := r.PathValue("roomID")
	slots, err := c.Reservations.ComputeFreeSlots(r.Context(), roomID, horizon)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, FreeSlotsResponse{RoomID: roomID, Horizon: horizon, Slots: slots})
}

// ListLessons godoc
// @Summary Weekly timetable of a room
// @Tags rooms
// @Produce json
// @Security BearerAuth
// @Param roomID path string true "Room ID"
// @Success 200 {object} helpers.APIResponse "data is a list of Lesson"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /rooms/{roomID}/lessons [get]
func (c *RoomController) ListLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := c.Lessons.ListByRoom(r.Context(), r.PathValue("roomID"))
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, lessons)
}

// History godoc
// @Summary Reservation history of a room
// @Description All reservations of the room, newest first, with their effective status.
// @Tags rooms
// @Produce json
// @Security BearerAuth
// @Param roomID path string true "Room ID"
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} helpers.APIResponse "data is a ListReservationsResponse"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /rooms/{roomID}/history [get]
func (c *RoomController) History(w http.ResponseWriter, r *http.Request) {
	params := h.ParsePagination(r)
	list, total, err := c.Reservations.RoomHistory(r.Context(), r.PathValue("roomID"), params)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	meta := h.NewPaginationMeta(params.Page, params.PageSize, total)
	h.WriteJSONSuccess(w, http.StatusOK, ListReservationsResponse{Items: list, Pagination: meta})
}
