package controllers

import (
	"log/slog"
	"net/http"
	"time"

	h "roombooking/internal/delivery/http/helpers"
	"roombooking/internal/delivery/http/middleware"
	"roombooking/internal/domain"
)

// ReservationRangeRequest is the body for booking or moving a reservation.
// Instants are RFC 3339 with an explicit offset.
type ReservationRangeRequest struct {
	Start string `json:"start" example:"2025-03-03T09:00:00Z"`
	End   string `json:"end" example:"2025-03-03T10:00:00Z"`
}

// Validate implements Validator.
func (q ReservationRangeRequest) Validate() []string {
	var errs []string
	if q.Start == "" {
		errs = append(errs, "start is required")
	}
	if q.End == "" {
		errs = append(errs, "end is required")
	}
	return errs
}

// parse turns the request into UTC instants. Unparsable values are a
// malformed range, the same outcome as an inverted one.
func (q ReservationRangeRequest) parse() (start, end time.Time, err error) {
	if start, err = h.ParseInstant("start", q.Start); err != nil {
		return start, end, domain.Reject(domain.KindMalformedRange, "%v", err)
	}
	if end, err = h.ParseInstant("end", q.End); err != nil {
		return start, end, domain.Reject(domain.KindMalformedRange, "%v", err)
	}
	return start, end, nil
}

// ReservationController serves a signed-in user's own reservations.
type ReservationController struct {
	Logger  *slog.Logger
	Service domain.ReservationService
}

func NewReservationController(logger *slog.Logger, svc domain.ReservationService) *ReservationController {
	return &ReservationController{
		Logger:  logger,
		Service: svc,
	}
}

// Create godoc
// @Summary Book a room
// @Description Reserve [start, end) in the room for the caller. Rejections carry the failing rule as error.code: malformed_range, past_start, room_blocked, outside_booking_window, lesson_conflict, reservation_conflict or not_found. A retryable reservation_conflict sets Retry-After.
// @Tags reservations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param roomID path string true "Room ID"
// @Param body body ReservationRangeRequest true "Requested range"
// @Success 201 {object} helpers.APIResponse "data is the committed Reservation"
// @Failure 400 {object} helpers.APIResponse "error.code: malformed_range, past_start or outside_booking_window"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: room_blocked, lesson_conflict or reservation_conflict"
// @Router /rooms/{roomID}/reservations [post]
func (c *ReservationController) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}
	var req ReservationRangeRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	start, end, err := req.parse()
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	requester := domain.Requester{UserID: claims.UserID, Name: claims.Name}
	res, err := c.Service.Create(r.Context(), r.PathValue("roomID"), requester, start, end)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusCreated, res)
}

// Mine godoc
// @Summary My reservations
// @Description The caller's reservations, newest first, with their effective status.
// @Tags reservations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse "data is a list of Reservation"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Router /reservations/mine [get]
func (c *ReservationController) Mine(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}
	list, err := c.Service.ListMine(r.Context(), userID)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, list)
}

// Reschedule godoc
// @Summary Move a reservation
// @Description Moves one of the caller's active reservations to a new range. The same rules as booking apply, ignoring the reservation itself.
// @Tags reservations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param reservationID path string true "Reservation ID"
// @Param body body ReservationRangeRequest true "New range"
// @Success 200 {object} helpers.APIResponse "data is the updated Reservation"
// @Failure 400 {object} helpers.APIResponse "error.code: malformed_range, past_start or outside_booking_window"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: lesson_conflict, reservation_conflict or invalid_transition"
// @Router /reservations/{reservationID} [patch]
func (c *ReservationController) Reschedule(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}
	var req ReservationRangeRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	start, end, err := req.parse()
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	res, err := c.Service.Reschedule(r.Context(), claims, r.PathValue("reservationID"), start, end)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, res)
}

// Cancel godoc
// @Summary Cancel a reservation
// @Tags reservations
// @Produce json
// @Security BearerAuth
// @Param reservationID path string true "Reservation ID"
// @Success 200 {object} helpers.APIResponse "data is the cancelled Reservation"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: invalid_transition"
// @Router /reservations/{reservationID} [delete]
func (c *ReservationController) Cancel(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}
	res, err := c.Service.Cancel(r.Context(), claims, r.PathValue("reservationID"))
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, res)
}
