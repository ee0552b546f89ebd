package controllers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	h "roombooking/internal/delivery/http/helpers"
	"roombooking/internal/domain"
	"roombooking/internal/schedule"
)

// BookingWindowRequest is a daily HH:MM range.
type BookingWindowRequest struct {
	Start string `json:"start" example:"08:00"`
	End   string `json:"end" example:"20:00"`
}

func (b *BookingWindowRequest) parse() (*schedule.DailyRange, error) {
	if b == nil {
		return nil, nil
	}
	start, err := schedule.ParseWallClock(b.Start)
	if err != nil {
		return nil, fmt.Errorf("%w: booking_window.start: %v", domain.ErrInvalidInput, err)
	}
	end, err := schedule.ParseWallClock(b.End)
	if err != nil {
		return nil, fmt.Errorf("%w: booking_window.end: %v", domain.ErrInvalidInput, err)
	}
	return &schedule.DailyRange{Start: start, End: end}, nil
}

// CreateRoomRequest is the request body for POST /admin/rooms.
type CreateRoomRequest struct {
	Name          string                `json:"name"`
	Category      string                `json:"category" example:"public"`
	Blocked       bool                  `json:"blocked"`
	BookingWindow *BookingWindowRequest `json:"booking_window"`
}

// Validate implements Validator.
func (q CreateRoomRequest) Validate() []string {
	var errs []string
	if strings.TrimSpace(q.Name) == "" {
		errs = append(errs, "name is required")
	}
	if q.Category != "" && !domain.RoomCategory(q.Category).Valid() {
		errs = append(errs, "category must be public, admin or service")
	}
	return errs
}

// UpdateRoomRequest is the request body for PATCH /admin/rooms/{roomID}. Omitted fields are unchanged;
// clear_booking_window removes the window.
type UpdateRoomRequest struct {
	Name               *string               `json:"name"`
	Category           *string               `json:"category"`
	Blocked            *bool                 `json:"blocked"`
	BookingWindow      *BookingWindowRequest `json:"booking_window"`
	ClearBookingWindow bool                  `json:"clear_booking_window"`
}

// Validate implements Validator.
func (q UpdateRoomRequest) Validate() []string {
	var errs []string
	if q.Category != nil && !domain.RoomCategory(*q.Category).Valid() {
		errs = append(errs, "category must be public, admin or service")
	}
	if q.ClearBookingWindow && q.BookingWindow != nil {
		errs = append(errs, "booking_window and clear_booking_window are mutually exclusive")
	}
	return errs
}

// BulkBlockRequest is the request body for POST /admin/rooms/bulk-block.
type BulkBlockRequest struct {
	IDs     []string `json:"ids"`
	Blocked bool     `json:"blocked"`
}

// Validate implements Validator.
func (q BulkBlockRequest) Validate() []string {
	if len(q.IDs) == 0 {
		return []string{"ids must not be empty"}
	}
	return nil
}

// CreateLessonRequest is the request body for POST /admin/rooms/{roomID}/lessons.
type CreateLessonRequest struct {
	Day       string `json:"day" example:"monday"`
	Start     string `json:"start" example:"10:00"`
	End       string `json:"end" example:"11:30"`
	Subject   string `json:"subject"`
	Teacher   string `json:"teacher"`
	GroupName string `json:"group_name"`
}

// Validate implements Validator.
func (q CreateLessonRequest) Validate() []string {
	var errs []string
	if _, err := schedule.ParseDay(q.Day); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := schedule.ParseWallClock(q.Start); err != nil {
		errs = append(errs, "start: "+err.Error())
	}
	if _, err := schedule.ParseWallClock(q.End); err != nil {
		errs = append(errs, "end: "+err.Error())
	}
	if strings.TrimSpace(q.Subject) == "" {
		errs = append(errs, "subject is required")
	}
	return errs
}

// AdminCreateReservationRequest books on behalf of a user or a free-text requester.
type AdminCreateReservationRequest struct {
	ReservationRangeRequest
	UserID        string `json:"user_id"`
	RequesterName string `json:"requester_name"`
}

// Validate implements Validator.
func (q AdminCreateReservationRequest) Validate() []string {
	errs := q.ReservationRangeRequest.Validate()
	if q.UserID == "" && strings.TrimSpace(q.RequesterName) == "" {
		errs = append(errs, "user_id or requester_name is required")
	}
	return errs
}

// AdminUpdateReservationRequest is the request body for PATCH /admin/reservations/{reservationID}.
// Status may only be "cancelled"; when combined with a new range the cancellation wins.
type AdminUpdateReservationRequest struct {
	Start  *string `json:"start"`
	End    *string `json:"end"`
	Status *string `json:"status"`
}

// Validate implements Validator.
func (q AdminUpdateReservationRequest) Validate() []string {
	if q.Start == nil && q.End == nil && q.Status == nil {
		return []string{"nothing to update"}
	}
	return nil
}

// BulkCancelRequest is the request body for POST /admin/reservations/bulk-cancel.
type BulkCancelRequest struct {
	IDs []string `json:"ids"`
}

// Validate implements Validator.
func (q BulkCancelRequest) Validate() []string {
	if len(q.IDs) == 0 {
		return []string{"ids must not be empty"}
	}
	return nil
}

// BulkResult reports how many rows a bulk action changed.
type BulkResult struct {
	Requested int `json:"requested"`
	Updated   int `json:"updated"`
}

// AdminCreateUserRequest is the request body for POST /admin/users.
type AdminCreateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
	Role     string `json:"role" example:"teacher"`
}

// Validate implements Validator.
func (q AdminCreateUserRequest) Validate() []string {
	var errs []string
	if strings.TrimSpace(q.Name) == "" {
		errs = append(errs, "name is required")
	}
	if q.Password == "" {
		errs = append(errs, "password is required")
	}
	if q.Role != "" && !domain.Role(q.Role).Valid() {
		errs = append(errs, "role must be student, teacher or admin")
	}
	return errs
}

// AdminUpdateUserRequest is the request body for PATCH /admin/users/{userID}.
// An empty email clears it.
type AdminUpdateUserRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Role  *string `json:"role"`
}

// Validate implements Validator.
func (q AdminUpdateUserRequest) Validate() []string {
	if q.Name == nil && q.Email == nil && q.Role == nil {
		return []string{"nothing to update"}
	}
	if q.Role != nil && !domain.Role(*q.Role).Valid() {
		return []string{"role must be student, teacher or admin"}
	}
	return nil
}

// ResetPasswordRequest is the request body for POST /admin/users/{userID}/reset-password.
type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// Validate implements Validator.
func (q ResetPasswordRequest) Validate() []string {
	if q.Password == "" {
		return []string{"password is required"}
	}
	return nil
}

// ListUsersResponse is one page of users.
type ListUsersResponse struct {
	Items      []*domain.User   `json:"items"`
	Pagination h.PaginationMeta `json:"pagination"`
}

// AdminController serves the administration panel.
type AdminController struct {
	Logger       *slog.Logger
	Rooms        domain.RoomService
	Lessons      domain.LessonService
	Reservations domain.ReservationService
	Stats        domain.StatsService
	Users        domain.AuthService
}

func NewAdminController(logger *slog.Logger, rooms domain.RoomService, lessons domain.LessonService, reservations domain.ReservationService, stats domain.StatsService, users domain.AuthService) *AdminController {
	return &AdminController{
		Logger:       logger,
		Rooms:        rooms,
		Lessons:      lessons,
		Reservations: reservations,
		Stats:        stats,
		Users:        users,
	}
}

// CreateRoom godoc
// @Summary Create a room
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateRoomRequest true "Room"
// @Success 201 {object} helpers.APIResponse "data is the created Room"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Router /admin/rooms [post]
func (c *AdminController) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	window, err := req.BookingWindow.parse()
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	room := &domain.Room{
		Name:          req.Name,
		Category:      domain.RoomCategory(req.Category),
		Blocked:       req.Blocked,
		BookingWindow: window,
	}
	if err := c.Rooms.Create(r.Context(), room); err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusCreated, room)
}

// UpdateRoom godoc
// @Summary Update a room
// @Description Partial update of name, category, blocked flag and booking window.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param roomID path string true "Room ID"
// @Param body body UpdateRoomRequest true "Fields to change"
// @Success 200 {object} helpers.APIResponse "data is the updated Room"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /admin/rooms/{roomID} [patch]
func (c *AdminController) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	var req UpdateRoomRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	window, err := req.BookingWindow.parse()
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	patch := domain.RoomPatch{
		Name:               req.Name,
		Blocked:            req.Blocked,
		BookingWindow:      window,
		ClearBookingWindow: req.ClearBookingWindow,
	}
	if req.Category != nil {
		category := domain.RoomCategory(*req.Category)
		patch.Category = &category
	}
	room, err := c.Rooms.Update(r.Context(), r.PathValue("roomID"), patch)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, room)
}

// BulkBlockRooms godoc
// @Summary Block or unblock many rooms
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body BulkBlockRequest true "Room ids and flag"
// @Success 200 {object} helpers.APIResponse "data is a BulkResult"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Router /admin/rooms/bulk-block [post]
func (c *AdminController) BulkBlockRooms(w http.ResponseWriter, r *http.Request) {
	var req BulkBlockRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	n, err := c.Rooms.BulkSetBlocked(r.Context(), req.IDs, req.Blocked)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, BulkResult{Requested: len(req.IDs), Updated: n})
}

// CreateLesson godoc
// @Summary Add a weekly lesson to a room
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param roomID path string true "Room ID"
// @Param body body CreateLessonRequest true "Lesson"
// @Success 201 {object} helpers.APIResponse "data is the created Lesson"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: lesson_conflict"
// @Router /admin/rooms/{roomID}/lessons [post]
func (c *AdminController) CreateLesson(w http.ResponseWriter, r *http.Request) {
	var req CreateLessonRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	day, _ := schedule.ParseDay(req.Day)
	start, _ := schedule.ParseWallClock(req.Start)
	end, _ := schedule.ParseWallClock(req.End)
	lesson := &domain.Lesson{
		RoomID:    r.PathValue("roomID"),
		Day:       day,
		Start:     start,
		End:       end,
		Subject:   req.Subject,
		Teacher:   strings.TrimSpace(req.Teacher),
		GroupName: strings.TrimSpace(req.GroupName),
	}
	if err := c.Lessons.Create(r.Context(), lesson); err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusCreated, lesson)
}

// DeleteLesson godoc
// @Summary Remove a lesson
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param lessonID path string true "Lesson ID"
// @Success 204
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /admin/lessons/{lessonID} [delete]
func (c *AdminController) DeleteLesson(w http.ResponseWriter, r *http.Request) {
	if err := c.Lessons.Delete(r.Context(), r.PathValue("lessonID")); err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateReservation godoc
// @Summary Book on behalf of a requester
// @Description Same rules as a user booking. The requester is a user id or a free-text name.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param roomID path string true "Room ID"
// @Param body body AdminCreateReservationRequest true "Requester and range"
// @Success 201 {object} helpers.APIResponse "data is the committed Reservation"
// @Failure 400 {object} helpers.APIResponse "error.code: malformed_range, past_start or outside_booking_window"
// @Failure 409 {object} helpers.APIResponse "error.code: room_blocked, lesson_conflict or reservation_conflict"
// @Router /admin/rooms/{roomID}/reservations [post]
func (c *AdminController) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req AdminCreateReservationRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	start, end, err := req.parse()
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	requester := domain.Requester{UserID: req.UserID, Name: req.RequesterName}
	res, err := c.Reservations.Create(r.Context(), r.PathValue("roomID"), requester, start, end)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusCreated, res)
}

// ListReservations godoc
// @Summary List reservations
// @Description Filter by effective status, room and user.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "active, finished or cancelled"
// @Param room_id query string false "Room ID"
// @Param user_id query string false "User ID"
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} helpers.APIResponse "data is a ListReservationsResponse"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Router /admin/reservations [get]
func (c *AdminController) ListReservations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ReservationFilter{
		Status: domain.ReservationStatus(q.Get("status")),
		RoomID: q.Get("room_id"),
		UserID: q.Get("user_id"),
	}
	params := h.ParsePagination(r)
	list, total, err := c.Reservations.List(r.Context(), filter, params)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	meta := h.NewPaginationMeta(params.Page, params.PageSize, total)
	h.WriteJSONSuccess(w, http.StatusOK, ListReservationsResponse{Items: list, Pagination: meta})
}

// UpdateReservation godoc
// @Summary Edit a reservation
// @Description Reschedule and/or force-cancel. Moving into a new range runs the booking rules; cancelling does not.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param reservationID path string true "Reservation ID"
// @Param body body AdminUpdateReservationRequest true "Fields to change"
// @Success 200 {object} helpers.APIResponse "data is the updated Reservation"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request or malformed_range"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: lesson_conflict, reservation_conflict or invalid_transition"
// @Router /admin/reservations/{reservationID} [patch]
func (c *AdminController) UpdateReservation(w http.ResponseWriter, r *http.Request) {
	var req AdminUpdateReservationRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	var update domain.ReservationUpdate
	if req.Start != nil {
		t, err := h.ParseInstant("start", *req.Start)
		if err != nil {
			h.WriteServiceError(w, r, c.Logger, domain.Reject(domain.KindMalformedRange, "%v", err))
			return
		}
		update.Start = &t
	}
	if req.End != nil {
		t, err := h.ParseInstant("end", *req.End)
		if err != nil {
			h.WriteServiceError(w, r, c.Logger, domain.Reject(domain.KindMalformedRange, "%v", err))
			return
		}
		update.End = &t
	}
	if req.Status != nil {
		status := domain.ReservationStatus(*req.Status)
		update.Status = &status
	}
	res, err := c.Reservations.AdminUpdate(r.Context(), r.PathValue("reservationID"), update)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, res)
}

// BulkCancelReservations godoc
// @Summary Cancel many reservations
// @Description Cancels every listed reservation that is still active; others are skipped.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body BulkCancelRequest true "Reservation ids"
// @Success 200 {object} helpers.APIResponse "data is a BulkResult"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Router /admin/reservations/bulk-cancel [post]
func (c *AdminController) BulkCancelReservations(w http.ResponseWriter, r *http.Request) {
	var req BulkCancelRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	n, err := c.Reservations.BulkCancel(r.Context(), req.IDs)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, BulkResult{Requested: len(req.IDs), Updated: n})
}

// GetStats godoc
// @Summary Dashboard statistics
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse "data is a Stats"
// @Router /admin/stats [get]
func (c *AdminController) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.Stats.Get(r.Context())
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, stats)
}

// ListUsers godoc
// @Summary List users
// @Description Ordered by name. q matches part of the name; role may repeat or hold a comma-separated list.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param q query string false "Name substring"
// @Param role query []string false "student, teacher or admin" collectionFormat(multi)
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} helpers.APIResponse "data is a ListUsersResponse"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Router /admin/users [get]
func (c *AdminController) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.UserFilter{Query: q.Get("q")}
	for _, v := range q["role"] {
		for _, role := range strings.Split(v, ",") {
			if role = strings.TrimSpace(role); role != "" {
				filter.Roles = append(filter.Roles, domain.Role(strings.ToLower(role)))
			}
		}
	}
	params := h.ParsePagination(r)
	users, total, err := c.Users.AdminListUsers(r.Context(), filter, params)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	meta := h.NewPaginationMeta(params.Page, params.PageSize, total)
	h.WriteJSONSuccess(w, http.StatusOK, ListUsersResponse{Items: users, Pagination: meta})
}

// CreateUser godoc
// @Summary Create a user
// @Description Unlike sign-up, any role can be given, admin included. Role defaults to student.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body AdminCreateUserRequest true "User data"
// @Success 201 {object} helpers.APIResponse "data is the created User"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Router /admin/users [post]
func (c *AdminController) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req AdminCreateUserRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	user, err := c.Users.AdminCreateUser(r.Context(), domain.SignUpInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     domain.Role(req.Role),
	})
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusCreated, user)
}

// UpdateUser godoc
// @Summary Edit a user
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userID path string true "User ID"
// @Param body body AdminUpdateUserRequest true "Fields to change"
// @Success 200 {object} helpers.APIResponse "data is the updated User"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Router /admin/users/{userID} [patch]
func (c *AdminController) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req AdminUpdateUserRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	patch := domain.UserPatch{Name: req.Name, Email: req.Email}
	if req.Role != nil {
		role := domain.Role(*req.Role)
		patch.Role = &role
	}
	user, err := c.Users.AdminUpdateUser(r.Context(), r.PathValue("userID"), patch)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, user)
}

// ResetPassword godoc
// @Summary Reset a user's password
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userID path string true "User ID"
// @Param body body ResetPasswordRequest true "New password"
// @Success 200 {object} helpers.APIResponse "data is the User"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /admin/users/{userID}/reset-password [post]
func (c *AdminController) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	user, err := c.Users.ResetPassword(r.Context(), r.PathValue("userID"), req.Password)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, user)
}
