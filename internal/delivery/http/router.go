package http

import (
	"log/slog"
	"net/http"

	"roombooking/internal/delivery/http/controllers"
	h "roombooking/internal/delivery/http/helpers"
	"roombooking/internal/delivery/http/middleware"
	"roombooking/internal/domain"

	httpSwagger "github.com/swaggo/http-swagger"
)

// RouterConfig carries everything NewRouter wires together.
type RouterConfig struct {
	Auth         *controllers.AuthController
	Rooms        *controllers.RoomController
	Reservations *controllers.ReservationController
	Admin        *controllers.AdminController
	Verifier     domain.TokenVerifier
	Logger       *slog.Logger
	CORSOrigins  []string
	// RateLimiter is optional; nil disables per-IP limiting.
	RateLimiter *middleware.RateLimiter
}

// NewRouter initializes the HTTP router with all application routes and
// wraps it in the logging, CORS and rate limit middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	auth := middleware.RequireAuth(cfg.Verifier, cfg.Logger)
	admin := func(next http.HandlerFunc) http.HandlerFunc {
		return auth(middleware.RequireRole(domain.RoleAdmin)(next))
	}

	// Auth
	mux.HandleFunc("POST /auth/signup", cfg.Auth.SignUp)
	mux.HandleFunc("POST /auth/login", cfg.Auth.Login)
	mux.HandleFunc("GET /auth/me", auth(cfg.Auth.Me))

	// Rooms
	mux.HandleFunc("GET /rooms", auth(cfg.Rooms.List))
	mux.HandleFunc("GET /rooms/{roomID}", auth(cfg.Rooms.Get))
	mux.HandleFunc("GET /rooms/{roomID}/free-slots", auth(cfg.Rooms.FreeSlots))
	mux.HandleFunc("GET /rooms/{roomID}/lessons", auth(cfg.Rooms.ListLessons))
	mux.HandleFunc("GET /rooms/{roomID}/history", auth(cfg.Rooms.History))

	// Reservations
	mux.HandleFunc("POST /rooms/{roomID}/reservations", auth(cfg.Reservations.Create))
	mux.HandleFunc("GET /reservations/mine", auth(cfg.Reservations.Mine))
	mux.HandleFunc("PATCH /reservations/{reservationID}", auth(cfg.Reservations.Reschedule))
	mux.HandleFunc("DELETE /reservations/{reservationID}", auth(cfg.Reservations.Cancel))

	// Admin
	mux.HandleFunc("POST /admin/rooms", admin(cfg.Admin.CreateRoom))
	mux.HandleFunc("PATCH /admin/rooms/{roomID}", admin(cfg.Admin.UpdateRoom))
	mux.HandleFunc("POST /admin/rooms/bulk-block", admin(cfg.Admin.BulkBlockRooms))
	mux.HandleFunc("POST /admin/rooms/{roomID}/lessons", admin(cfg.Admin.CreateLesson))
	mux.HandleFunc("DELETE /admin/lessons/{lessonID}", admin(cfg.Admin.DeleteLesson))
	mux.HandleFunc("POST /admin/rooms/{roomID}/reservations", admin(cfg.Admin.CreateReservation))
	mux.HandleFunc("GET /admin/reservations", admin(cfg.Admin.ListReservations))
	mux.HandleFunc("PATCH /admin/reservations/{reservationID}", admin(cfg.Admin.UpdateReservation))
	mux.HandleFunc("POST /admin/reservations/bulk-cancel", admin(cfg.Admin.BulkCancelReservations))
	mux.HandleFunc("GET /admin/stats", admin(cfg.Admin.GetStats))
	mux.HandleFunc("GET /admin/users", admin(cfg.Admin.ListUsers))
	mux.HandleFunc("POST /admin/users", admin(cfg.Admin.CreateUser))
	mux.HandleFunc("PATCH /admin/users/{userID}", admin(cfg.Admin.UpdateUser))
	mux.HandleFunc("POST /admin/users/{userID}/reset-password", admin(cfg.Admin.ResetPassword))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		h.WriteJSONSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	var handler http.Handler = mux
	if cfg.RateLimiter != nil {
		handler = cfg.RateLimiter.Middleware(handler)
	}
	handler = middleware.CORS(cfg.CORSOrigins, handler)
	return middleware.LoggingMiddleware(cfg.Logger, handler)
}
