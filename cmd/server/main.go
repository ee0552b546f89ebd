package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/crypto/bcrypt"

	"roombooking/config"
	_ "roombooking/docs"
	"roombooking/internal/adapters/auth"
	"roombooking/internal/adapters/email"
	"roombooking/internal/booking"
	httpdelivery "roombooking/internal/delivery/http"
	"roombooking/internal/delivery/http/controllers"
	"roombooking/internal/delivery/http/middleware"
	"roombooking/internal/domain"
	"roombooking/internal/lock"
	"roombooking/internal/repository/memory"
	"roombooking/internal/repository/postgres"
	"roombooking/internal/schedule"
	"roombooking/internal/services"
)

// @title Room Booking API
// @version 1.0
// @description Room availability and reservation conflict resolution.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT.

// repositories groups the storage ports the services need.
type repositories struct {
	rooms        domain.RoomRepository
	lessons      domain.LessonRepository
	reservations domain.ReservationRepository
	users        domain.UserRepository
}

func main() {
	logger := config.NewLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	repos, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	locker, closeLocker, err := newLocker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLocker()

	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.Mail.Provider,
		FromAddress: cfg.Mail.FromAddress,
		FromName:    cfg.Mail.FromName,
		SES: email.SESConfig{
			Region:             cfg.Mail.AWSRegion,
			AccessKeyID:        cfg.Mail.AWSAccessKeyID,
			SecretAccessKey:    cfg.Mail.AWSSecretAccessKey,
			InsecureSkipVerify: cfg.Mail.SESInsecureSkipVerify,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}
	emailService := services.NewEmailService(mailer, email.NewTemplateRenderer(), logger)

	settings := services.Settings{
		Zone: schedule.NewZone(cfg.Booking.UTCOffset),
		Policy: booking.Policy{
			MinLead:     cfg.Booking.MinLead,
			MaxDuration: cfg.Booking.MaxDuration,
		},
		CommitTimeout: cfg.Booking.CommitTimeout,
		Horizon:       cfg.Booking.DefaultHorizon,
		MaxHorizon:    cfg.Booking.MaxHorizon,
	}

	hasher := auth.NewBcryptHasher(bcrypt.DefaultCost)
	if err := services.EnsureAdmin(ctx, repos.users, hasher, cfg.AdminName, cfg.AdminPassword, logger); err != nil {
		return err
	}

	authService := services.NewAuthService(repos.users, hasher, auth.NewJWTIssuer(cfg.JWTSecret), cfg.JWTExpiry, logger)
	roomService := services.NewRoomService(repos.rooms, repos.lessons, repos.reservations, settings, logger)
	lessonService := services.NewLessonService(repos.rooms, repos.lessons, settings, logger)
	reservationService := services.NewReservationService(repos.rooms, repos.lessons, repos.reservations, repos.users, locker, emailService, settings, logger)
	statsService := services.NewStatsService(repos.rooms, repos.reservations, settings)

	var limiter *middleware.RateLimiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst, logger)
	}

	handler := httpdelivery.NewRouter(httpdelivery.RouterConfig{
		Auth:         controllers.NewAuthController(logger, authService),
		Rooms:        controllers.NewRoomController(logger, roomService, lessonService, reservationService, cfg.Booking.DefaultHorizon),
		Reservations: controllers.NewReservationController(logger, reservationService),
		Admin:        controllers.NewAdminController(logger, roomService, lessonService, reservationService, statsService, authService),
		Verifier:     auth.NewJWTVerifier(cfg.JWTSecret),
		Logger:       logger,
		CORSOrigins:  cfg.CORSAllowedOrigins,
		RateLimiter:  limiter,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "err", err)
		}
	}()

	logger.Info("room booking API listening",
		"addr", server.Addr,
		"env", cfg.Environment,
		"store", cfg.StoreDriver,
		"lock", cfg.LockBackend,
		"utc_offset", cfg.Booking.UTCOffset.String(),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	logger.Info("server shut down")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repositories, func(), error) {
	if cfg.StoreDriver == config.StoreMemory {
		logger.Warn("using the in-memory store; data is lost on restart")
		store := memory.NewStore()
		return repositories{
			rooms:        store.Rooms(),
			lessons:      store.Lessons(),
			reservations: store.Reservations(),
			users:        store.Users(),
		}, func() {}, nil
	}

	db, err := postgres.Open(ctx, cfg.DBUrl)
	if err != nil {
		return repositories{}, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", "err", err)
		}
	}
	if cfg.DBMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			closeDB()
			return repositories{}, nil, err
		}
	}
	return postgresRepositories(db), closeDB, nil
}

func postgresRepositories(db *sql.DB) repositories {
	return repositories{
		rooms:        postgres.NewRoomRepository(db),
		lessons:      postgres.NewLessonRepository(db),
		reservations: postgres.NewReservationRepository(db),
		users:        postgres.NewUserRepository(db),
	}
}

// newLocker returns nil for LOCK_BACKEND=none; the store's own transaction is then the only guard.
func newLocker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.RoomLocker, func(), error) {
	switch cfg.LockBackend {
	case config.LockLocal:
		return lock.NewLocal(), func() {}, nil
	case config.LockRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		closeClient := func() {
			if err := client.Close(); err != nil {
				logger.Error("failed to close redis client", "err", err)
			}
		}
		// The lock must outlive the slowest commit it guards.
		return lock.NewRedis(client, 2*cfg.Booking.CommitTimeout, logger), closeClient, nil
	default:
		return nil, func() {}, nil
	}
}
