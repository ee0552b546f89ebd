package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"roombooking/internal/booking"
	"roombooking/internal/domain"
	"roombooking/internal/interval"
	"roombooking/internal/schedule"
)

// Settings are the booking parameters shared by the services.
type Settings struct {
	Zone   schedule.Zone
	Policy booking.Policy
	// CommitTimeout bounds lock acquisition plus the conflict-checked write.
	CommitTimeout time.Duration
	// Horizon is the look-ahead used when a caller asks for no explicit range.
	Horizon time.Duration
	// MaxHorizon is the longest span a free-slot query may cover.
	MaxHorizon time.Duration
	// Timeout bounds plain reads and writes.
	Timeout time.Duration
}

// DefaultSettings returns UTC projection with the default booking policy.
func DefaultSettings() Settings {
	return Settings{
		Zone:          schedule.UTC,
		Policy:        booking.DefaultPolicy(),
		CommitTimeout: 5 * time.Second,
		Horizon:       24 * time.Hour,
		MaxHorizon:    31 * 24 * time.Hour,
		Timeout:       10 * time.Second,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.CommitTimeout <= 0 {
		s.CommitTimeout = d.CommitTimeout
	}
	if s.Horizon <= 0 {
		s.Horizon = d.Horizon
	}
	if s.MaxHorizon <= 0 {
		s.MaxHorizon = d.MaxHorizon
	}
	if s.Timeout <= 0 {
		s.Timeout = d.Timeout
	}
	return s
}

// checkHorizon rejects empty horizons and ones longer than MaxHorizon.
func (s Settings) checkHorizon(horizon interval.Interval) error {
	if horizon.Empty() {
		return domain.Reject(domain.KindMalformedRange, "horizon end must be after start")
	}
	if horizon.Duration() > s.MaxHorizon {
		return domain.Reject(domain.KindMalformedRange, "horizon must not exceed %s", s.MaxHorizon)
	}
	return nil
}

// getRoom loads a room, turning a miss into a NotFound rejection.
func getRoom(ctx context.Context, rooms domain.RoomRepository, id string) (*domain.Room, error) {
	room, err := rooms.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Reject(domain.KindNotFound, "room %s not found", id)
		}
		return nil, fmt.Errorf("get room: %w", err)
	}
	return room, nil
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
