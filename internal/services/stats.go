package services

import (
	"context"
	"fmt"
	"time"

	"roombooking/internal/domain"
)

type statsService struct {
	roomRepo        domain.RoomRepository
	reservationRepo domain.ReservationRepository
	timeout         time.Duration
	now             func() time.Time
}

// NewStatsService creates the admin dashboard statistics service.
func NewStatsService(roomRepo domain.RoomRepository, reservationRepo domain.ReservationRepository, settings Settings) domain.StatsService {
	return &statsService{
		roomRepo:        roomRepo,
		reservationRepo: reservationRepo,
		timeout:         settings.withDefaults().Timeout,
		now:             time.Now,
	}
}

func (s *statsService) Get(ctx context.Context) (*domain.Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rooms, err := s.roomRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	stats := &domain.Stats{
		RoomsTotal: len(rooms),
		RoomsByCategory: map[domain.RoomCategory]int{
			domain.CategoryPublic:  0,
			domain.CategoryAdmin:   0,
			domain.CategoryService: 0,
		},
	}
	for _, r := range rooms {
		stats.RoomsByCategory[r.Category]++
		if r.Blocked {
			stats.RoomsBlocked++
		}
	}
	stats.ReservationsByStatus, err = s.reservationRepo.CountByStatus(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("count reservations: %w", err)
	}
	return stats, nil
}
