package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"roombooking/internal/availability"
	"roombooking/internal/domain"
	"roombooking/internal/interval"
)

type roomService struct {
	roomRepo        domain.RoomRepository
	lessonRepo      domain.LessonRepository
	reservationRepo domain.ReservationRepository
	settings        Settings
	logger          *slog.Logger
	now             func() time.Time
}

// NewRoomService creates a RoomService with the given repositories.
func NewRoomService(
	roomRepo domain.RoomRepository,
	lessonRepo domain.LessonRepository,
	reservationRepo domain.ReservationRepository,
	settings Settings,
	logger *slog.Logger,
) domain.RoomService {
	return &roomService{
		roomRepo:        roomRepo,
		lessonRepo:      lessonRepo,
		reservationRepo: reservationRepo,
		settings:        settings.withDefaults(),
		logger:          orDefault(logger),
		now:             time.Now,
	}
}

func (s *roomService) Create(ctx context.Context, room *domain.Room) error {
	ctx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	room.Name = strings.TrimSpace(room.Name)
	if room.Category == "" {
		room.Category = domain.CategoryPublic
	}
	if err := room.Validate(); err != nil {
		return err
	}
	now := s.now().UTC()
	room.CreatedAt, room.UpdatedAt = now, now
	if err := s.roomRepo.Create(ctx, room); err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	s.logger.InfoContext(ctx, "room created", "room_id", room.ID, "name", room.Name)
	return nil
}

func (s *roomService) Update(ctx context.Context, id string, patch domain.RoomPatch) (*domain.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	room, err := getRoom(ctx, s.roomRepo, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(room)
	if err := room.Validate(); err != nil {
		return nil, err
	}
	room.UpdatedAt = s.now().UTC()
	if err := s.roomRepo.Update(ctx, room); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Reject(domain.KindNotFound, "room %s not found", id)
		}
		return nil, fmt.Errorf("update room: %w", err)
	}
	s.logger.InfoContext(ctx, "room updated", "room_id", room.ID, "blocked", room.Blocked)
	return room, nil
}

// List returns every room with its live status at the current instant.
func (s *roomService) List(ctx context.Context) ([]*domain.RoomOverview, error) {
	ctx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	rooms, err := s.roomRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	now := s.now().UTC()
	ahead := interval.New(now, now.Add(s.settings.Horizon))

	out := make([]*domain.RoomOverview, 0, len(rooms))
	for _, room := range rooms {
		ov, err := s.overview(ctx, room, now, ahead)
		if err != nil {
			return nil, err
		}
		out = append(out, ov)
	}
	return out, nil
}

func (s *roomService) overview(ctx context.Context, room *domain.Room, now time.Time, ahead interval.Interval) (*domain.RoomOverview, error) {
	ov := &domain.RoomOverview{Room: room, Status: domain.RoomAvailable}
	if room.Blocked {
		ov.Status = domain.RoomBlocked
		return ov, nil
	}

	reservations, err := s.reservationRepo.ListActiveByRoom(ctx, room.ID, ahead)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	for _, r := range reservations {
		if !r.Start.After(now) && r.End.After(now) {
			ov.CurrentReservation = r
		} else if r.Start.After(now) && ov.NextReservation == nil {
			ov.NextReservation = r
		}
	}
	if ov.CurrentReservation != nil {
		ov.Status = domain.RoomOccupied
		return ov, nil
	}

	lessons, err := s.lessonRepo.ListByRoom(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	instant := interval.New(now, now.Add(time.Nanosecond))
	for _, o := range s.settings.Zone.ProjectSpan(instant, domain.WeeklyOf(lessons)) {
		if interval.Overlaps(o.Interval, instant) {
			ov.Status = domain.RoomOccupied
			break
		}
	}
	return ov, nil
}

// Get returns a room with its lessons, the active reservations and the free
// slots over horizon. An empty horizon defaults to the configured look-ahead.
func (s *roomService) Get(ctx context.Context, id string, horizon interval.Interval) (*domain.RoomDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	if horizon.Start.IsZero() && horizon.End.IsZero() {
		now := s.now().UTC().Truncate(time.Minute)
		horizon = interval.New(now, now.Add(s.settings.Horizon))
	}
	if err := s.settings.checkHorizon(horizon); err != nil {
		return nil, err
	}

	room, err := getRoom(ctx, s.roomRepo, id)
	if err != nil {
		return nil, err
	}
	lessons, err := s.lessonRepo.ListByRoom(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	reservations, err := s.reservationRepo.ListActiveByRoom(ctx, id, horizon)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	now := s.now()
	shown := make([]*domain.Reservation, 0, len(reservations))
	for _, r := range reservations {
		shown = append(shown, r.AsOf(now))
	}
	free := availability.FreeSlots(room, lessons, reservations, horizon, s.settings.Zone)
	if free == nil {
		free = []interval.Interval{}
	}
	return &domain.RoomDetail{
		Room:         room,
		Horizon:      horizon,
		Lessons:      lessons,
		Reservations: shown,
		FreeSlots:    free,
	}, nil
}

func (s *roomService) BulkSetBlocked(ctx context.Context, ids []string, blocked bool) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	if len(ids) == 0 {
		return 0, nil
	}
	n, err := s.roomRepo.SetBlocked(ctx, ids, blocked)
	if err != nil {
		return 0, fmt.Errorf("set rooms blocked: %w", err)
	}
	s.logger.InfoContext(ctx, "rooms bulk updated", "requested", len(ids), "updated", n, "blocked", blocked)
	return n, nil
}
