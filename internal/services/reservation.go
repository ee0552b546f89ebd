package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"roombooking/internal/availability"
	"roombooking/internal/booking"
	"roombooking/internal/domain"
	"roombooking/internal/interval"
)

type reservationService struct {
	roomRepo        domain.RoomRepository
	lessonRepo      domain.LessonRepository
	reservationRepo domain.ReservationRepository
	userRepo        domain.UserRepository
	locker          domain.RoomLocker
	emailService    domain.EmailService
	settings        Settings
	logger          *slog.Logger
	now             func() time.Time
}

// NewReservationService wires the booking engine. locker and emailService may
// be nil: without a locker the store's own transaction is the only guard, and
// without an email service no notifications are sent.
func NewReservationService(
	roomRepo domain.RoomRepository,
	lessonRepo domain.LessonRepository,
	reservationRepo domain.ReservationRepository,
	userRepo domain.UserRepository,
	locker domain.RoomLocker,
	emailService domain.EmailService,
	settings Settings,
	logger *slog.Logger,
) domain.ReservationService {
	return &reservationService{
		roomRepo:        roomRepo,
		lessonRepo:      lessonRepo,
		reservationRepo: reservationRepo,
		userRepo:        userRepo,
		locker:          locker,
		emailService:    emailService,
		settings:        settings.withDefaults(),
		logger:          orDefault(logger),
		now:             time.Now,
	}
}

func (s *reservationService) ComputeFreeSlots(ctx context.Context, roomID string, horizon interval.Interval) ([]interval.Interval, error) {
	ctx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	if err := s.settings.checkHorizon(horizon); err != nil {
		return nil, err
	}
	room, err := getRoom(ctx, s.roomRepo, roomID)
	if err != nil {
		return nil, err
	}
	lessons, err := s.lessonRepo.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	reservations, err := s.reservationRepo.ListActiveByRoom(ctx, roomID, horizon)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	slots := availability.FreeSlots(room, lessons, reservations, horizon, s.settings.Zone)
	if slots == nil {
		slots = []interval.Interval{}
	}
	return slots, nil
}

func (s *reservationService) Create(ctx context.Context, roomID string, requester domain.Requester, start, end time.Time) (*domain.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	name, err := s.requesterName(ctx, requester)
	if err != nil {
		return nil, err
	}
	room, err := getRoom(ctx, s.roomRepo, roomID)
	if err != nil {
		return nil, err
	}
	lessons, err := s.lessonRepo.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}

	now := s.now()
	span := interval.New(start.UTC(), end.UTC())
	if err := booking.Validate(room, lessons, span, now, s.settings.Policy, s.settings.Zone); err != nil {
		return nil, err
	}

	res := &domain.Reservation{
		RoomID:        roomID,
		UserID:        requester.UserID,
		RequesterName: name,
		Start:         span.Start,
		End:           span.End,
		Status:        domain.StatusActive,
		CreatedAt:     now.UTC(),
		UpdatedAt:     now.UTC(),
	}
	err = s.commit(ctx, roomID, func(ctx context.Context) error {
		return s.reservationRepo.InsertIfNoConflict(ctx, res)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "reservation committed", "room_id", roomID, "reservation_id", res.ID, "start", res.Start, "end", res.End)
	s.notify(ctx, room, res, false)
	return res, nil
}

func (s *reservationService) Reschedule(ctx context.Context, actor *domain.Claims, id string, start, end time.Time) (*domain.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	res, err := s.getOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.reschedule(ctx, res, start, end)
}

func (s *reservationService) reschedule(ctx context.Context, res *domain.Reservation, start, end time.Time) (*domain.Reservation, error) {
	now := s.now()
	if status := res.EffectiveStatus(now); status != domain.StatusActive {
		return nil, domain.Reject(domain.KindInvalidTransition, "a %s reservation cannot be moved", status)
	}
	room, err := getRoom(ctx, s.roomRepo, res.RoomID)
	if err != nil {
		return nil, err
	}
	lessons, err := s.lessonRepo.ListByRoom(ctx, res.RoomID)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}

	span := interval.New(start.UTC(), end.UTC())
	if err := booking.Validate(room, lessons, span, now, s.settings.Policy, s.settings.Zone); err != nil {
		return nil, err
	}

	var moved *domain.Reservation
	err = s.commit(ctx, res.RoomID, func(ctx context.Context) error {
		var err error
		moved, err = s.reservationRepo.RescheduleIfNoConflict(ctx, res.ID, span)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "reservation rescheduled", "room_id", res.RoomID, "reservation_id", res.ID, "start", moved.Start, "end", moved.End)
	return moved, nil
}

func (s *reservationService) Cancel(ctx context.Context, actor *domain.Claims, id string) (*domain.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	res, err := s.getOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.cancel(ctx, res)
}

// cancel moves an effectively active reservation to cancelled. No conflict
// check is needed when leaving an interval.
func (s *reservationService) cancel(ctx context.Context, res *domain.Reservation) (*domain.Reservation, error) {
	now := s.now()
	if status := res.EffectiveStatus(now); status != domain.StatusActive {
		return nil, domain.Reject(domain.KindInvalidTransition, "a %s reservation cannot be cancelled", status)
	}
	changed, err := s.reservationRepo.UpdateStatus(ctx, res.ID, domain.StatusActive, domain.StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("cancel reservation: %w", err)
	}
	if !changed {
		return nil, domain.Reject(domain.KindInvalidTransition, "reservation %s is no longer active", res.ID)
	}
	res.Status = domain.StatusCancelled
	res.UpdatedAt = now.UTC()
	s.logger.InfoContext(ctx, "reservation cancelled", "room_id", res.RoomID, "reservation_id", res.ID)

	if room, err := s.roomRepo.GetByID(ctx, res.RoomID); err == nil {
		s.notify(ctx, room, res, true)
	}
	return res, nil
}

func (s *reservationService) AdminUpdate(ctx context.Context, id string, update domain.ReservationUpdate) (*domain.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	res, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Status != nil {
		switch *update.Status {
		case domain.StatusCancelled:
			return s.cancel(ctx, res)
		case domain.StatusActive:
			if status := res.EffectiveStatus(s.now()); status != domain.StatusActive {
				return nil, domain.Reject(domain.KindInvalidTransition, "a %s reservation cannot be reactivated", status)
			}
		default:
			return nil, domain.Reject(domain.KindInvalidTransition, "status cannot be set to %q", *update.Status)
		}
	}

	if update.Start == nil && update.End == nil {
		return res.AsOf(s.now()), nil
	}
	start, end := res.Start, res.End
	if update.Start != nil {
		start = *update.Start
	}
	if update.End != nil {
		end = *update.End
	}
	return s.reschedule(ctx, res, start, end)
}

func (s *reservationService) BulkCancel(ctx context.Context, ids []string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	if len(ids) == 0 {
		return 0, nil
	}
	n, err := s.reservationRepo.CancelMany(ctx, ids, s.now())
	if err != nil {
		return 0, fmt.Errorf("cancel reservations: %w", err)
	}
	s.logger.InfoContext(ctx, "reservations bulk cancelled", "requested", len(ids), "cancelled", n)
	return n, nil
}

func (s *reservationService) ListMine(ctx context.Context, userID string) ([]*domain.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	list, err := s.reservationRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return asOf(list, s.now()), nil
}

func (s *reservationService) RoomHistory(ctx context.Context, roomID string, page domain.PaginationParams) ([]*domain.Reservation, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	if _, err := getRoom(ctx, s.roomRepo, roomID); err != nil {
		return nil, 0, err
	}
	list, total, err := s.reservationRepo.ListByRoom(ctx, roomID, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list room reservations: %w", err)
	}
	return asOf(list, s.now()), total, nil
}

func (s *reservationService) List(ctx context.Context, filter domain.ReservationFilter, page domain.PaginationParams) ([]*domain.Reservation, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, filter.Status)
	}
	filter.Now = s.now()
	list, total, err := s.reservationRepo.List(ctx, filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list reservations: %w", err)
	}
	return asOf(list, filter.Now), total, nil
}

// commit runs write under the room lock, both bounded by CommitTimeout.
// Failing to get exclusivity in time is a retryable conflict, never a hang.
func (s *reservationService) commit(ctx context.Context, roomID string, write func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.settings.CommitTimeout)
	defer cancel()

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, roomID)
		if err != nil {
			if interrupted(err) {
				s.logger.WarnContext(ctx, "room lock not acquired", "room_id", roomID, "error", err)
				return domain.RetryableConflict("timed out waiting for the room, try again")
			}
			return fmt.Errorf("lock room: %w", err)
		}
		defer release()
	}

	err := write(ctx)
	if err == nil {
		return nil
	}
	if rej, ok := domain.AsRejection(err); ok {
		if rej.Retryable {
			s.logger.WarnContext(ctx, "retryable commit conflict", "room_id", roomID, "kind", rej.Kind)
		}
		return rej
	}
	if interrupted(err) {
		return domain.RetryableConflict("timed out waiting for the room, try again")
	}
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Reject(domain.KindNotFound, "reservation not found")
	}
	return fmt.Errorf("commit reservation: %w", err)
}

func (s *reservationService) get(ctx context.Context, id string) (*domain.Reservation, error) {
	res, err := s.reservationRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Reject(domain.KindNotFound, "reservation %s not found", id)
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

// getOwned loads a reservation the actor may act on. Admins may act on any.
func (s *reservationService) getOwned(ctx context.Context, actor *domain.Claims, id string) (*domain.Reservation, error) {
	res, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, domain.ErrUnauthorized
	}
	if !actor.IsAdmin() && (res.UserID == "" || res.UserID != actor.UserID) {
		return nil, domain.ErrForbidden
	}
	return res, nil
}

func (s *reservationService) requesterName(ctx context.Context, requester domain.Requester) (string, error) {
	if name := strings.TrimSpace(requester.Name); name != "" {
		return name, nil
	}
	if requester.UserID == "" {
		return "", fmt.Errorf("%w: requester is required", domain.ErrInvalidInput)
	}
	user, err := s.userRepo.GetByID(ctx, requester.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("%w: unknown user %s", domain.ErrInvalidInput, requester.UserID)
		}
		return "", fmt.Errorf("get user: %w", err)
	}
	return user.Name, nil
}

// notify sends a best-effort email to the requester. Failures are logged only.
func (s *reservationService) notify(ctx context.Context, room *domain.Room, res *domain.Reservation, cancelled bool) {
	if s.emailService == nil || res.UserID == "" {
		return
	}
	user, err := s.userRepo.GetByID(ctx, res.UserID)
	if err != nil || user.Email == "" {
		return
	}
	loc := s.settings.Zone.Location()
	data := &domain.ReservationEmailData{
		Email:         user.Email,
		RequesterName: res.RequesterName,
		RoomName:      room.Name,
		ReservationID: res.ID,
		Start:         res.Start.In(loc).Format("Mon 02 Jan 2006 15:04 MST"),
		End:           res.End.In(loc).Format("Mon 02 Jan 2006 15:04 MST"),
	}
	if cancelled {
		err = s.emailService.SendReservationCancelled(ctx, data)
	} else {
		err = s.emailService.SendReservationConfirmed(ctx, data)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "reservation email failed", "reservation_id", res.ID, "err", err)
	}
}

func asOf(list []*domain.Reservation, now time.Time) []*domain.Reservation {
	out := make([]*domain.Reservation, 0, len(list))
	for _, r := range list {
		out = append(out, r.AsOf(now))
	}
	return out
}

// interrupted reports whether err comes from the commit deadline or from the
// caller going away. Neither says anything about the reservation itself.
func interrupted(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
