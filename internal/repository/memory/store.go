// Package memory is an in-process implementation of the repositories, used
// when no database is configured and by service tests. Commits against one
// room are serialised with a bounded per-room lock, so it honours the same
// conflict guarantees as the Postgres store within a single process.
package memory

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"roombooking/internal/booking"
	"roombooking/internal/domain"
	"roombooking/internal/interval"
	"roombooking/internal/lock"
)

// Store holds every entity in maps guarded by one RWMutex.
type Store struct {
	mu           sync.RWMutex
	rooms        map[string]*domain.Room
	lessons      map[string]*domain.Lesson
	reservations map[string]*domain.Reservation
	users        map[string]*domain.User
	roomLocks    *lock.Local
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		rooms:        make(map[string]*domain.Room),
		lessons:      make(map[string]*domain.Lesson),
		reservations: make(map[string]*domain.Reservation),
		users:        make(map[string]*domain.User),
		roomLocks:    lock.NewLocal(),
	}
}

func (s *Store) Rooms() domain.RoomRepository               { return &roomRepository{s} }
func (s *Store) Lessons() domain.LessonRepository           { return &lessonRepository{s} }
func (s *Store) Reservations() domain.ReservationRepository { return &reservationRepository{s} }
func (s *Store) Users() domain.UserRepository               { return &userRepository{s} }

func newID() string {
	return uuid.NewString()
}

type roomRepository struct{ s *Store }

func (r *roomRepository) Create(_ context.Context, room *domain.Room) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.rooms {
		if strings.EqualFold(existing.Name, room.Name) {
			return domain.ErrDuplicateName
		}
	}
	room.ID = newID()
	r.s.rooms[room.ID] = copyRoom(room)
	return nil
}

func (r *roomRepository) GetByID(_ context.Context, id string) (*domain.Room, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	room, ok := r.s.rooms[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyRoom(room), nil
}

func (r *roomRepository) List(_ context.Context) ([]*domain.Room, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*domain.Room, 0, len(r.s.rooms))
	for _, room := range r.s.rooms {
		out = append(out, copyRoom(room))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *roomRepository) Update(_ context.Context, room *domain.Room) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.rooms[room.ID]; !ok {
		return domain.ErrNotFound
	}
	for id, existing := range r.s.rooms {
		if id != room.ID && strings.EqualFold(existing.Name, room.Name) {
			return domain.ErrDuplicateName
		}
	}
	r.s.rooms[room.ID] = copyRoom(room)
	return nil
}

func (r *roomRepository) SetBlocked(_ context.Context, ids []string, blocked bool) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	now := time.Now().UTC()
	for _, id := range ids {
		if room, ok := r.s.rooms[id]; ok {
			room.Blocked = blocked
			room.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

type lessonRepository struct{ s *Store }

func (r *lessonRepository) Create(_ context.Context, l *domain.Lesson) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.rooms[l.RoomID]; !ok {
		return domain.ErrNotFound
	}
	l.ID = newID()
	cp := *l
	r.s.lessons[l.ID] = &cp
	return nil
}

func (r *lessonRepository) GetByID(_ context.Context, id string) (*domain.Lesson, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	l, ok := r.s.lessons[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *lessonRepository) ListByRoom(_ context.Context, roomID string) ([]*domain.Lesson, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*domain.Lesson, 0)
	for _, l := range r.s.lessons {
		if l.RoomID == roomID {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		return out[i].Start < out[j].Start
	})
	return out, nil
}

func (r *lessonRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.lessons[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.lessons, id)
	return nil
}

type userRepository struct{ s *Store }

func (r *userRepository) Create(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Name == u.Name {
			return domain.ErrDuplicateName
		}
	}
	u.ID = newID()
	cp := *u
	r.s.users[u.ID] = &cp
	return nil
}

func (r *userRepository) GetByName(_ context.Context, name string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Name == name {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *userRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *userRepository) List(_ context.Context, f domain.UserFilter, page domain.PaginationParams) ([]*domain.User, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	query := strings.ToLower(strings.TrimSpace(f.Query))
	var all []*domain.User
	for _, u := range r.s.users {
		if query != "" && !strings.Contains(strings.ToLower(u.Name), query) {
			continue
		}
		if len(f.Roles) > 0 && !slices.Contains(f.Roles, u.Role) {
			continue
		}
		cp := *u
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	lo, hi := page.Window(len(all))
	return append([]*domain.User{}, all[lo:hi]...), len(all), nil
}

func (r *userRepository) Update(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.ID]; !ok {
		return domain.ErrNotFound
	}
	for id, existing := range r.s.users {
		if id != u.ID && existing.Name == u.Name {
			return domain.ErrDuplicateName
		}
	}
	cp := *u
	r.s.users[u.ID] = &cp
	return nil
}

type reservationRepository struct{ s *Store }

func (r *reservationRepository) GetByID(_ context.Context, id string) (*domain.Reservation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	res, ok := r.s.reservations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *res
	return &cp, nil
}

func (r *reservationRepository) ListActiveByRoom(_ context.Context, roomID string, span interval.Interval) ([]*domain.Reservation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.activeLocked(roomID, span), nil
}

// activeLocked expects r.s.mu to be held.
func (r *reservationRepository) activeLocked(roomID string, span interval.Interval) []*domain.Reservation {
	out := make([]*domain.Reservation, 0)
	for _, res := range r.s.reservations {
		if res.RoomID == roomID && res.Status == domain.StatusActive && interval.Overlaps(res.Interval(), span) {
			cp := *res
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func (r *reservationRepository) ListByUser(_ context.Context, userID string) ([]*domain.Reservation, error) {
	return r.filter(func(res *domain.Reservation) bool { return res.UserID == userID }), nil
}

func (r *reservationRepository) ListByRoom(ctx context.Context, roomID string, page domain.PaginationParams) ([]*domain.Reservation, int, error) {
	return r.List(ctx, domain.ReservationFilter{RoomID: roomID}, page)
}

func (r *reservationRepository) List(_ context.Context, f domain.ReservationFilter, page domain.PaginationParams) ([]*domain.Reservation, int, error) {
	all := r.filter(func(res *domain.Reservation) bool {
		if f.RoomID != "" && res.RoomID != f.RoomID {
			return false
		}
		if f.UserID != "" && res.UserID != f.UserID {
			return false
		}
		return f.Status == "" || res.EffectiveStatus(f.Now) == f.Status
	})
	lo, hi := page.Window(len(all))
	return all[lo:hi], len(all), nil
}

// filter returns copies of matching reservations, newest start first.
func (r *reservationRepository) filter(keep func(*domain.Reservation) bool) []*domain.Reservation {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*domain.Reservation, 0)
	for _, res := range r.s.reservations {
		if keep(res) {
			cp := *res
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.After(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *reservationRepository) InsertIfNoConflict(ctx context.Context, res *domain.Reservation) error {
	release, err := r.s.roomLocks.Acquire(ctx, res.RoomID)
	if err != nil {
		return lockError(err)
	}
	defer release()

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.rooms[res.RoomID]; !ok {
		return domain.Reject(domain.KindNotFound, "room not found")
	}
	if hit := booking.FirstOverlap(r.activeLocked(res.RoomID, res.Interval()), res.Interval(), ""); hit != nil {
		return booking.ConflictWith(hit)
	}
	res.ID = newID()
	cp := *res
	r.s.reservations[res.ID] = &cp
	return nil
}

func (r *reservationRepository) RescheduleIfNoConflict(ctx context.Context, id string, span interval.Interval) (*domain.Reservation, error) {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	release, err := r.s.roomLocks.Acquire(ctx, current.RoomID)
	if err != nil {
		return nil, lockError(err)
	}
	defer release()

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := r.s.reservations[id]
	if stored.Status != domain.StatusActive {
		return nil, domain.Reject(domain.KindInvalidTransition, "reservation %s is no longer active", id)
	}
	if hit := booking.FirstOverlap(r.activeLocked(stored.RoomID, span), span, id); hit != nil {
		return nil, booking.ConflictWith(hit)
	}
	stored.Start, stored.End = span.Start, span.End
	stored.UpdatedAt = time.Now().UTC()
	cp := *stored
	return &cp, nil
}

func (r *reservationRepository) UpdateStatus(_ context.Context, id string, from, to domain.ReservationStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if res.Status != from {
		return false, nil
	}
	res.Status = to
	res.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *reservationRepository) CancelMany(_ context.Context, ids []string, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, id := range ids {
		res, ok := r.s.reservations[id]
		if !ok || res.EffectiveStatus(now) != domain.StatusActive {
			continue
		}
		res.Status = domain.StatusCancelled
		res.UpdatedAt = now
		n++
	}
	return n, nil
}

func (r *reservationRepository) CountByStatus(_ context.Context, now time.Time) (map[domain.ReservationStatus]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := map[domain.ReservationStatus]int{
		domain.StatusActive:    0,
		domain.StatusFinished:  0,
		domain.StatusCancelled: 0,
	}
	for _, res := range r.s.reservations {
		counts[res.EffectiveStatus(now)]++
	}
	return counts, nil
}

func lockError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.RetryableConflict("timed out waiting for the room, try again")
	}
	return err
}

func copyRoom(room *domain.Room) *domain.Room {
	cp := *room
	if room.BookingWindow != nil {
		w := *room.BookingWindow
		cp.BookingWindow = &w
	}
	return &cp
}
