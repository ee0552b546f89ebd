package domain

import (
	"context"
	"time"

	"roombooking/internal/interval"
)

// ReservationStatus is the recorded or derived lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusActive    ReservationStatus = "active"
	StatusFinished  ReservationStatus = "finished"
	StatusCancelled ReservationStatus = "cancelled"
)

func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusActive, StatusFinished, StatusCancelled:
		return true
	}
	return false
}

// Reservation is a booking of one room for an absolute time range.
// swagger:model Reservation
type Reservation struct {
	ID     string `json:"id"`
	RoomID string `json:"room_id"`
	// UserID is empty for reservations made by an administrator on behalf of a free-text requester.
	UserID        string            `json:"user_id,omitempty"`
	RequesterName string            `json:"requester_name"`
	Start         time.Time         `json:"start"`
	End           time.Time         `json:"end"`
	Status        ReservationStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Interval returns the reserved [Start, End) range.
func (r *Reservation) Interval() interval.Interval {
	return interval.New(r.Start, r.End)
}

// EffectiveStatus derives finished for an active reservation whose end has passed.
func (r *Reservation) EffectiveStatus(now time.Time) ReservationStatus {
	if r.Status == StatusActive && !r.End.After(now) {
		return StatusFinished
	}
	return r.Status
}

// AsOf returns a copy whose Status is the effective status at now.
func (r *Reservation) AsOf(now time.Time) *Reservation {
	cp := *r
	cp.Status = r.EffectiveStatus(now)
	return &cp
}

// Requester identifies who a reservation is for.
type Requester struct {
	UserID string
	Name   string
}

// ReservationFilter narrows admin listings. Status is matched against the
// effective status at Now.
type ReservationFilter struct {
	Status ReservationStatus
	RoomID string
	UserID string
	Now    time.Time
}

// ReservationRepository defines storage operations for reservations.
//
// InsertIfNoConflict and RescheduleIfNoConflict are the only writes that move a
// reservation into an active interval. Each re-reads the room's active
// reservations and writes in one atomic unit, returning a ReservationConflict
// Rejection when another active reservation overlaps.
type ReservationRepository interface {
	GetByID(ctx context.Context, id string) (*Reservation, error)
	// ListActiveByRoom returns reservations with recorded status active that overlap span, ordered by start.
	ListActiveByRoom(ctx context.Context, roomID string, span interval.Interval) ([]*Reservation, error)
	ListByUser(ctx context.Context, userID string) ([]*Reservation, error)
	ListByRoom(ctx context.Context, roomID string, page PaginationParams) ([]*Reservation, int, error)
	List(ctx context.Context, filter ReservationFilter, page PaginationParams) ([]*Reservation, int, error)
	InsertIfNoConflict(ctx context.Context, r *Reservation) error
	RescheduleIfNoConflict(ctx context.Context, id string, span interval.Interval) (*Reservation, error)
	// UpdateStatus sets status to `to` only if the row currently has status `from`.
	UpdateStatus(ctx context.Context, id string, from, to ReservationStatus) (bool, error)
	// CancelMany cancels the listed reservations still active at now and returns how many changed.
	CancelMany(ctx context.Context, ids []string, now time.Time) (int, error)
	CountByStatus(ctx context.Context, now time.Time) (map[ReservationStatus]int, error)
}

// ReservationUpdate is an administrator edit. Reschedule and cancel may be combined;
// cancellation wins.
type ReservationUpdate struct {
	Start  *time.Time
	End    *time.Time
	Status *ReservationStatus
}

// ReservationService is the booking engine exposed to callers.
type ReservationService interface {
	ComputeFreeSlots(ctx context.Context, roomID string, horizon interval.Interval) ([]interval.Interval, error)
	Create(ctx context.Context, roomID string, requester Requester, start, end time.Time) (*Reservation, error)
	// Reschedule moves a reservation owned by actor. Admins may move any reservation.
	Reschedule(ctx context.Context, actor *Claims, id string, start, end time.Time) (*Reservation, error)
	Cancel(ctx context.Context, actor *Claims, id string) (*Reservation, error)
	AdminUpdate(ctx context.Context, id string, update ReservationUpdate) (*Reservation, error)
	BulkCancel(ctx context.Context, ids []string) (int, error)
	ListMine(ctx context.Context, userID string) ([]*Reservation, error)
	RoomHistory(ctx context.Context, roomID string, page PaginationParams) ([]*Reservation, int, error)
	List(ctx context.Context, filter ReservationFilter, page PaginationParams) ([]*Reservation, int, error)
}

// RoomLocker serialises commits against one room across callers. Acquire waits
// until the lock is held or ctx is done; release must be called exactly once.
type RoomLocker interface {
	Acquire(ctx context.Context, roomID string) (release func(), err error)
}
