package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"roombooking/internal/interval"
	"roombooking/internal/schedule"
)

// RoomCategory groups rooms by who may use them.
type RoomCategory string

const (
	CategoryPublic  RoomCategory = "public"
	CategoryAdmin   RoomCategory = "admin"
	CategoryService RoomCategory = "service"
)

func (c RoomCategory) Valid() bool {
	switch c {
	case CategoryPublic, CategoryAdmin, CategoryService:
		return true
	}
	return false
}

// Room is a bookable physical room.
// swagger:model Room
type Room struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Category RoomCategory `json:"category"`
	Blocked  bool         `json:"blocked"`
	// BookingWindow restricts reservations to a daily wall-clock range; nil means unrestricted.
	BookingWindow *schedule.DailyRange `json:"booking_window,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// NewRoom returns a new Room with the given fields. ID is typically set by the repository on create.
func NewRoom(name string, category RoomCategory, window *schedule.DailyRange, createdAt, updatedAt time.Time) *Room {
	return &Room{
		Name:          name,
		Category:      category,
		BookingWindow: window,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}
}

// Validate checks the room invariants.
func (r *Room) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: room name is required", ErrInvalidInput)
	}
	if !r.Category.Valid() {
		return fmt.Errorf("%w: unknown room category %q", ErrInvalidInput, r.Category)
	}
	if r.BookingWindow != nil {
		if err := r.BookingWindow.Validate(); err != nil {
			return fmt.Errorf("%w: booking window: %v", ErrInvalidInput, err)
		}
	}
	return nil
}

// RoomPatch is a partial update; nil fields are left unchanged.
type RoomPatch struct {
	Name               *string
	Category           *RoomCategory
	Blocked            *bool
	BookingWindow      *schedule.DailyRange
	ClearBookingWindow bool
}

// Apply copies the set fields of p onto r.
func (p RoomPatch) Apply(r *Room) {
	if p.Name != nil {
		r.Name = strings.TrimSpace(*p.Name)
	}
	if p.Category != nil {
		r.Category = *p.Category
	}
	if p.Blocked != nil {
		r.Blocked = *p.Blocked
	}
	if p.ClearBookingWindow {
		r.BookingWindow = nil
	} else if p.BookingWindow != nil {
		w := *p.BookingWindow
		r.BookingWindow = &w
	}
}

// RoomStatus is the live state of a room shown in listings.
type RoomStatus string

const (
	RoomAvailable RoomStatus = "available"
	RoomOccupied  RoomStatus = "occupied"
	RoomBlocked   RoomStatus = "blocked"
)

// RoomOverview is a room with its live status.
// swagger:model RoomOverview
type RoomOverview struct {
	*Room
	Status             RoomStatus   `json:"status"`
	CurrentReservation *Reservation `json:"current_reservation,omitempty"`
	NextReservation    *Reservation `json:"next_reservation,omitempty"`
}

// RoomDetail is a room with its timetable, reservations and free slots over a horizon.
// swagger:model RoomDetail
type RoomDetail struct {
	Room         *Room               `json:"room"`
	Horizon      interval.Interval   `json:"horizon"`
	Lessons      []*Lesson           `json:"lessons"`
	Reservations []*Reservation      `json:"reservations"`
	FreeSlots    []interval.Interval `json:"free_slots"`
}

// RoomRepository defines storage operations for rooms.
type RoomRepository interface {
	Create(ctx context.Context, room *Room) error
	GetByID(ctx context.Context, id string) (*Room, error)
	List(ctx context.Context) ([]*Room, error)
	Update(ctx context.Context, room *Room) error
	// SetBlocked flips the blocked flag of every listed room and returns how many exist.
	SetBlocked(ctx context.Context, ids []string, blocked bool) (int, error)
}

// RoomService defines room administration and the room views.
type RoomService interface {
	Create(ctx context.Context, room *Room) error
	Update(ctx context.Context, id string, patch RoomPatch) (*Room, error)
	List(ctx context.Context) ([]*RoomOverview, error)
	Get(ctx context.Context, id string, horizon interval.Interval) (*RoomDetail, error)
	BulkSetBlocked(ctx context.Context, ids []string, blocked bool) (int, error)
}
