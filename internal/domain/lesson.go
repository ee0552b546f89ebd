package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"roombooking/internal/schedule"
)

// Lesson is a fixed weekly occupation of a room. Lessons always take priority
// over reservations.
// swagger:model Lesson
type Lesson struct {
	ID        string             `json:"id"`
	RoomID    string             `json:"room_id"`
	Day       schedule.Day       `json:"day" swaggertype:"string" example:"monday"`
	Start     schedule.WallClock `json:"start" swaggertype:"string" example:"10:00"`
	End       schedule.WallClock `json:"end" swaggertype:"string" example:"11:30"`
	Subject   string             `json:"subject"`
	Teacher   string             `json:"teacher,omitempty"`
	GroupName string             `json:"group_name,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// Range returns the lesson's wall-clock range.
func (l *Lesson) Range() schedule.DailyRange {
	return schedule.DailyRange{Start: l.Start, End: l.End}
}

// Weekly returns the lesson as a projectable weekly template.
func (l *Lesson) Weekly() schedule.Weekly {
	return schedule.Weekly{ID: l.ID, Day: l.Day, Range: l.Range()}
}

// Validate checks the lesson invariants.
func (l *Lesson) Validate() error {
	if strings.TrimSpace(l.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}
	if !l.Day.Valid() {
		return fmt.Errorf("%w: invalid day of week", ErrInvalidInput)
	}
	if err := l.Range().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// WeeklyOf converts lessons to weekly templates.
func WeeklyOf(lessons []*Lesson) []schedule.Weekly {
	out := make([]schedule.Weekly, 0, len(lessons))
	for _, l := range lessons {
		out = append(out, l.Weekly())
	}
	return out
}

// LessonRepository defines storage operations for lessons.
type LessonRepository interface {
	Create(ctx context.Context, lesson *Lesson) error
	GetByID(ctx context.Context, id string) (*Lesson, error)
	ListByRoom(ctx context.Context, roomID string) ([]*Lesson, error)
	Delete(ctx context.Context, id string) error
}

// LessonService manages a room's timetable.
type LessonService interface {
	// Create rejects a lesson overlapping another lesson of the same room and day with LessonConflict.
	Create(ctx context.Context, lesson *Lesson) error
	ListByRoom(ctx context.Context, roomID string) ([]*Lesson, error)
	Delete(ctx context.Context, id string) error
}
