package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"roombooking/internal/domain"
)

type lessonService struct {
	roomRepo   domain.RoomRepository
	lessonRepo domain.LessonRepository
	settings   Settings
	logger     *slog.Logger
}

// NewLessonService creates a LessonService. Lessons of one room may not overlap
// on the same weekday.
func NewLessonService(roomRepo domain.RoomRepository, lessonRepo domain.LessonRepository, settings Settings, logger *slog.Logger) domain.LessonService {
	return &lessonService{
		roomRepo:   roomRepo,
		lessonRepo: lessonRepo,
		settings:   settings.withDefaults(),
		logger:     orDefault(logger),
	}
}

func (s *lessonService) Create(ctx context.Context, lesson *domain.Lesson) error {
	ctx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	lesson.Subject = strings.TrimSpace(lesson.Subject)
	if err := lesson.Validate(); err != nil {
		return err
	}
	if _, err := getRoom(ctx, s.roomRepo, lesson.RoomID); err != nil {
		return err
	}
	existing, err := s.lessonRepo.ListByRoom(ctx, lesson.RoomID)
	if err != nil {
		return fmt.Errorf("list lessons: %w", err)
	}
	for _, other := range existing {
		if other.Day == lesson.Day && other.Range().Overlaps(lesson.Range()) {
			return domain.Conflict(domain.KindLessonConflict, other.ID, "overlaps %s on %s from %s to %s",
				other.Subject, other.Day, other.Start, other.End)
		}
	}

	lesson.CreatedAt = time.Now().UTC()
	if err := s.lessonRepo.Create(ctx, lesson); err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}
	s.logger.InfoContext(ctx, "lesson created", "lesson_id", lesson.ID, "room_id", lesson.RoomID, "day", lesson.Day.String())
	return nil
}

func (s *lessonService) ListByRoom(ctx context.Context, roomID string) ([]*domain.Lesson, error) {
	ctx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	if _, err := getRoom(ctx, s.roomRepo, roomID); err != nil {
		return nil, err
	}
	lessons, err := s.lessonRepo.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	return lessons, nil
}

func (s *lessonService) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	if err := s.lessonRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Reject(domain.KindNotFound, "lesson %s not found", id)
		}
		return fmt.Errorf("delete lesson: %w", err)
	}
	s.logger.InfoContext(ctx, "lesson deleted", "lesson_id", id)
	return nil
}
