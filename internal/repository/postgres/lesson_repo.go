package postgres

import (
	"context"
	"database/sql"
	"errors"

	"roombooking/internal/domain"
	"roombooking/internal/schedule"
)

type lessonRepository struct {
	db *sql.DB
}

func NewLessonRepository(db *sql.DB) domain.LessonRepository {
	return &lessonRepository{db: db}
}

const lessonColumns = `id, room_id, day_of_week, start_time, end_time, subject, teacher, group_name, created_at`

func (r *lessonRepository) Create(ctx context.Context, l *domain.Lesson) error {
	query := `
		INSERT INTO lessons (room_id, day_of_week, start_time, end_time, subject, teacher, group_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query, l.RoomID, int(l.Day), l.Start.String(), l.End.String(), l.Subject, l.Teacher, l.GroupName, l.CreatedAt).Scan(&l.ID)
	if code := pqCode(err); code == codeForeignKeyViolation || code == codeInvalidTextRep {
		return domain.ErrNotFound
	}
	return err
}

func (r *lessonRepository) GetByID(ctx context.Context, id string) (*domain.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE id = $1`
	l, err := scanLesson(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return l, nil
}

func (r *lessonRepository) ListByRoom(ctx context.Context, roomID string) ([]*domain.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE room_id = $1 ORDER BY day_of_week, start_time`
	rows, err := r.db.QueryContext(ctx, query, roomID)
	if err != nil {
		if isInvalidID(err) {
			return []*domain.Lesson{}, nil
		}
		return nil, err
	}
	return collect(rows, scanLesson)
}

func (r *lessonRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM lessons WHERE id = $1`, id)
	if err != nil {
		if isInvalidID(err) {
			return domain.ErrNotFound
		}
		return err
	}
	return affectedOne(result)
}

func scanLesson(row rowScanner) (*domain.Lesson, error) {
	l := &domain.Lesson{}
	var day int
	if err := row.Scan(&l.ID, &l.RoomID, &day, &l.Start, &l.End, &l.Subject, &l.Teacher, &l.GroupName, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.Day = schedule.Day(day)
	return l, nil
}
