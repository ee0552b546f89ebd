package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"roombooking/internal/domain"
	"roombooking/internal/schedule"
)

type roomRepository struct {
	db *sql.DB
}

func NewRoomRepository(db *sql.DB) domain.RoomRepository {
	return &roomRepository{db: db}
}

const roomColumns = `id, name, category, blocked, window_start, window_end, created_at, updated_at`

func (r *roomRepository) Create(ctx context.Context, room *domain.Room) error {
	query := `
		INSERT INTO rooms (name, category, blocked, window_start, window_end, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	ws, we := windowArgs(room.BookingWindow)
	err := r.db.QueryRowContext(ctx, query, room.Name, string(room.Category), room.Blocked, ws, we, room.CreatedAt, room.UpdatedAt).Scan(&room.ID)
	if pqCode(err) == codeUniqueViolation {
		return domain.ErrDuplicateName
	}
	return err
}

func (r *roomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1`
	room, err := scanRoom(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return room, nil
}

func (r *roomRepository) List(ctx context.Context) ([]*domain.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanRoom)
}

func (r *roomRepository) Update(ctx context.Context, room *domain.Room) error {
	query := `
		UPDATE rooms
		SET name = $1, category = $2, blocked = $3, window_start = $4, window_end = $5, updated_at = $6
		WHERE id = $7
	`
	ws, we := windowArgs(room.BookingWindow)
	result, err := r.db.ExecContext(ctx, query, room.Name, string(room.Category), room.Blocked, ws, we, room.UpdatedAt, room.ID)
	if err != nil {
		if pqCode(err) == codeUniqueViolation {
			return domain.ErrDuplicateName
		}
		if isInvalidID(err) {
			return domain.ErrNotFound
		}
		return err
	}
	return affectedOne(result)
}

func (r *roomRepository) SetBlocked(ctx context.Context, ids []string, blocked bool) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `UPDATE rooms SET blocked = $2, updated_at = now() WHERE id = ANY($1)`
	result, err := r.db.ExecContext(ctx, query, pq.Array(ids), blocked)
	if err != nil {
		if isInvalidID(err) {
			return 0, fmt.Errorf("%w: malformed room id", domain.ErrInvalidInput)
		}
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

func scanRoom(row rowScanner) (*domain.Room, error) {
	room := &domain.Room{}
	var category string
	var ws, we sql.NullString
	if err := row.Scan(&room.ID, &room.Name, &category, &room.Blocked, &ws, &we, &room.CreatedAt, &room.UpdatedAt); err != nil {
		return nil, err
	}
	room.Category = domain.RoomCategory(category)
	if ws.Valid && we.Valid {
		start, err := schedule.ParseWallClock(ws.String)
		if err != nil {
			return nil, fmt.Errorf("room %s window_start: %w", room.ID, err)
		}
		end, err := schedule.ParseWallClock(we.String)
		if err != nil {
			return nil, fmt.Errorf("room %s window_end: %w", room.ID, err)
		}
		room.BookingWindow = &schedule.DailyRange{Start: start, End: end}
	}
	return room, nil
}

func windowArgs(w *schedule.DailyRange) (any, any) {
	if w == nil {
		return nil, nil
	}
	return w.Start.String(), w.End.String()
}
