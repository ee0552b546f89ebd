package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"roombooking/internal/booking"
	"roombooking/internal/domain"
	"roombooking/internal/interval"
)

// defaultLockTimeout bounds row and advisory lock waits when the caller's
// context carries no deadline.
const defaultLockTimeout = 5 * time.Second

type reservationRepository struct {
	db *sql.DB
}

func NewReservationRepository(db *sql.DB) domain.ReservationRepository {
	return &reservationRepository{db: db}
}

const reservationColumns = `id, room_id, user_id, requester_name, start_time, end_time, status, created_at, updated_at`

func (r *reservationRepository) GetByID(ctx context.Context, id string) (*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	res, err := scanReservation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return res, nil
}

func (r *reservationRepository) ListActiveByRoom(ctx context.Context, roomID string, span interval.Interval) ([]*domain.Reservation, error) {
	return listActive(ctx, r.db, roomID, span)
}

func listActive(ctx context.Context, q queryer, roomID string, span interval.Interval) ([]*domain.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE room_id = $1 AND status = 'active' AND start_time < $3 AND end_time > $2
		ORDER BY start_time
	`
	rows, err := q.QueryContext(ctx, query, roomID, span.Start, span.End)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanReservation)
}

func (r *reservationRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE user_id = $1 ORDER BY start_time DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanReservation)
}

func (r *reservationRepository) ListByRoom(ctx context.Context, roomID string, page domain.PaginationParams) ([]*domain.Reservation, int, error) {
	return r.List(ctx, domain.ReservationFilter{RoomID: roomID}, page)
}

func (r *reservationRepository) List(ctx context.Context, f domain.ReservationFilter, page domain.PaginationParams) ([]*domain.Reservation, int, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.RoomID != "" {
		add("room_id = $%d", f.RoomID)
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	switch f.Status {
	case domain.StatusActive:
		add("status = 'active' AND end_time > $%d", f.Now)
	case domain.StatusFinished:
		add("(status = 'finished' OR (status = 'active' AND end_time <= $%d))", f.Now)
	case domain.StatusCancelled:
		conds = append(conds, "status = 'cancelled'")
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM reservations`+where, args...).Scan(&total); err != nil {
		if isInvalidID(err) {
			return []*domain.Reservation{}, 0, nil
		}
		return nil, 0, err
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM reservations%s ORDER BY start_time DESC LIMIT $%d OFFSET $%d`, reservationColumns, where, n+1, n+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, limitArg(page.PageSize), page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	list, err := collect(rows, scanReservation)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// InsertIfNoConflict re-reads the room's active reservations and inserts res
// inside one transaction holding the room's advisory lock.
func (r *reservationRepository) InsertIfNoConflict(ctx context.Context, res *domain.Reservation) error {
	return r.withRoomTx(ctx, res.RoomID, func(tx *sql.Tx) error {
		active, err := listActive(ctx, tx, res.RoomID, res.Interval())
		if err != nil {
			return err
		}
		if hit := booking.FirstOverlap(active, res.Interval(), ""); hit != nil {
			return booking.ConflictWith(hit)
		}
		query := `
			INSERT INTO reservations (room_id, user_id, requester_name, start_time, end_time, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`
		return tx.QueryRowContext(ctx, query, res.RoomID, nullString(res.UserID), res.RequesterName,
			res.Start, res.End, string(res.Status), res.CreatedAt, res.UpdatedAt).Scan(&res.ID)
	})
}

// RescheduleIfNoConflict moves an active reservation, checking overlap against
// the room's other active reservations inside the same transaction.
func (r *reservationRepository) RescheduleIfNoConflict(ctx context.Context, id string, span interval.Interval) (*domain.Reservation, error) {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	var moved *domain.Reservation
	err = r.withRoomTx(ctx, current.RoomID, func(tx *sql.Tx) error {
		active, err := listActive(ctx, tx, current.RoomID, span)
		if err != nil {
			return err
		}
		if hit := booking.FirstOverlap(active, span, id); hit != nil {
			return booking.ConflictWith(hit)
		}
		query := `
			UPDATE reservations
			SET start_time = $2, end_time = $3, updated_at = now()
			WHERE id = $1 AND status = 'active'
			RETURNING ` + reservationColumns
		moved, err = scanReservation(tx.QueryRowContext(ctx, query, id, span.Start, span.End))
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Reject(domain.KindInvalidTransition, "reservation %s is no longer active", id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

func (r *reservationRepository) UpdateStatus(ctx context.Context, id string, from, to domain.ReservationStatus) (bool, error) {
	query := `UPDATE reservations SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, id, string(from), string(to))
	if err != nil {
		if isInvalidID(err) {
			return false, domain.ErrNotFound
		}
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *reservationRepository) CancelMany(ctx context.Context, ids []string, now time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `
		UPDATE reservations
		SET status = 'cancelled', updated_at = now()
		WHERE id = ANY($1) AND status = 'active' AND end_time > $2
	`
	result, err := r.db.ExecContext(ctx, query, pq.Array(ids), now)
	if err != nil {
		if isInvalidID(err) {
			return 0, fmt.Errorf("%w: malformed reservation id", domain.ErrInvalidInput)
		}
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

func (r *reservationRepository) CountByStatus(ctx context.Context, now time.Time) (map[domain.ReservationStatus]int, error) {
	query := `
		SELECT CASE WHEN status = 'active' AND end_time <= $1 THEN 'finished' ELSE status END AS effective, count(*)
		FROM reservations
		GROUP BY effective
	`
	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[domain.ReservationStatus]int{
		domain.StatusActive:    0,
		domain.StatusFinished:  0,
		domain.StatusCancelled: 0,
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[domain.ReservationStatus(status)] = n
	}
	return counts, rows.Err()
}

// roomTxOptions: reads made after the advisory lock is granted must see what
// the previous holder committed, so each statement needs its own snapshot.
var roomTxOptions = &sql.TxOptions{Isolation: sql.LevelReadCommitted}

// withRoomTx runs fn in a transaction that first takes the room's
// transaction-scoped advisory lock, so concurrent commits against one room
// queue up instead of racing. Lock waits are bounded by lock_timeout.
func (r *reservationRepository) withRoomTx(ctx context.Context, roomID string, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, roomTxOptions)
	if err != nil {
		return commitError(fmt.Errorf("begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	timeout := defaultLockTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = max(time.Until(deadline), time.Millisecond)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeout.Milliseconds())); err != nil {
		return commitError(fmt.Errorf("set lock timeout: %w", err))
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, roomID); err != nil {
		return commitError(fmt.Errorf("lock room %s: %w", roomID, err))
	}
	if err := fn(tx); err != nil {
		return commitError(err)
	}
	if err := tx.Commit(); err != nil {
		return commitError(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func scanReservation(row rowScanner) (*domain.Reservation, error) {
	res := &domain.Reservation{}
	var userID sql.NullString
	var status string
	if err := row.Scan(&res.ID, &res.RoomID, &userID, &res.RequesterName, &res.Start, &res.End, &status, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return nil, err
	}
	res.UserID = userID.String
	res.Status = domain.ReservationStatus(status)
	res.Start = res.Start.UTC()
	res.End = res.End.UTC()
	return res, nil
}
