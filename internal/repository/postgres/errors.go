package postgres

import (
	"context"
	"errors"

	"github.com/lib/pq"

	"roombooking/internal/domain"
)

// Postgres error codes the store reacts to.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeExclusionViolation   = "23P01"
	codeInvalidTextRep       = "22P02"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// isInvalidID reports a malformed uuid literal, which can never match a row.
func isInvalidID(err error) bool {
	return pqCode(err) == codeInvalidTextRep
}

// commitError translates what a conflict-checked write can fail with. Rejections
// pass through; the exclusion constraint and aborted or timed-out transactions
// become reservation conflicts; anything else is an infrastructure error.
func commitError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := domain.AsRejection(err); ok {
		return err
	}
	switch pqCode(err) {
	case codeExclusionViolation:
		return domain.Reject(domain.KindReservationConflict, "overlaps an existing reservation")
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return domain.RetryableConflict("room is busy, try again")
	case codeForeignKeyViolation:
		return domain.Reject(domain.KindNotFound, "room not found")
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.RetryableConflict("timed out waiting for the room, try again")
	}
	return err
}
