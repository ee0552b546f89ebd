package domain

import (
	"errors"
	"fmt"
)

// RejectionKind identifies which booking rule refused a request.
type RejectionKind string

const (
	KindMalformedRange       RejectionKind = "malformed_range"
	KindPastStart            RejectionKind = "past_start"
	KindRoomBlocked          RejectionKind = "room_blocked"
	KindOutsideBookingWindow RejectionKind = "outside_booking_window"
	KindLessonConflict       RejectionKind = "lesson_conflict"
	KindReservationConflict  RejectionKind = "reservation_conflict"
	KindNotFound             RejectionKind = "not_found"
	KindInvalidTransition    RejectionKind = "invalid_transition"
)

// Rejection is an expected, user-facing refusal. It is returned as an error so
// it travels the normal error path, but it never signals an infrastructure fault.
type Rejection struct {
	Kind    RejectionKind `json:"kind"`
	Message string        `json:"message"`
	// ConflictingID names the lesson or reservation that caused a conflict.
	ConflictingID string `json:"conflicting_id,omitempty"`
	// Retryable is set when the request lost a race or timed out waiting for
	// exclusivity and may succeed if submitted again.
	Retryable bool `json:"retryable,omitempty"`
}

// Reject builds a Rejection with a formatted message.
func Reject(kind RejectionKind, format string, args ...any) *Rejection {
	return &Rejection{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Conflict builds a conflict Rejection that names the conflicting entity.
func Conflict(kind RejectionKind, conflictingID, format string, args ...any) *Rejection {
	r := Reject(kind, format, args...)
	r.ConflictingID = conflictingID
	return r
}

// RetryableConflict is the ReservationConflict returned when exclusivity could
// not be obtained in time or the store aborted a racing transaction.
func RetryableConflict(format string, args ...any) *Rejection {
	r := Reject(KindReservationConflict, format, args...)
	r.Retryable = true
	return r
}

func (r *Rejection) Error() string {
	return string(r.Kind) + ": " + r.Message
}

// Is lets errors.Is(err, ErrNotFound) match NotFound rejections.
func (r *Rejection) Is(target error) bool {
	return r.Kind == KindNotFound && target == ErrNotFound
}

// AsRejection unwraps err to a *Rejection.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// IsRejection reports whether err is a Rejection of the given kind.
func IsRejection(err error, kind RejectionKind) bool {
	r, ok := AsRejection(err)
	return ok && r.Kind == kind
}
