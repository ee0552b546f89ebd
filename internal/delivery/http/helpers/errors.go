package helpers

import (
	"errors"
	"log/slog"
	"net/http"

	"roombooking/internal/domain"
)

// RejectionStatus returns the HTTP status for a booking rejection kind.
func RejectionStatus(kind domain.RejectionKind) int {
	switch kind {
	case domain.KindMalformedRange, domain.KindPastStart, domain.KindOutsideBookingWindow:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindRoomBlocked, domain.KindLessonConflict, domain.KindReservationConflict, domain.KindInvalidTransition:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// WriteServiceError maps a service error onto the response. Rejections and
// sentinel errors become 4xx responses; anything else is logged and hidden
// behind a 500.
func WriteServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if rej, ok := domain.AsRejection(err); ok {
		if rej.Retryable {
			w.Header().Set("Retry-After", "1")
		}
		writeEnvelope(w, RejectionStatus(rej.Kind), APIResponse{Error: &APIError{
			Code:          string(rej.Kind),
			Message:       rej.Message,
			ConflictingID: rej.ConflictingID,
			Retryable:     rej.Retryable,
		}})
		return
	}
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		WriteJSONError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		WriteJSONError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, domain.ErrDuplicateName):
		WriteJSONError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrUnauthorized):
		WriteJSONError(w, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		WriteJSONError(w, http.StatusForbidden, ErrCodeForbidden, "not allowed to act on this resource")
	default:
		if logger != nil {
			logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		}
		WriteJSONError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
	}
}
