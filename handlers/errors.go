package handlers

import (
	"errors"
	"net/http"

	"geobadge-backend/services"
)

// statusForError maps the service error taxonomy onto HTTP statuses.
// Input errors are the caller's fault, conflicts are expected outcomes,
// everything unrecognized is an infrastructure failure.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidLocation),
		errors.Is(err, services.ErrInvalidTimestamp):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInsufficientAccuracy):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrVisitNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrDuplicateVisit),
		errors.Is(err, services.ErrDuplicateFingerprint),
		errors.Is(err, services.ErrAlreadyClaimedLocally),
		errors.Is(err, services.ErrAlreadyClaimedOnChain),
		errors.Is(err, services.ErrVisitUnverifiable):
		return http.StatusConflict
	case errors.Is(err, services.ErrVisitNotVerified),
		errors.Is(err, services.ErrIntegrityMismatch):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// errorCode gives clients a stable machine-readable discriminator.
func errorCode(err error) string {
	switch {
	case errors.Is(err, services.ErrInvalidLocation):
		return "INVALID_LOCATION"
	case errors.Is(err, services.ErrInvalidTimestamp):
		return "INVALID_TIMESTAMP"
	case errors.Is(err, services.ErrInsufficientAccuracy):
		return "INSUFFICIENT_ACCURACY"
	case errors.Is(err, services.ErrDuplicateVisit):
		return "DUPLICATE_VISIT"
	case errors.Is(err, services.ErrDuplicateFingerprint):
		return "DUPLICATE_FINGERPRINT"
	case errors.Is(err, services.ErrVisitNotFound):
		return "VISIT_NOT_FOUND"
	case errors.Is(err, services.ErrVisitNotVerified):
		return "VISIT_NOT_VERIFIED"
	case errors.Is(err, services.ErrVisitUnverifiable):
		return "VISIT_UNVERIFIABLE"
	case errors.Is(err, services.ErrAlreadyClaimedLocally):
		return "ALREADY_CLAIMED"
	case errors.Is(err, services.ErrAlreadyClaimedOnChain):
		return "ALREADY_CLAIMED_ON_CHAIN"
	case errors.Is(err, services.ErrIntegrityMismatch):
		return "INTEGRITY_MISMATCH"
	default:
		return "INTERNAL_ERROR"
	}
}
