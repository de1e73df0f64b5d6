package services

import "errors"

// Typed outcomes for admission and claiming. Handlers branch on these with
// errors.Is; anything not in this list is an infrastructure failure.
var (
	// Input errors. Client-caused, never retried.
	ErrInvalidLocation      = errors.New("invalid location")
	ErrInsufficientAccuracy = errors.New("gps accuracy exceeds allowed threshold")
	ErrInvalidTimestamp     = errors.New("invalid visit timestamp")

	// Conflict errors. Expected under normal operation.
	ErrDuplicateVisit        = errors.New("duplicate visit within recency window")
	ErrDuplicateFingerprint  = errors.New("visit with identical fingerprint already recorded")
	ErrAlreadyClaimedLocally = errors.New("badge already claimed for this visit")
	ErrAlreadyClaimedOnChain = errors.New("badge category already claimed on chain")

	// State errors.
	ErrVisitNotFound     = errors.New("visit not found")
	ErrVisitNotVerified  = errors.New("visit is not verified")
	ErrVisitUnverifiable = errors.New("visit is in a state that cannot be verified")

	// Integrity errors. Potentially adversarial, never auto-resolved.
	ErrIntegrityMismatch = errors.New("stored payload does not match recorded fingerprint")
)
