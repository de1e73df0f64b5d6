package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"geobadge-backend/models"
	"geobadge-backend/store"
)

// VisitStore is the persistence surface the admission controller needs.
type VisitStore interface {
	CreateVisit(ctx context.Context, rec *models.VisitRecord) error
	VisitByID(ctx context.Context, id uuid.UUID) (*models.VisitRecord, error)
	VisitByFingerprint(ctx context.Context, fingerprint string) (*models.VisitRecord, error)
	RecentVisits(ctx context.Context, userID, nfcTagID string, since time.Time) ([]models.VisitRecord, error)
	VisitsByUser(ctx context.Context, userID string) ([]models.VisitRecord, error)
	SetVisitStatus(ctx context.Context, id uuid.UUID, from, to string, verifiedAt *time.Time) error
}

// VisitService turns raw visit attempts into deduplicated, tamper-evident
// visit records and later verifies their integrity.
type VisitService struct {
	visits  VisitStore
	content store.ContentStore
	log     *zap.SugaredLogger

	maxAccuracyMeters float64
	duplicateWindow   time.Duration
}

func NewVisitService(visits VisitStore, content store.ContentStore, log *zap.SugaredLogger, maxAccuracyMeters float64, duplicateWindow time.Duration) *VisitService {
	return &VisitService{
		visits:            visits,
		content:           content,
		log:               log,
		maxAccuracyMeters: maxAccuracyMeters,
		duplicateWindow:   duplicateWindow,
	}
}

// AdmitVisit runs the admission pipeline. Step order is deliberate:
// validation before fingerprinting (never hash garbage), the cheap recency
// check before the content-store write, and the insert's unique index as
// the final race guard behind the explicit fingerprint pre-check.
func (s *VisitService) AdmitVisit(ctx context.Context, attempt models.VisitAttempt) (*models.VisitRecord, error) {
	if err := ValidateCoordinates(attempt.Latitude, attempt.Longitude); err != nil {
		s.log.Infow("visit rejected: invalid coordinates",
			"user", attempt.UserID, "tag", attempt.NFCTagID, "reason", err)
		return nil, err
	}
	if attempt.Timestamp.IsZero() {
		return nil, fmt.Errorf("%w: timestamp is missing", ErrInvalidTimestamp)
	}
	if attempt.AccuracyMeters != nil {
		if err := ValidateAccuracy(*attempt.AccuracyMeters, s.maxAccuracyMeters); err != nil {
			s.log.Infow("visit rejected: insufficient accuracy",
				"user", attempt.UserID, "tag", attempt.NFCTagID, "accuracy_m", *attempt.AccuracyMeters)
			return nil, err
		}
	}

	// Anti-farming recency window. Policy, not integrity: the window is
	// tunable and bypassing it still cannot produce two records with the
	// same fingerprint.
	since := time.Now().Add(-s.duplicateWindow)
	recent, err := s.visits.RecentVisits(ctx, attempt.UserID, attempt.NFCTagID, since)
	if err != nil {
		return nil, fmt.Errorf("recency check failed: %w", err)
	}
	if len(recent) > 0 {
		s.log.Warnw("visit rejected: recent duplicate",
			"user", attempt.UserID, "tag", attempt.NFCTagID, "window", s.duplicateWindow)
		return nil, fmt.Errorf("%w: same tag scanned %s ago or less", ErrDuplicateVisit, s.duplicateWindow)
	}

	fingerprint := ComputeFingerprint(attempt.UserID, attempt.NFCTagID, attempt.Latitude, attempt.Longitude, attempt.Timestamp)
	existing, err := s.visits.VisitByFingerprint(ctx, fingerprint)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("fingerprint check failed: %w", err)
	}
	if existing != nil {
		s.log.Warnw("visit rejected: fingerprint already recorded",
			"user", attempt.UserID, "tag", attempt.NFCTagID, "fingerprint", fingerprint)
		return nil, ErrDuplicateFingerprint
	}

	payload := CanonicalPayload(attempt.UserID, attempt.NFCTagID, attempt.Latitude, attempt.Longitude, attempt.Timestamp)
	contentRef, err := s.content.Put(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to store visit payload: %w", err)
	}

	rec := &models.VisitRecord{
		ID:          uuid.New(),
		UserID:      attempt.UserID,
		NFCTagID:    attempt.NFCTagID,
		Latitude:    attempt.Latitude,
		Longitude:   attempt.Longitude,
		Timestamp:   attempt.Timestamp.UTC(),
		Fingerprint: fingerprint,
		ContentRef:  contentRef,
		Status:      models.VisitStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if attempt.LocationName != "" {
		rec.LocationName = &attempt.LocationName
	}
	if attempt.Description != "" {
		rec.Description = &attempt.Description
	}

	if err := s.visits.CreateVisit(ctx, rec); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// Lost the cross-process race the pre-check can miss. The
			// unique index on fingerprint is the authoritative guard.
			s.log.Warnw("visit insert lost fingerprint race",
				"user", attempt.UserID, "fingerprint", fingerprint)
			return nil, ErrDuplicateFingerprint
		}
		return nil, fmt.Errorf("failed to persist visit: %w", err)
	}

	s.log.Infow("visit admitted",
		"visit", rec.ID, "user", rec.UserID, "tag", rec.NFCTagID, "fingerprint", fingerprint)
	return rec, nil
}

// VerifyVisit re-derives the fingerprint from the stored payload and flips
// the record to verified on a match. A mismatch flags the record and is
// surfaced loudly; it is never silently passed or auto-resolved.
func (s *VisitService) VerifyVisit(ctx context.Context, visitID uuid.UUID) (*models.VisitRecord, error) {
	rec, err := s.visits.VisitByID(ctx, visitID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrVisitNotFound
		}
		return nil, fmt.Errorf("failed to load visit: %w", err)
	}
	if rec.Status == models.VisitStatusVerified {
		return rec, nil
	}
	if rec.Status != models.VisitStatusPending {
		// A flagged or rejected record is a terminal conflict, not an
		// infrastructure failure.
		return nil, fmt.Errorf("%w: status is %q", ErrVisitUnverifiable, rec.Status)
	}

	payload, err := s.content.Get(ctx, rec.ContentRef)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stored payload: %w", err)
	}

	if !VerifyIntegrity(payload, rec.Fingerprint) {
		s.log.Errorw("visit payload integrity mismatch, flagging",
			"visit", rec.ID, "user", rec.UserID, "fingerprint", rec.Fingerprint)
		if ferr := s.visits.SetVisitStatus(ctx, rec.ID, models.VisitStatusPending, models.VisitStatusFlagged, nil); ferr != nil {
			return nil, fmt.Errorf("failed to flag visit after integrity mismatch: %v: %w", ferr, ErrIntegrityMismatch)
		}
		return nil, ErrIntegrityMismatch
	}

	now := time.Now().UTC()
	if err := s.visits.SetVisitStatus(ctx, rec.ID, models.VisitStatusPending, models.VisitStatusVerified, &now); err != nil {
		return nil, fmt.Errorf("failed to mark visit verified: %w", err)
	}
	rec.Status = models.VisitStatusVerified
	rec.IsVerified = true
	rec.VerifiedAt = &now

	s.log.Infow("visit verified", "visit", rec.ID, "user", rec.UserID)
	return rec, nil
}

// VisitByID exposes a single record lookup for the read surface.
func (s *VisitService) VisitByID(ctx context.Context, visitID uuid.UUID) (*models.VisitRecord, error) {
	rec, err := s.visits.VisitByID(ctx, visitID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrVisitNotFound
		}
		return nil, err
	}
	return rec, nil
}

// VisitsByUser lists a user's visit history, newest first.
func (s *VisitService) VisitsByUser(ctx context.Context, userID string) ([]models.VisitRecord, error) {
	return s.visits.VisitsByUser(ctx, userID)
}
