package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geobadge-backend/logger"
	"geobadge-backend/models"
	"geobadge-backend/store"
)

func float64Ptr(f float64) *float64 { return &f }

func testAttempt() models.VisitAttempt {
	return models.VisitAttempt{
		UserID:         "0x8a0A2FE6b1E5b6AC9ad69B6cd9cc6DD3D5C2b3Ca",
		NFCTagID:       "TAG-42",
		Latitude:       45.4642,
		Longitude:      9.19,
		AccuracyMeters: float64Ptr(12),
		LocationName:   "Duomo di Milano",
		Timestamp:      time.Date(2025, 6, 15, 12, 30, 45, 0, time.UTC),
	}
}

func newTestVisitService(window time.Duration) (*VisitService, *store.Memory, *store.MemoryContent) {
	repo := store.NewMemory()
	content := store.NewMemoryContent()
	svc := NewVisitService(repo, content, logger.NewNop(), 100, window)
	return svc, repo, content
}

func TestAdmitVisit(t *testing.T) {
	ctx := context.Background()
	svc, _, content := newTestVisitService(30 * time.Minute)
	attempt := testAttempt()

	rec, err := svc.AdmitVisit(ctx, attempt)
	require.NoError(t, err)

	assert.Equal(t, models.VisitStatusPending, rec.Status)
	assert.False(t, rec.IsVerified)
	assert.Equal(t, attempt.UserID, rec.UserID)
	require.NotNil(t, rec.LocationName)
	assert.Equal(t, "Duomo di Milano", *rec.LocationName)

	expected := ComputeFingerprint(attempt.UserID, attempt.NFCTagID, attempt.Latitude, attempt.Longitude, attempt.Timestamp)
	assert.Equal(t, expected, rec.Fingerprint)

	// The stored payload must hash back to the recorded fingerprint.
	payload, err := content.Get(ctx, rec.ContentRef)
	require.NoError(t, err)
	assert.True(t, VerifyIntegrity(payload, rec.Fingerprint))
}

func TestAdmitVisitInputRejections(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestVisitService(30 * time.Minute)

	t.Run("null island", func(t *testing.T) {
		attempt := testAttempt()
		attempt.Latitude, attempt.Longitude = 0, 0
		_, err := svc.AdmitVisit(ctx, attempt)
		assert.ErrorIs(t, err, ErrInvalidLocation)
	})

	t.Run("latitude out of range", func(t *testing.T) {
		attempt := testAttempt()
		attempt.Latitude = 95
		_, err := svc.AdmitVisit(ctx, attempt)
		assert.ErrorIs(t, err, ErrInvalidLocation)
	})

	t.Run("accuracy above threshold", func(t *testing.T) {
		attempt := testAttempt()
		attempt.AccuracyMeters = float64Ptr(250)
		_, err := svc.AdmitVisit(ctx, attempt)
		assert.ErrorIs(t, err, ErrInsufficientAccuracy)
	})

	t.Run("accuracy omitted is fine", func(t *testing.T) {
		attempt := testAttempt()
		attempt.NFCTagID = "TAG-OTHER"
		attempt.AccuracyMeters = nil
		_, err := svc.AdmitVisit(ctx, attempt)
		assert.NoError(t, err)
	})

	t.Run("zero timestamp", func(t *testing.T) {
		attempt := testAttempt()
		attempt.Timestamp = time.Time{}
		_, err := svc.AdmitVisit(ctx, attempt)
		assert.ErrorIs(t, err, ErrInvalidTimestamp)
	})
}

func TestAdmitVisitRecencyWindow(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestVisitService(30 * time.Minute)

	first := testAttempt()
	_, err := svc.AdmitVisit(ctx, first)
	require.NoError(t, err)

	// Same user and tag, different timestamp: caught by the window.
	second := testAttempt()
	second.Timestamp = first.Timestamp.Add(5 * time.Minute)
	_, err = svc.AdmitVisit(ctx, second)
	assert.ErrorIs(t, err, ErrDuplicateVisit)

	// Different tag is unaffected.
	third := testAttempt()
	third.NFCTagID = "TAG-99"
	_, err = svc.AdmitVisit(ctx, third)
	assert.NoError(t, err)
}

func TestAdmitVisitDuplicateFingerprint(t *testing.T) {
	ctx := context.Background()
	// Zero window disables the recency check, so the fingerprint guard
	// alone has to catch the resubmission.
	svc, _, _ := newTestVisitService(0)

	attempt := testAttempt()
	_, err := svc.AdmitVisit(ctx, attempt)
	require.NoError(t, err)

	_, err = svc.AdmitVisit(ctx, attempt)
	assert.ErrorIs(t, err, ErrDuplicateFingerprint)
}

// racingVisitStore hides the existing record from the pre-check so the
// insert is the first thing to notice the duplicate, like a concurrent
// writer landing between the check and the insert.
type racingVisitStore struct {
	*store.Memory
}

func (r *racingVisitStore) VisitByFingerprint(context.Context, string) (*models.VisitRecord, error) {
	return nil, store.ErrNotFound
}

func TestAdmitVisitFingerprintRace(t *testing.T) {
	ctx := context.Background()
	repo := &racingVisitStore{store.NewMemory()}
	svc := NewVisitService(repo, store.NewMemoryContent(), logger.NewNop(), 100, 0)

	attempt := testAttempt()
	_, err := svc.AdmitVisit(ctx, attempt)
	require.NoError(t, err)

	_, err = svc.AdmitVisit(ctx, attempt)
	assert.ErrorIs(t, err, ErrDuplicateFingerprint)
}

func TestVerifyVisit(t *testing.T) {
	ctx := context.Background()
	svc, repo, content := newTestVisitService(30 * time.Minute)

	rec, err := svc.AdmitVisit(ctx, testAttempt())
	require.NoError(t, err)

	verified, err := svc.VerifyVisit(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VisitStatusVerified, verified.Status)
	assert.True(t, verified.IsVerified)
	require.NotNil(t, verified.VerifiedAt)

	t.Run("verifying again is a no-op", func(t *testing.T) {
		again, err := svc.VerifyVisit(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, models.VisitStatusVerified, again.Status)
	})

	t.Run("unknown visit", func(t *testing.T) {
		_, err := svc.VerifyVisit(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrVisitNotFound)
	})

	t.Run("tampered payload flags the record", func(t *testing.T) {
		other := testAttempt()
		other.NFCTagID = "TAG-77"
		rec, err := svc.AdmitVisit(ctx, other)
		require.NoError(t, err)

		content.Corrupt(rec.ContentRef, []byte(`{"lat":"0.00000000"}`))

		_, err = svc.VerifyVisit(ctx, rec.ID)
		assert.ErrorIs(t, err, ErrIntegrityMismatch)

		flagged, err := repo.VisitByID(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, models.VisitStatusFlagged, flagged.Status)
		assert.False(t, flagged.IsVerified)

		// Re-verifying a flagged record is a typed state conflict, not
		// a generic failure.
		_, err = svc.VerifyVisit(ctx, rec.ID)
		assert.ErrorIs(t, err, ErrVisitUnverifiable)
	})
}
