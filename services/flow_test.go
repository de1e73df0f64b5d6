package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geobadge-backend/logger"
	"geobadge-backend/models"
	"geobadge-backend/store"
)

// Full lifecycle: admit -> duplicate rejection -> verify -> claim ->
// second claim for the same category, all over one shared repository.
func TestVisitToBadgeFlow(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemory()
	content := store.NewMemoryContent()
	minter := newFakeMinter()

	// Zero recency window so the second submission exercises the
	// fingerprint guard rather than the anti-farming window.
	visits := NewVisitService(repo, content, logger.NewNop(), 100, 0)
	badges := NewBadgeService(repo, repo, content, minter, logger.NewNop(), 5*time.Second)

	attempt := models.VisitAttempt{
		UserID:       claimUser,
		NFCTagID:     "TAG-42",
		Latitude:     45.4642,
		Longitude:    9.19,
		LocationName: "Duomo di Milano",
		Timestamp:    time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC),
	}

	rec, err := visits.AdmitVisit(ctx, attempt)
	require.NoError(t, err)
	assert.Equal(t, models.VisitStatusPending, rec.Status)

	_, err = visits.AdmitVisit(ctx, attempt)
	assert.ErrorIs(t, err, ErrDuplicateFingerprint)

	verified, err := visits.VerifyVisit(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VisitStatusVerified, verified.Status)

	claim, err := badges.ClaimBadge(ctx, claimUser, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, DeriveBadgeCategoryID("TAG-42", "Duomo di Milano"), claim.BadgeCategoryID)
	require.NotNil(t, claim.TokenID)

	// A later visit to the same tag verifies fine but cannot earn the
	// same badge twice.
	later := attempt
	later.Timestamp = attempt.Timestamp.Add(24 * time.Hour)
	rec2, err := visits.AdmitVisit(ctx, later)
	require.NoError(t, err)
	_, err = visits.VerifyVisit(ctx, rec2.ID)
	require.NoError(t, err)

	_, err = badges.ClaimBadge(ctx, claimUser, rec2.ID)
	assert.ErrorIs(t, err, ErrAlreadyClaimedOnChain)
	assert.Equal(t, 1, minter.mintCount)
}
