package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"geobadge-backend/models"
)

// Memory is an in-process repository with the same uniqueness behavior as
// the Postgres one: duplicate fingerprints and duplicate
// (user, category) claims return ErrDuplicate. Used by tests and local
// development without a database.
type Memory struct {
	mu     sync.Mutex
	visits map[uuid.UUID]models.VisitRecord
	claims map[uuid.UUID]models.BadgeClaim
}

func NewMemory() *Memory {
	return &Memory{
		visits: make(map[uuid.UUID]models.VisitRecord),
		claims: make(map[uuid.UUID]models.BadgeClaim),
	}
}

func (m *Memory) CreateVisit(_ context.Context, rec *models.VisitRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.visits {
		if v.Fingerprint == rec.Fingerprint {
			return fmt.Errorf("visit fingerprint %s: %w", rec.Fingerprint, ErrDuplicate)
		}
	}
	m.visits[rec.ID] = *rec
	return nil
}

func (m *Memory) VisitByID(_ context.Context, id uuid.UUID) (*models.VisitRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.visits[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *Memory) VisitByFingerprint(_ context.Context, fingerprint string) (*models.VisitRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.visits {
		if v.Fingerprint == fingerprint {
			rec := v
			return &rec, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) RecentVisits(_ context.Context, userID, nfcTagID string, since time.Time) ([]models.VisitRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.VisitRecord
	for _, v := range m.visits {
		if v.UserID == userID && v.NFCTagID == nfcTagID && !v.CreatedAt.Before(since) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *Memory) VisitsByUser(_ context.Context, userID string) ([]models.VisitRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.VisitRecord
	for _, v := range m.visits {
		if v.UserID == userID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *Memory) SetVisitStatus(_ context.Context, id uuid.UUID, from, to string, verifiedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.visits[id]
	if !ok || rec.Status != from {
		return fmt.Errorf("visit %s not in status %q: %w", id, from, ErrNotFound)
	}
	rec.Status = to
	rec.IsVerified = to == models.VisitStatusVerified
	if verifiedAt != nil {
		rec.VerifiedAt = verifiedAt
	}
	m.visits[id] = rec
	return nil
}

func (m *Memory) CreateClaim(_ context.Context, claim *models.BadgeClaim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.claims {
		if c.UserID == claim.UserID && c.BadgeCategoryID == claim.BadgeCategoryID {
			return fmt.Errorf("claim (%s, %d): %w", claim.UserID, claim.BadgeCategoryID, ErrDuplicate)
		}
		if c.VisitID == claim.VisitID {
			return fmt.Errorf("claim for visit %s: %w", claim.VisitID, ErrDuplicate)
		}
	}
	m.claims[claim.ID] = *claim
	return nil
}

func (m *Memory) ClaimByVisit(_ context.Context, visitID uuid.UUID) (*models.BadgeClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.claims {
		if c.VisitID == visitID {
			claim := c
			return &claim, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ClaimByUserCategory(_ context.Context, userID string, categoryID int64) (*models.BadgeClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.claims {
		if c.UserID == userID && c.BadgeCategoryID == categoryID {
			claim := c
			return &claim, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ClaimsByUser(_ context.Context, userID string) ([]models.BadgeClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.BadgeClaim
	for _, c := range m.claims {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Memory) UpdateClaimMint(_ context.Context, id uuid.UUID, tokenID, txHash string, mintedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	claim, ok := m.claims[id]
	if !ok {
		return fmt.Errorf("claim %s: %w", id, ErrNotFound)
	}
	claim.TokenID = &tokenID
	if txHash != "" {
		claim.TxHash = &txHash
	}
	if claim.MintedAt == nil {
		claim.MintedAt = &mintedAt
	}
	m.claims[id] = claim
	return nil
}

// PutVisit force-writes a record, bypassing uniqueness. Test seeding hook.
func (m *Memory) PutVisit(rec models.VisitRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visits[rec.ID] = rec
}

// ClaimCount reports the number of stored claims. Test hook.
func (m *Memory) ClaimCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.claims)
}
