package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"geobadge-backend/contracts"
	"geobadge-backend/models"
	"geobadge-backend/store"
)

// badgeCategorySpace bounds the derived category ids. The derivation is
// deterministic so that claim-dedup and the mint call agree on identity
// without a lookup table; unrelated locations can in principle collide
// within this space, a limitation inherited from the derivation scheme.
const badgeCategorySpace = 1_000_000

// ClaimStore is the persistence surface the claim controller needs.
type ClaimStore interface {
	CreateClaim(ctx context.Context, claim *models.BadgeClaim) error
	ClaimByVisit(ctx context.Context, visitID uuid.UUID) (*models.BadgeClaim, error)
	ClaimByUserCategory(ctx context.Context, userID string, categoryID int64) (*models.BadgeClaim, error)
	ClaimsByUser(ctx context.Context, userID string) ([]models.BadgeClaim, error)
	UpdateClaimMint(ctx context.Context, id uuid.UUID, tokenID, txHash string, mintedAt time.Time) error
}

// Minter is the ledger collaborator. The chain enforces one claim per
// (address, category) on its own; local checks are fast paths.
type Minter interface {
	HasClaimed(ctx context.Context, ownerAddress string, categoryID int64) (bool, error)
	ClaimedToken(ctx context.Context, ownerAddress string, categoryID int64) (string, error)
	Mint(ctx context.Context, ownerAddress string, categoryID int64, metadataRef string) (contracts.MintResult, error)
	ContractAddress() string
}

// BadgeService drives the verified-visit to minted-badge transition.
type BadgeService struct {
	visits  VisitStore
	claims  ClaimStore
	content store.ContentStore
	minter  Minter
	log     *zap.SugaredLogger

	mintTimeout time.Duration
}

func NewBadgeService(visits VisitStore, claims ClaimStore, content store.ContentStore, minter Minter, log *zap.SugaredLogger, mintTimeout time.Duration) *BadgeService {
	return &BadgeService{
		visits:      visits,
		claims:      claims,
		content:     content,
		minter:      minter,
		log:         log,
		mintTimeout: mintTimeout,
	}
}

// DeriveBadgeCategoryID maps a physical location to its badge category:
// keccak256 of "tagID|locationName", reduced into the category space.
// Same inputs always produce the same id, across time and processes.
func DeriveBadgeCategoryID(nfcTagID, locationName string) int64 {
	digest := crypto.Keccak256([]byte(nfcTagID + "|" + locationName))
	n := new(big.Int).SetBytes(digest[:8])
	return n.Mod(n, big.NewInt(badgeCategorySpace)).Int64()
}

// badgeMetadata is the token metadata payload persisted to the content
// store; its ref is handed to the mint call.
type badgeMetadata struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	TagID       string    `json:"tag_id"`
	Location    string    `json:"location,omitempty"`
	CategoryID  int64     `json:"category_id"`
	VisitID     string    `json:"visit_id"`
	VisitedAt   time.Time `json:"visited_at"`
}

// ClaimBadge mints the badge for a verified visit, at most once per
// (user, badge category). The chain is ground truth: its claimed-flag is
// re-checked immediately before minting, and a chain-side already-claimed
// rejection is reconciled into the local record instead of erroring.
func (s *BadgeService) ClaimBadge(ctx context.Context, userID string, visitID uuid.UUID) (*models.BadgeClaim, error) {
	visit, err := s.visits.VisitByID(ctx, visitID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrVisitNotFound
		}
		return nil, fmt.Errorf("failed to load visit: %w", err)
	}
	if !strings.EqualFold(visit.UserID, userID) {
		return nil, fmt.Errorf("%w: visit belongs to a different user", ErrVisitNotFound)
	}
	if visit.Status != models.VisitStatusVerified {
		return nil, fmt.Errorf("%w: status is %q", ErrVisitNotVerified, visit.Status)
	}

	if existing, err := s.claims.ClaimByVisit(ctx, visitID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("local claim check failed: %w", err)
	} else if existing != nil {
		s.log.Warnw("claim rejected: visit already claimed", "visit", visitID, "user", userID)
		return nil, ErrAlreadyClaimedLocally
	}

	locationName := ""
	if visit.LocationName != nil {
		locationName = *visit.LocationName
	}
	categoryID := DeriveBadgeCategoryID(visit.NFCTagID, locationName)

	// Fast-path chain check before any expensive work. Not the guarantee,
	// just the cheap rejection.
	claimed, err := s.minter.HasClaimed(ctx, userID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("chain claim check failed: %w", err)
	}
	if claimed {
		s.log.Warnw("claim rejected: category already claimed on chain",
			"user", userID, "category", categoryID)
		return nil, ErrAlreadyClaimedOnChain
	}

	meta := badgeMetadata{
		Name:        fmt.Sprintf("Visit Badge #%d", categoryID),
		Description: fmt.Sprintf("Proof of visit at tag %s", visit.NFCTagID),
		TagID:       visit.NFCTagID,
		Location:    locationName,
		CategoryID:  categoryID,
		VisitID:     visit.ID.String(),
		VisitedAt:   visit.Timestamp,
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode badge metadata: %w", err)
	}
	metadataRef, err := s.content.Put(ctx, metaBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to store badge metadata: %w", err)
	}

	mintCtx, cancel := context.WithTimeout(ctx, s.mintTimeout)
	defer cancel()

	// Re-check right before the mint to close the window between the
	// entry check and now; two concurrent claims race toward the
	// contract, and losing there is still handled below.
	claimed, err = s.minter.HasClaimed(mintCtx, userID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("chain claim re-check failed: %w", err)
	}
	if claimed {
		return s.reconcileChainClaim(ctx, userID, visit, categoryID, metadataRef)
	}

	result, err := s.minter.Mint(mintCtx, userID, categoryID, metadataRef)
	if err != nil {
		if errors.Is(err, contracts.ErrAlreadyClaimed) {
			// Lost the race at the contract despite the re-check.
			// Success-equivalent: surface the existing on-chain claim.
			s.log.Warnw("mint lost claim race, reconciling from chain",
				"user", userID, "category", categoryID)
			return s.reconcileChainClaim(ctx, userID, visit, categoryID, metadataRef)
		}
		return nil, fmt.Errorf("mint failed: %w", err)
	}

	now := time.Now().UTC()
	claim := &models.BadgeClaim{
		ID:              uuid.New(),
		UserID:          userID,
		VisitID:         visit.ID,
		BadgeCategoryID: categoryID,
		TokenID:         &result.TokenID,
		ContractAddress: s.minter.ContractAddress(),
		TxHash:          &result.TxHash,
		MetadataRef:     metadataRef,
		MintedAt:        &now,
		CreatedAt:       now,
	}
	if err := s.claims.CreateClaim(ctx, claim); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// A concurrent request wrote the row between our mint and
			// this insert. The mint happened exactly once either way;
			// return the surviving record.
			existing, lerr := s.claims.ClaimByUserCategory(ctx, userID, categoryID)
			if lerr != nil {
				return nil, fmt.Errorf("claim exists but could not be loaded: %w", lerr)
			}
			return existing, nil
		}
		// The mint is on chain; the local row is a cache that will
		// self-heal on the next claim attempt's reconcile path.
		return nil, fmt.Errorf("mint succeeded (token %s, tx %s) but local record failed: %w",
			result.TokenID, result.TxHash, err)
	}

	s.log.Infow("badge minted",
		"user", userID, "visit", visit.ID, "category", categoryID,
		"token", result.TokenID, "tx", result.TxHash)
	return claim, nil
}

// reconcileChainClaim aligns the local cache with an on-chain claim that
// exists for (userID, categoryID). The chain wins on every conflict.
func (s *BadgeService) reconcileChainClaim(ctx context.Context, userID string, visit *models.VisitRecord, categoryID int64, metadataRef string) (*models.BadgeClaim, error) {
	tokenID, err := s.minter.ClaimedToken(ctx, userID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to read claimed token from chain: %w", err)
	}

	existing, err := s.claims.ClaimByUserCategory(ctx, userID, categoryID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load local claim for reconcile: %w", err)
	}
	now := time.Now().UTC()
	if existing != nil {
		if existing.TokenID == nil || *existing.TokenID != tokenID {
			if uerr := s.claims.UpdateClaimMint(ctx, existing.ID, tokenID, "", now); uerr != nil {
				return nil, fmt.Errorf("failed to heal local claim: %w", uerr)
			}
			existing.TokenID = &tokenID
			existing.MintedAt = &now
		}
		return existing, nil
	}

	claim := &models.BadgeClaim{
		ID:              uuid.New(),
		UserID:          userID,
		VisitID:         visit.ID,
		BadgeCategoryID: categoryID,
		TokenID:         &tokenID,
		ContractAddress: s.minter.ContractAddress(),
		MetadataRef:     metadataRef,
		MintedAt:        &now,
		CreatedAt:       now,
	}
	if err := s.claims.CreateClaim(ctx, claim); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return s.claims.ClaimByUserCategory(ctx, userID, categoryID)
		}
		return nil, fmt.Errorf("failed to record reconciled claim: %w", err)
	}

	s.log.Infow("local claim reconciled from chain",
		"user", userID, "category", categoryID, "token", tokenID)
	return claim, nil
}

// ClaimsByUser lists a user's badge claims.
func (s *BadgeService) ClaimsByUser(ctx context.Context, userID string) ([]models.BadgeClaim, error) {
	return s.claims.ClaimsByUser(ctx, userID)
}
