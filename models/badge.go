package models

import (
	"time"

	"github.com/google/uuid"
)

// BadgeClaim records a mint of the one-per-(user, category) badge NFT.
// The (UserID, BadgeCategoryID) pair carries a unique index; the chain is
// the ground truth and the local row self-heals on conflict.
type BadgeClaim struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	UserID          string     `json:"user_id" db:"user_id"`
	VisitID         uuid.UUID  `json:"visit_id" db:"visit_id"`
	BadgeCategoryID int64      `json:"badge_category_id" db:"badge_category_id"`
	TokenID         *string    `json:"token_id,omitempty" db:"token_id"`
	ContractAddress string     `json:"contract_address,omitempty" db:"contract_address"`
	TxHash          *string    `json:"tx_hash,omitempty" db:"tx_hash"`
	MetadataRef     string     `json:"metadata_ref,omitempty" db:"metadata_ref"`
	MintedAt        *time.Time `json:"minted_at,omitempty" db:"minted_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

type ClaimBadgeRequest struct {
	UserID  string `json:"user_id" binding:"required"`
	VisitID string `json:"visit_id" binding:"required"`
}
