package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"geobadge-backend/models"
)

const pgUniqueViolation = "23505"

// Postgres is the pgx-backed repository for visits and badge claims.
// Unique indexes on visits.fingerprint and badge_claims
// (user_id, badge_category_id) are the authoritative dedup guards; their
// violations surface as ErrDuplicate.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

const visitColumns = `id, user_id, nfc_tag_id, latitude, longitude, location_name, description,
	visit_timestamp, fingerprint, is_verified, verified_at, content_ref, status, created_at`

func scanVisit(row pgx.Row) (*models.VisitRecord, error) {
	var rec models.VisitRecord
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.NFCTagID,
		&rec.Latitude,
		&rec.Longitude,
		&rec.LocationName,
		&rec.Description,
		&rec.Timestamp,
		&rec.Fingerprint,
		&rec.IsVerified,
		&rec.VerifiedAt,
		&rec.ContentRef,
		&rec.Status,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (p *Postgres) CreateVisit(ctx context.Context, rec *models.VisitRecord) error {
	query := `
		INSERT INTO visits (id, user_id, nfc_tag_id, latitude, longitude, location_name, description,
			visit_timestamp, fingerprint, is_verified, content_ref, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false, $10, $11, $12)
	`
	_, err := p.db.Exec(ctx, query,
		rec.ID,
		rec.UserID,
		rec.NFCTagID,
		rec.Latitude,
		rec.Longitude,
		rec.LocationName,
		rec.Description,
		rec.Timestamp,
		rec.Fingerprint,
		rec.ContentRef,
		rec.Status,
		rec.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("visit fingerprint %s: %w", rec.Fingerprint, ErrDuplicate)
		}
		return err
	}
	return nil
}

func (p *Postgres) VisitByID(ctx context.Context, id uuid.UUID) (*models.VisitRecord, error) {
	query := `SELECT ` + visitColumns + ` FROM visits WHERE id = $1`
	return scanVisit(p.db.QueryRow(ctx, query, id))
}

func (p *Postgres) VisitByFingerprint(ctx context.Context, fingerprint string) (*models.VisitRecord, error) {
	query := `SELECT ` + visitColumns + ` FROM visits WHERE fingerprint = $1`
	return scanVisit(p.db.QueryRow(ctx, query, fingerprint))
}

func (p *Postgres) RecentVisits(ctx context.Context, userID, nfcTagID string, since time.Time) ([]models.VisitRecord, error) {
	query := `
		SELECT ` + visitColumns + `
		FROM visits
		WHERE user_id = $1 AND nfc_tag_id = $2 AND created_at >= $3
		ORDER BY created_at DESC
	`
	rows, err := p.db.Query(ctx, query, userID, nfcTagID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectVisits(rows)
}

func (p *Postgres) VisitsByUser(ctx context.Context, userID string) ([]models.VisitRecord, error) {
	query := `
		SELECT ` + visitColumns + `
		FROM visits
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := p.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectVisits(rows)
}

func collectVisits(rows pgx.Rows) ([]models.VisitRecord, error) {
	var visits []models.VisitRecord
	for rows.Next() {
		rec, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, *rec)
	}
	return visits, rows.Err()
}

// SetVisitStatus transitions a visit from one status to another. The WHERE
// clause on the current status makes transitions one-way: a record that
// already moved on is left untouched and the call reports ErrNotFound.
func (p *Postgres) SetVisitStatus(ctx context.Context, id uuid.UUID, from, to string, verifiedAt *time.Time) error {
	query := `
		UPDATE visits
		SET status = $1,
		    is_verified = ($1 = 'verified'),
		    verified_at = COALESCE($2, verified_at)
		WHERE id = $3 AND status = $4
	`
	tag, err := p.db.Exec(ctx, query, to, verifiedAt, id, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("visit %s not in status %q: %w", id, from, ErrNotFound)
	}
	return nil
}

func (p *Postgres) CreateClaim(ctx context.Context, claim *models.BadgeClaim) error {
	query := `
		INSERT INTO badge_claims (id, user_id, visit_id, badge_category_id, token_id,
			contract_address, tx_hash, metadata_ref, minted_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := p.db.Exec(ctx, query,
		claim.ID,
		claim.UserID,
		claim.VisitID,
		claim.BadgeCategoryID,
		claim.TokenID,
		claim.ContractAddress,
		claim.TxHash,
		claim.MetadataRef,
		claim.MintedAt,
		claim.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("claim (%s, %d): %w", claim.UserID, claim.BadgeCategoryID, ErrDuplicate)
		}
		return err
	}
	return nil
}

const claimColumns = `id, user_id, visit_id, badge_category_id, token_id,
	contract_address, tx_hash, metadata_ref, minted_at, created_at`

func scanClaim(row pgx.Row) (*models.BadgeClaim, error) {
	var claim models.BadgeClaim
	err := row.Scan(
		&claim.ID,
		&claim.UserID,
		&claim.VisitID,
		&claim.BadgeCategoryID,
		&claim.TokenID,
		&claim.ContractAddress,
		&claim.TxHash,
		&claim.MetadataRef,
		&claim.MintedAt,
		&claim.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &claim, nil
}

func (p *Postgres) ClaimByVisit(ctx context.Context, visitID uuid.UUID) (*models.BadgeClaim, error) {
	query := `SELECT ` + claimColumns + ` FROM badge_claims WHERE visit_id = $1`
	return scanClaim(p.db.QueryRow(ctx, query, visitID))
}

func (p *Postgres) ClaimByUserCategory(ctx context.Context, userID string, categoryID int64) (*models.BadgeClaim, error) {
	query := `SELECT ` + claimColumns + ` FROM badge_claims WHERE user_id = $1 AND badge_category_id = $2`
	return scanClaim(p.db.QueryRow(ctx, query, userID, categoryID))
}

func (p *Postgres) ClaimsByUser(ctx context.Context, userID string) ([]models.BadgeClaim, error) {
	query := `SELECT ` + claimColumns + ` FROM badge_claims WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := p.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []models.BadgeClaim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, *claim)
	}
	return claims, rows.Err()
}

func (p *Postgres) UpdateClaimMint(ctx context.Context, id uuid.UUID, tokenID, txHash string, mintedAt time.Time) error {
	query := `
		UPDATE badge_claims
		SET token_id = $1,
		    tx_hash = COALESCE(NULLIF($2, ''), tx_hash),
		    minted_at = COALESCE(minted_at, $3)
		WHERE id = $4
	`
	tag, err := p.db.Exec(ctx, query, tokenID, txHash, mintedAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("claim %s: %w", id, ErrNotFound)
	}
	return nil
}
