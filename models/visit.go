package models

import (
	"time"

	"github.com/google/uuid"
)

// Visit lifecycle statuses. Transitions are one-way: pending -> verified,
// pending -> rejected, pending -> flagged.
const (
	VisitStatusPending  = "pending"
	VisitStatusVerified = "verified"
	VisitStatusRejected = "rejected"
	VisitStatusFlagged  = "flagged"
)

// VisitAttempt is the raw client submission. It is never persisted as-is;
// admission either turns it into a VisitRecord or rejects it.
type VisitAttempt struct {
	UserID         string    `json:"user_id"`
	NFCTagID       string    `json:"nfc_tag_id"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters *float64  `json:"accuracy_meters,omitempty"`
	LocationName   string    `json:"location_name,omitempty"`
	Description    string    `json:"description,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

type VisitRecord struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	UserID       string     `json:"user_id" db:"user_id"`
	NFCTagID     string     `json:"nfc_tag_id" db:"nfc_tag_id"`
	Latitude     float64    `json:"latitude" db:"latitude"`
	Longitude    float64    `json:"longitude" db:"longitude"`
	LocationName *string    `json:"location_name,omitempty" db:"location_name"`
	Description  *string    `json:"description,omitempty" db:"description"`
	Timestamp    time.Time  `json:"timestamp" db:"visit_timestamp"`
	Fingerprint  string     `json:"fingerprint" db:"fingerprint"`
	IsVerified   bool       `json:"is_verified" db:"is_verified"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty" db:"verified_at"`
	ContentRef   string     `json:"content_ref,omitempty" db:"content_ref"`
	Status       string     `json:"status" db:"status"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

type SubmitVisitRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	NFCTagID string `json:"nfc_tag_id" binding:"required"`
	// Pointers, not bare float64: "required" on a float64 treats a
	// legitimate 0 (equator, prime meridian) as missing. The null-island
	// policy belongs to coordinate validation, not request binding.
	Latitude       *float64 `json:"latitude" binding:"required"`
	Longitude      *float64 `json:"longitude" binding:"required"`
	AccuracyMeters *float64 `json:"accuracy_meters"`
	LocationName   string   `json:"location_name"`
	Description    string   `json:"description"`
	Timestamp      string   `json:"timestamp"`
}
