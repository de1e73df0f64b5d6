package services

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"
)

// Timestamps are normalized to UTC with millisecond precision before
// hashing, so a JavaScript toISOString producer and this code agree byte
// for byte.
const canonicalTimeLayout = "2006-01-02T15:04:05.000Z"

// CanonicalPayload builds the exact bytes a visit fingerprint is computed
// over: latitude/longitude rendered as fixed 8-decimal strings (binary
// float representation never leaks into the hash), the timestamp in
// canonical UTC form, and JSON with lexicographically ordered keys.
// The same bytes are what gets written to the content-addressed store, so
// fingerprint == sha256(stored payload) by construction.
func CanonicalPayload(userID, nfcTagID string, lat, lon float64, ts time.Time) []byte {
	fields := map[string]string{
		"lat":       strconv.FormatFloat(lat, 'f', 8, 64),
		"lon":       strconv.FormatFloat(lon, 'f', 8, 64),
		"tag":       nfcTagID,
		"timestamp": ts.UTC().Format(canonicalTimeLayout),
		"user":      userID,
	}
	// encoding/json writes map keys in sorted order, which is the
	// deterministic serialization this contract depends on.
	payload, err := json.Marshal(fields)
	if err != nil {
		// Marshal of map[string]string cannot fail.
		panic(err)
	}
	return payload
}

// ComputeFingerprint returns the hex sha256 of the canonical payload.
// Identical logical inputs always produce byte-identical output, across
// processes and runtimes; auditors re-derive it from stored payloads.
func ComputeFingerprint(userID, nfcTagID string, lat, lon float64, ts time.Time) string {
	sum := sha256.Sum256(CanonicalPayload(userID, nfcTagID, lat, lon, ts))
	return hex.EncodeToString(sum[:])
}

// VerifyIntegrity recomputes the fingerprint of a stored payload and
// compares it against the expected value in constant time.
func VerifyIntegrity(storedPayload []byte, expectedFingerprint string) bool {
	sum := sha256.Sum256(storedPayload)
	actual := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(actual), []byte(expectedFingerprint)) == 1
}
