package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fpTime = time.Date(2025, 6, 15, 12, 30, 45, 123_000_000, time.UTC)

func TestComputeFingerprintDeterminism(t *testing.T) {
	a := ComputeFingerprint("0xAbC", "TAG-42", 45.4642, 9.19, fpTime)
	b := ComputeFingerprint("0xAbC", "TAG-42", 45.4642, 9.19, fpTime)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64) // hex sha256
}

func TestComputeFingerprintFieldSensitivity(t *testing.T) {
	base := ComputeFingerprint("u1", "TAG-42", 45.4642, 9.19, fpTime)

	assert.NotEqual(t, base, ComputeFingerprint("u2", "TAG-42", 45.4642, 9.19, fpTime))
	assert.NotEqual(t, base, ComputeFingerprint("u1", "TAG-43", 45.4642, 9.19, fpTime))
	assert.NotEqual(t, base, ComputeFingerprint("u1", "TAG-42", 45.4643, 9.19, fpTime))
	assert.NotEqual(t, base, ComputeFingerprint("u1", "TAG-42", 45.4642, 9.19, fpTime.Add(time.Second)))
}

func TestComputeFingerprintRounding(t *testing.T) {
	// Digits beyond the 8th decimal place must not change the result.
	a := ComputeFingerprint("u1", "TAG-42", 45.123456789, 9.190000001, fpTime)
	b := ComputeFingerprint("u1", "TAG-42", 45.1234567894, 9.1900000014, fpTime)
	assert.Equal(t, a, b)

	// A change at the 8th decimal place does.
	c := ComputeFingerprint("u1", "TAG-42", 45.12345680, 9.190000001, fpTime)
	assert.NotEqual(t, a, c)
}

func TestComputeFingerprintTimezoneNormalization(t *testing.T) {
	cet := time.FixedZone("CET", 2*60*60)
	local := fpTime.In(cet)
	require.True(t, local.Equal(fpTime))

	assert.Equal(t,
		ComputeFingerprint("u1", "TAG-42", 45.4642, 9.19, fpTime),
		ComputeFingerprint("u1", "TAG-42", 45.4642, 9.19, local),
	)
}

func TestCanonicalPayloadShape(t *testing.T) {
	payload := CanonicalPayload("u1", "TAG-42", 45.4642, 9.19, fpTime)

	var fields map[string]string
	require.NoError(t, json.Unmarshal(payload, &fields))
	assert.Equal(t, "45.46420000", fields["lat"])
	assert.Equal(t, "9.19000000", fields["lon"])
	assert.Equal(t, "2025-06-15T12:30:45.123Z", fields["timestamp"])
	assert.Equal(t, "TAG-42", fields["tag"])
	assert.Equal(t, "u1", fields["user"])
}

func TestVerifyIntegrity(t *testing.T) {
	payload := CanonicalPayload("u1", "TAG-42", 45.4642, 9.19, fpTime)
	fingerprint := ComputeFingerprint("u1", "TAG-42", 45.4642, 9.19, fpTime)

	assert.True(t, VerifyIntegrity(payload, fingerprint))

	tampered := append([]byte{}, payload...)
	tampered[len(tampered)-2] ^= 0xFF
	assert.False(t, VerifyIntegrity(tampered, fingerprint))

	assert.False(t, VerifyIntegrity(payload, "deadbeef"))
	assert.False(t, VerifyIntegrity(nil, fingerprint))
}
