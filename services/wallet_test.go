package services

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signPersonal(t *testing.T, message string, keyHex string) (address, signature string) {
	t.Helper()
	key, err := crypto.HexToECDSA(keyHex)
	require.NoError(t, err)

	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	require.NoError(t, err)
	// Wallets shift V into the 27/28 range.
	sig[crypto.RecoveryIDOffset] += 27

	return crypto.PubkeyToAddress(key.PublicKey).Hex(), hexutil.Encode(sig)
}

const testKeyHex = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

func TestGenerateChallenge(t *testing.T) {
	addr := "0x8a0A2FE6b1E5b6AC9ad69B6cd9cc6DD3D5C2b3Ca"

	msg, err := GenerateChallenge(addr)
	require.NoError(t, err)
	assert.Contains(t, msg, "Nonce:")
	assert.Contains(t, strings.ToLower(msg), strings.ToLower(addr))

	t.Run("unpredictable nonce", func(t *testing.T) {
		other, err := GenerateChallenge(addr)
		require.NoError(t, err)
		assert.NotEqual(t, msg, other)
	})

	t.Run("rejects a non-address", func(t *testing.T) {
		_, err := GenerateChallenge("not-an-address")
		assert.Error(t, err)
	})
}

func TestVerifySignatureRoundTrip(t *testing.T) {
	message, err := GenerateChallenge("0x8a0A2FE6b1E5b6AC9ad69B6cd9cc6DD3D5C2b3Ca")
	require.NoError(t, err)

	addr, sig := signPersonal(t, message, testKeyHex)

	assert.True(t, VerifySignature(addr, sig, message))

	t.Run("address compare is case-insensitive", func(t *testing.T) {
		assert.True(t, VerifySignature(strings.ToLower(addr), sig, message))
		assert.True(t, VerifySignature("0x"+strings.ToUpper(strings.TrimPrefix(addr, "0x")), sig, message))
	})

	t.Run("accepts raw 0/1 recovery id", func(t *testing.T) {
		raw, err := hexutil.Decode(sig)
		require.NoError(t, err)
		raw[crypto.RecoveryIDOffset] -= 27
		assert.True(t, VerifySignature(addr, hexutil.Encode(raw), message))
	})
}

func TestVerifySignatureRejections(t *testing.T) {
	message := "Sign this message to verify your visit wallet.\n\nNonce: abc"
	addr, sig := signPersonal(t, message, testKeyHex)

	t.Run("different claimed address", func(t *testing.T) {
		assert.False(t, VerifySignature("0x0000000000000000000000000000000000000001", sig, message))
	})

	t.Run("tampered message", func(t *testing.T) {
		assert.False(t, VerifySignature(addr, sig, message+" "))
	})

	t.Run("signature from another key", func(t *testing.T) {
		otherKey, err := crypto.GenerateKey()
		require.NoError(t, err)
		otherSig, err := crypto.Sign(accounts.TextHash([]byte(message)), otherKey)
		require.NoError(t, err)
		assert.False(t, VerifySignature(addr, hexutil.Encode(otherSig), message))
	})

	t.Run("malformed inputs never panic", func(t *testing.T) {
		assert.False(t, VerifySignature(addr, "0x1234", message))
		assert.False(t, VerifySignature(addr, "garbage", message))
		assert.False(t, VerifySignature(addr, "", message))
		assert.False(t, VerifySignature("", sig, message))
		assert.False(t, VerifySignature("not-an-address", sig, message))
	})

	t.Run("invalid recovery id", func(t *testing.T) {
		raw, err := hexutil.Decode(sig)
		require.NoError(t, err)
		raw[crypto.RecoveryIDOffset] = 9
		assert.False(t, VerifySignature(addr, hexutil.Encode(raw), message))
	})
}
