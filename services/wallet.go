package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const challengeNonceBytes = 16

// GenerateChallenge builds the message a wallet must sign to prove control
// of address. The nonce comes from crypto/rand, so challenges are
// unpredictable and each one is good for a single login attempt.
func GenerateChallenge(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid wallet address: %s", address)
	}
	nonce := make([]byte, challengeNonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate challenge nonce: %w", err)
	}

	message := fmt.Sprintf(
		"Sign this message to verify your visit wallet.\n\nAddress: %s\nIssued At: %s\nNonce: %s",
		common.HexToAddress(address).Hex(),
		time.Now().UTC().Format(time.RFC3339),
		hex.EncodeToString(nonce),
	)
	return message, nil
}

// VerifySignature recovers the signer of an EIP-191 personal-sign message
// and compares it to the claimed address, case-insensitively. Malformed
// input of any kind returns false; nothing here panics or errors past the
// boundary. A false result is final for the given inputs.
func VerifySignature(address, signature, message string) bool {
	if !common.IsHexAddress(address) {
		return false
	}

	sigBytes, err := hexutil.Decode(signature)
	if err != nil || len(sigBytes) != crypto.SignatureLength {
		return false
	}

	// Wallets report V as 27/28; go-ethereum expects 0/1.
	sig := make([]byte, crypto.SignatureLength)
	copy(sig, sigBytes)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] != 0 && sig[crypto.RecoveryIDOffset] != 1 {
		return false
	}

	digest := accounts.TextHash([]byte(message))
	pubKey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return false
	}

	recovered := crypto.PubkeyToAddress(*pubKey)
	return strings.EqualFold(recovered.Hex(), address)
}
