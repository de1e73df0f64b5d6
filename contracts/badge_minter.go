package contracts

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrAlreadyClaimed is returned when the contract itself rejects a mint
// because the (address, category) pair is already claimed. The contract
// enforces this on-chain regardless of caller discipline; callers treat it
// as a reconcilable outcome, not a failure.
var ErrAlreadyClaimed = errors.New("badge already claimed on chain")

// MintResult carries the references a successful mint produces.
type MintResult struct {
	TokenID string
	TxHash  string
}

// BadgeMinter wraps the GeoBadge ERC-721 contract. One badge per
// (address, category), enforced by the contract's claimed-flag.
type BadgeMinter struct {
	client     *ethclient.Client
	address    common.Address
	abi        abi.ABI
	minterKey  *ecdsa.PrivateKey
	minterAddr common.Address
	chainID    *big.Int
}

// NewBadgeMinter creates a BadgeMinter. minterKeyHex is the custodial
// minter account's private key; the contract restricts mintBadge to it.
func NewBadgeMinter(client *ethclient.Client, contractAddress, minterKeyHex string, chainID int64) (*BadgeMinter, error) {
	// GeoBadge ABI - only the functions we need
	badgeABI := `[
		{"inputs":[{"internalType":"address","name":"owner","type":"address"},{"internalType":"uint256","name":"categoryId","type":"uint256"}],"name":"hasClaimed","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"},
		{"inputs":[{"internalType":"address","name":"owner","type":"address"},{"internalType":"uint256","name":"categoryId","type":"uint256"}],"name":"claimedToken","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"inputs":[{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"categoryId","type":"uint256"},{"internalType":"string","name":"metadataRef","type":"string"}],"name":"mintBadge","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"nonpayable","type":"function"}
	]`

	parsedABI, err := abi.JSON(strings.NewReader(badgeABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse badge ABI: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(minterKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid minter key: %w", err)
	}

	return &BadgeMinter{
		client:     client,
		address:    common.HexToAddress(contractAddress),
		abi:        parsedABI,
		minterKey:  key,
		minterAddr: crypto.PubkeyToAddress(key.PublicKey),
		chainID:    big.NewInt(chainID),
	}, nil
}

// ContractAddress returns the badge contract address as hex.
func (bm *BadgeMinter) ContractAddress() string {
	return bm.address.Hex()
}

// HasClaimed calls the contract's hasClaimed(owner, categoryId) view.
func (bm *BadgeMinter) HasClaimed(ctx context.Context, ownerAddress string, categoryID int64) (bool, error) {
	callData, err := bm.abi.Pack("hasClaimed", common.HexToAddress(ownerAddress), big.NewInt(categoryID))
	if err != nil {
		return false, fmt.Errorf("failed to pack hasClaimed call data: %w", err)
	}

	result, err := bm.client.CallContract(ctx, ethereum.CallMsg{
		To:   &bm.address,
		Data: callData,
	}, nil)
	if err != nil {
		return false, fmt.Errorf("failed to call hasClaimed: %w", err)
	}

	var claimed bool
	if err := bm.abi.UnpackIntoInterface(&claimed, "hasClaimed", result); err != nil {
		return false, fmt.Errorf("failed to unpack hasClaimed result: %w", err)
	}
	return claimed, nil
}

// ClaimedToken returns the token id held by owner for a category. The
// contract returns 0 for an unclaimed pair.
func (bm *BadgeMinter) ClaimedToken(ctx context.Context, ownerAddress string, categoryID int64) (string, error) {
	callData, err := bm.abi.Pack("claimedToken", common.HexToAddress(ownerAddress), big.NewInt(categoryID))
	if err != nil {
		return "", fmt.Errorf("failed to pack claimedToken call data: %w", err)
	}

	result, err := bm.client.CallContract(ctx, ethereum.CallMsg{
		To:   &bm.address,
		Data: callData,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to call claimedToken: %w", err)
	}

	var tokenID *big.Int
	if err := bm.abi.UnpackIntoInterface(&tokenID, "claimedToken", result); err != nil {
		return "", fmt.Errorf("failed to unpack claimedToken result: %w", err)
	}
	return tokenID.String(), nil
}

// Mint sends a mintBadge transaction and waits for its receipt. The wait
// is bounded by ctx; a timed-out mint must be resolved by the caller
// re-querying HasClaimed, never by blind re-submission.
func (bm *BadgeMinter) Mint(ctx context.Context, ownerAddress string, categoryID int64, metadataRef string) (MintResult, error) {
	callData, err := bm.abi.Pack("mintBadge", common.HexToAddress(ownerAddress), big.NewInt(categoryID), metadataRef)
	if err != nil {
		return MintResult{}, fmt.Errorf("failed to pack mintBadge call data: %w", err)
	}

	// Simulate first: a doomed mint surfaces the contract's revert reason
	// without spending gas, and an already-claimed pair is detected here.
	_, err = bm.client.CallContract(ctx, ethereum.CallMsg{
		From: bm.minterAddr,
		To:   &bm.address,
		Data: callData,
	}, nil)
	if err != nil {
		if isAlreadyClaimedRevert(err) {
			return MintResult{}, ErrAlreadyClaimed
		}
		return MintResult{}, fmt.Errorf("mintBadge simulation failed: %w", err)
	}

	nonce, err := bm.client.PendingNonceAt(ctx, bm.minterAddr)
	if err != nil {
		return MintResult{}, fmt.Errorf("failed to get minter nonce: %w", err)
	}
	gasPrice, err := bm.client.SuggestGasPrice(ctx)
	if err != nil {
		return MintResult{}, fmt.Errorf("failed to get gas price: %w", err)
	}
	gasLimit, err := bm.client.EstimateGas(ctx, ethereum.CallMsg{
		From: bm.minterAddr,
		To:   &bm.address,
		Data: callData,
	})
	if err != nil {
		if isAlreadyClaimedRevert(err) {
			return MintResult{}, ErrAlreadyClaimed
		}
		return MintResult{}, fmt.Errorf("failed to estimate gas: %w", err)
	}

	tx := types.NewTransaction(nonce, bm.address, big.NewInt(0), gasLimit, gasPrice, callData)
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(bm.chainID), bm.minterKey)
	if err != nil {
		return MintResult{}, fmt.Errorf("failed to sign mint transaction: %w", err)
	}

	if err := bm.client.SendTransaction(ctx, signedTx); err != nil {
		if isAlreadyClaimedRevert(err) {
			return MintResult{}, ErrAlreadyClaimed
		}
		return MintResult{}, fmt.Errorf("failed to send mint transaction: %w", err)
	}

	receipt, err := bm.waitMined(ctx, signedTx.Hash())
	if err != nil {
		return MintResult{}, fmt.Errorf("mint transaction %s not confirmed: %w", signedTx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		// Reverted after simulation passed: the races lost here are
		// contract-side duplicate claims.
		return MintResult{}, ErrAlreadyClaimed
	}

	tokenID, err := bm.tokenIDFromReceipt(receipt)
	if err != nil {
		// The mint succeeded; fall back to the claimedToken view.
		tokenID, err = bm.ClaimedToken(ctx, ownerAddress, categoryID)
		if err != nil {
			return MintResult{}, fmt.Errorf("mint confirmed but token id unavailable: %w", err)
		}
	}

	return MintResult{
		TokenID: tokenID,
		TxHash:  receipt.TxHash.Hex(),
	}, nil
}

func (bm *BadgeMinter) waitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		receipt, err := bm.client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// erc721TransferTopic is keccak256("Transfer(address,address,uint256)").
var erc721TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

func (bm *BadgeMinter) tokenIDFromReceipt(receipt *types.Receipt) (string, error) {
	for _, lg := range receipt.Logs {
		if lg.Address != bm.address || len(lg.Topics) != 4 {
			continue
		}
		if lg.Topics[0] != erc721TransferTopic {
			continue
		}
		return new(big.Int).SetBytes(lg.Topics[3].Bytes()).String(), nil
	}
	return "", fmt.Errorf("no Transfer event in receipt")
}

func isAlreadyClaimedRevert(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already claimed") || strings.Contains(msg, "alreadyclaimed")
}
