package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"geobadge-backend/models"
	"geobadge-backend/services"
	"geobadge-backend/store"
)

// AuthHandler issues wallet login challenges and verifies their
// signatures. Challenges live in the shared challenge store and are
// consumed on first use, so a given challenge cannot be replayed.
type AuthHandler struct {
	challenges *store.ChallengeStore
	ttlSeconds int
	log        *zap.SugaredLogger
}

func NewAuthHandler(challenges *store.ChallengeStore, ttlSeconds int, log *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{challenges: challenges, ttlSeconds: ttlSeconds, log: log}
}

func (h *AuthHandler) Challenge(c *gin.Context) {
	var req models.ChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message, err := services.GenerateChallenge(req.WalletAddress)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.challenges.Save(c.Request.Context(), req.WalletAddress, message); err != nil {
		h.log.Errorw("failed to save challenge", "address", req.WalletAddress, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue challenge"})
		return
	}

	c.JSON(http.StatusOK, models.ChallengeResponse{
		WalletAddress: req.WalletAddress,
		Message:       message,
		ExpiresIn:     h.ttlSeconds,
	})
}

// Verify consumes the pending challenge and checks the signature. A failed
// verification is final for the given inputs; the client must request a
// fresh challenge to retry.
func (h *AuthHandler) Verify(c *gin.Context) {
	var req models.VerifyLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message, err := h.challenges.Consume(c.Request.Context(), req.WalletAddress)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, models.VerifyLoginResponse{
				Success: false,
				Message: "No pending challenge; request a new one",
			})
			return
		}
		h.log.Errorw("failed to consume challenge", "address", req.WalletAddress, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Challenge lookup failed"})
		return
	}

	if !services.VerifySignature(req.WalletAddress, req.Signature, message) {
		h.log.Infow("signature verification failed", "address", req.WalletAddress)
		c.JSON(http.StatusUnauthorized, models.VerifyLoginResponse{
			Success: false,
			Message: "Signature does not match wallet address",
		})
		return
	}

	c.JSON(http.StatusOK, models.VerifyLoginResponse{
		Success:       true,
		WalletAddress: req.WalletAddress,
	})
}
