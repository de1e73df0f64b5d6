package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"geobadge-backend/models"
	"geobadge-backend/services"
)

type BadgeHandler struct {
	badges *services.BadgeService
	log    *zap.SugaredLogger
}

func NewBadgeHandler(badges *services.BadgeService, log *zap.SugaredLogger) *BadgeHandler {
	return &BadgeHandler{badges: badges, log: log}
}

// ClaimBadge mints the badge for a verified visit.
func (h *BadgeHandler) ClaimBadge(c *gin.Context) {
	var req models.ClaimBadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	visitID, err := uuid.Parse(req.VisitID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid visit id"})
		return
	}

	claim, err := h.badges.ClaimBadge(c.Request.Context(), req.UserID, visitID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error(), "code": errorCode(err)})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Badge claimed",
		"claim":   claim,
	})
}

func (h *BadgeHandler) GetUserBadges(c *gin.Context) {
	userID := c.Param("address")

	claims, err := h.badges.ClaimsByUser(c.Request.Context(), userID)
	if err != nil {
		h.log.Errorw("failed to list badge claims", "user", userID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"claims": claims, "count": len(claims)})
}
