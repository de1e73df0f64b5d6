package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"geobadge-backend/models"
	"geobadge-backend/services"
)

type VisitHandler struct {
	visits *services.VisitService
	log    *zap.SugaredLogger
}

func NewVisitHandler(visits *services.VisitService, log *zap.SugaredLogger) *VisitHandler {
	return &VisitHandler{visits: visits, log: log}
}

// SubmitVisit admits a new visit attempt.
func (h *VisitHandler) SubmitVisit(c *gin.Context) {
	var req models.SubmitVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ts, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "timestamp must be RFC 3339",
			"code":  "INVALID_TIMESTAMP",
		})
		return
	}

	attempt := models.VisitAttempt{
		UserID:         req.UserID,
		NFCTagID:       req.NFCTagID,
		Latitude:       *req.Latitude,
		Longitude:      *req.Longitude,
		AccuracyMeters: req.AccuracyMeters,
		LocationName:   req.LocationName,
		Description:    req.Description,
		Timestamp:      ts,
	}

	rec, err := h.visits.AdmitVisit(c.Request.Context(), attempt)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error(), "code": errorCode(err)})
		return
	}

	c.JSON(http.StatusCreated, rec)
}

// VerifyVisit re-checks a stored payload against the recorded fingerprint
// and promotes the visit to verified.
func (h *VisitHandler) VerifyVisit(c *gin.Context) {
	visitID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid visit id"})
		return
	}

	rec, err := h.visits.VerifyVisit(c.Request.Context(), visitID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error(), "code": errorCode(err)})
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (h *VisitHandler) GetVisit(c *gin.Context) {
	visitID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid visit id"})
		return
	}

	rec, err := h.visits.VisitByID(c.Request.Context(), visitID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error(), "code": errorCode(err)})
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (h *VisitHandler) GetUserVisits(c *gin.Context) {
	userID := c.Param("address")

	visits, err := h.visits.VisitsByUser(c.Request.Context(), userID)
	if err != nil {
		h.log.Errorw("failed to list visits", "user", userID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"visits": visits, "count": len(visits)})
}
