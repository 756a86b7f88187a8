package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"community_inbox/internal/domain"
	"community_inbox/internal/middleware"
	"community_inbox/internal/service"
	"community_inbox/pkg/logger"
)

type BroadcastHandler struct {
	messaging service.MessagingService
	log       logger.Logger
}

func NewBroadcastHandler(messaging service.MessagingService, log logger.Logger) *BroadcastHandler {
	return &BroadcastHandler{messaging: messaging, log: log}
}

type sendBroadcastRequest struct {
	Subject    string `json:"subject" binding:"required"`
	Body       string `json:"body" binding:"required"`
	TargetType string `json:"target_type" binding:"required"`
	TargetID   string `json:"target_id"`
}

func (h *BroadcastHandler) Send(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req sendBroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	target, ok := parseBroadcastTarget(req.TargetType, req.TargetID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid broadcast target"})
		return
	}

	result, err := h.messaging.SendAdminBroadcast(c.Request.Context(), user, req.Subject, req.Body, target)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// RecipientCount previews how many members a broadcast would reach, using
// the same targeting predicate as Send.
func (h *BroadcastHandler) RecipientCount(c *gin.Context) {
	target, ok := parseBroadcastTarget(c.Query("target_type"), c.Query("target_id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid broadcast target"})
		return
	}

	count, err := h.messaging.GetBroadcastRecipientCount(c.Request.Context(), target)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

func parseBroadcastTarget(targetType, targetID string) (domain.BroadcastTarget, bool) {
	target := domain.BroadcastTarget{Type: targetType}

	switch targetType {
	case domain.BroadcastTargetAll:
	case domain.BroadcastTargetZone:
		zoneID, err := uuid.Parse(targetID)
		if err != nil {
			return target, false
		}
		target.ZoneID = &zoneID
	case domain.BroadcastTargetSection:
		if targetID == "" {
			return target, false
		}
		target.Section = &targetID
	default:
		return target, false
	}

	return target, true
}
