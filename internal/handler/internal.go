package handler

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"community_inbox/internal/config"
	"community_inbox/internal/service"
	"community_inbox/pkg/logger"
)

// InternalHandler is the notification bridge's transport: trusted endpoints
// the platform's other subsystems (registration approval, directory
// moderation, incident intake) call to drop system notifications into
// member inboxes. Guarded by a shared secret, not user auth.
type InternalHandler struct {
	messaging service.MessagingService
	notify    service.NotifyService
	cfg       config.InboxConfig
	log       logger.Logger
}

func NewInternalHandler(messaging service.MessagingService, notify service.NotifyService, cfg config.InboxConfig, log logger.Logger) *InternalHandler {
	return &InternalHandler{
		messaging: messaging,
		notify:    notify,
		cfg:       cfg,
		log:       log,
	}
}

// RequireSecret gates internal endpoints on the shared secret header. With
// no secret configured the endpoints are disabled entirely.
func (h *InternalHandler) RequireSecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := c.GetHeader("X-Internal-Secret")
		if h.cfg.InternalAPISecret == "" ||
			subtle.ConstantTimeCompare([]byte(secret), []byte(h.cfg.InternalAPISecret)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			c.Abort()
			return
		}
		c.Next()
	}
}

type systemNotificationRequest struct {
	UserID   uuid.UUID         `json:"user_id" binding:"required"`
	Subject  string            `json:"subject" binding:"required"`
	Body     string            `json:"body" binding:"required"`
	Metadata map[string]string `json:"metadata"`
}

func (h *InternalHandler) SendNotification(c *gin.Context) {
	var req systemNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conversationID, err := h.messaging.SendSystemNotification(c.Request.Context(), req.UserID, req.Subject, req.Body, req.Metadata)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"conversation_id": conversationID})
}

type memberEventRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

func (h *InternalHandler) MemberApproved(c *gin.Context) {
	h.memberEvent(c, h.notify.MemberApproved)
}

func (h *InternalHandler) MemberRejected(c *gin.Context) {
	h.memberEvent(c, h.notify.MemberRejected)
}

func (h *InternalHandler) memberEvent(c *gin.Context, notify func(ctx context.Context, userID uuid.UUID) error) {
	var req memberEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := notify(c.Request.Context(), req.UserID); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusCreated)
}

type listingEventRequest struct {
	UserID      uuid.UUID `json:"user_id" binding:"required"`
	ListingID   uuid.UUID `json:"listing_id"`
	ListingName string    `json:"listing_name" binding:"required"`
}

func (h *InternalHandler) ListingApproved(c *gin.Context) {
	var req listingEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.notify.ListingApproved(c.Request.Context(), req.UserID, req.ListingName, req.ListingID); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusCreated)
}

func (h *InternalHandler) ListingRejected(c *gin.Context) {
	var req listingEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.notify.ListingRejected(c.Request.Context(), req.UserID, req.ListingName); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusCreated)
}

type incidentAlertRequest struct {
	UserIDs      []uuid.UUID `json:"user_ids" binding:"required"`
	IncidentType string      `json:"incident_type" binding:"required"`
	Location     string      `json:"location" binding:"required"`
}

func (h *InternalHandler) IncidentAlert(c *gin.Context) {
	var req incidentAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.notify.IncidentInZone(c.Request.Context(), req.UserIDs, req.IncidentType, req.Location); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusCreated)
}
