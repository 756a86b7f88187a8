package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"community_inbox/internal/domain"
	"community_inbox/internal/middleware"
	"community_inbox/internal/service"
	"community_inbox/pkg/logger"
)

type InboxHandler struct {
	messaging service.MessagingService
	log       logger.Logger
}

func NewInboxHandler(messaging service.MessagingService, log logger.Logger) *InboxHandler {
	return &InboxHandler{messaging: messaging, log: log}
}

// UnreadCount sits behind OptionalAuth: anonymous callers get a zero badge,
// never a redirect.
func (h *InboxHandler) UnreadCount(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"count": 0})
		return
	}

	count, err := h.messaging.GetUnreadCount(c.Request.Context(), user.ID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *InboxHandler) ListConversations(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var filter *domain.ConversationType
	if v := c.Query("type"); v != "" {
		t := domain.ConversationType(v)
		if !t.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation type"})
			return
		}
		filter = &t
	}

	summaries, err := h.messaging.GetConversations(c.Request.Context(), user, filter)
	if err != nil {
		c.Error(err)
		return
	}
	if summaries == nil {
		summaries = []*domain.ConversationSummary{}
	}

	c.JSON(http.StatusOK, summaries)
}

func (h *InboxHandler) GetConversation(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation ID"})
		return
	}

	detail, err := h.messaging.GetConversationMessages(c.Request.Context(), user, conversationID)
	if err != nil {
		c.Error(err)
		return
	}
	if detail == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	c.JSON(http.StatusOK, detail)
}

type replyRequest struct {
	Body string `json:"body" binding:"required"`
}

func (h *InboxHandler) Reply(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation ID"})
		return
	}

	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.messaging.ReplyToConversation(c.Request.Context(), user, conversationID, req.Body); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"conversation_id": conversationID})
}

func (h *InboxHandler) MarkRead(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation ID"})
		return
	}

	if err := h.messaging.MarkConversationRead(c.Request.Context(), user, conversationID); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *InboxHandler) Archive(c *gin.Context) {
	h.setParticipantFlag(c, h.messaging.ArchiveConversation)
}

func (h *InboxHandler) Delete(c *gin.Context) {
	h.setParticipantFlag(c, h.messaging.DeleteConversation)
}

func (h *InboxHandler) setParticipantFlag(c *gin.Context, op func(ctx context.Context, caller *domain.User, conversationID uuid.UUID) error) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation ID"})
		return
	}

	if err := op(c.Request.Context(), user, conversationID); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

type sendDirectRequest struct {
	RecipientID uuid.UUID `json:"recipient_id" binding:"required"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body" binding:"required"`
}

func (h *InboxHandler) SendDirect(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req sendDirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conversationID, err := h.messaging.SendDirectMessage(c.Request.Context(), user, req.RecipientID, req.Subject, req.Body)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"conversation_id": conversationID})
}

type sendBusinessRequest struct {
	ListingID uuid.UUID `json:"listing_id" binding:"required"`
	Body      string    `json:"body" binding:"required"`
}

func (h *InboxHandler) SendBusiness(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req sendBusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conversationID, err := h.messaging.SendBusinessMessage(c.Request.Context(), user, req.ListingID, req.Body)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"conversation_id": conversationID})
}

func (h *InboxHandler) SearchUsers(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	results, err := h.messaging.SearchUsers(c.Request.Context(), user, c.Query("q"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, results)
}
