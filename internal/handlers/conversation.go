package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"realtime-service/internal/chat"
	"realtime-service/internal/middleware"
	"realtime-service/internal/telemetry"
)

// ConversationHandler manages conversation-level endpoints.
type ConversationHandler struct {
	chat  chat.API
	audit *telemetry.AuditEmitter
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(chatAPI chat.API, audit *telemetry.AuditEmitter) *ConversationHandler {
	return &ConversationHandler{chat: chatAPI, audit: audit}
}

// List returns one page of the user's conversations, newest activity first.
func (h *ConversationHandler) List(c *gin.Context) {
	userID := middleware.UserID(c)

	summaries, err := h.chat.ListConversations(c.Request.Context(), userID, pageQuery(c))
	if err != nil {
		respondChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

// Create opens a conversation with another user.
func (h *ConversationHandler) Create(c *gin.Context) {
	var req struct {
		ContactID int64 `json:"contactId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.UserID(c)
	created, err := h.chat.CreateConversation(c.Request.Context(), userID, req.ContactID)
	if err != nil {
		respondChatError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Conversation created")
	c.JSON(http.StatusCreated, created)
}

// Get returns one page of a conversation's messages for the user. Opening
// the conversation also drains any queued backlog for them.
func (h *ConversationHandler) Get(c *gin.Context) {
	convID, ok := parseIDParam(c, "conversation_id")
	if !ok {
		return
	}

	userID := middleware.UserID(c)
	page, err := h.chat.GetConversation(c.Request.Context(), convID, userID, pageQuery(c))
	if err != nil {
		respondChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Clear empties the conversation, for everyone when ?forEveryone=true and
// for the caller alone otherwise.
func (h *ConversationHandler) Clear(c *gin.Context) {
	convID, ok := parseIDParam(c, "conversation_id")
	if !ok {
		return
	}

	userID := middleware.UserID(c)
	if err := h.chat.Clear(c.Request.Context(), convID, userID, boolQuery(c, "forEveryone")); err != nil {
		respondChatError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Conversation cleared")
	c.Status(http.StatusNoContent)
}

// Delete destroys the conversation for both sides.
func (h *ConversationHandler) Delete(c *gin.Context) {
	convID, ok := parseIDParam(c, "conversation_id")
	if !ok {
		return
	}

	userID := middleware.UserID(c)
	if err := h.chat.DeleteConversation(c.Request.Context(), convID, userID); err != nil {
		respondChatError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Conversation deleted")
	c.Status(http.StatusNoContent)
}

func (h *ConversationHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
