package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"realtime-service/internal/chat"
	"realtime-service/internal/middleware"
	"realtime-service/internal/models"
	"realtime-service/internal/telemetry"
)

// MessageHandler manages message-level endpoints.
type MessageHandler struct {
	chat  chat.API
	audit *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(chatAPI chat.API, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{chat: chatAPI, audit: audit}
}

// Send stores a message and fans it out to the conversation.
func (h *MessageHandler) Send(c *gin.Context) {
	convID, ok := parseIDParam(c, "conversation_id")
	if !ok {
		return
	}

	var req struct {
		Text    string           `json:"text"`
		Files   []models.FileRef `json:"files"`
		ReplyTo *int64           `json:"replyTo"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.UserID(c)
	msg, err := h.chat.SendMessage(c.Request.Context(), chat.SendParams{
		ConversationID: convID,
		SenderID:       userID,
		Text:           req.Text,
		Files:          req.Files,
		ReplyTo:        req.ReplyTo,
	})
	if err != nil {
		respondChatError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Message sent")
	c.JSON(http.StatusCreated, msg)
}

// MarkRead advances the caller's read cursor over their unread backlog and
// returns the refreshed delivery info. Calling it twice is harmless.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	convID, ok := parseIDParam(c, "conversation_id")
	if !ok {
		return
	}

	userID := middleware.UserID(c)
	infos, err := h.chat.MarkRead(c.Request.Context(), convID, userID)
	if err != nil {
		respondChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messagesInfo": infos})
}

// ToggleLike flips the caller's like on a message.
func (h *MessageHandler) ToggleLike(c *gin.Context) {
	convID, ok := parseIDParam(c, "conversation_id")
	if !ok {
		return
	}
	messageID, ok := parseIDParam(c, "message_id")
	if !ok {
		return
	}

	userID := middleware.UserID(c)
	msg, err := h.chat.ToggleLike(c.Request.Context(), convID, messageID, userID)
	if err != nil {
		respondChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// Delete removes a message for the caller, or for everyone when the caller
// sent it and asks with ?forEveryone=true.
func (h *MessageHandler) Delete(c *gin.Context) {
	convID, ok := parseIDParam(c, "conversation_id")
	if !ok {
		return
	}
	messageID, ok := parseIDParam(c, "message_id")
	if !ok {
		return
	}

	userID := middleware.UserID(c)
	if err := h.chat.DeleteMessage(c.Request.Context(), convID, messageID, userID, boolQuery(c, "forEveryone")); err != nil {
		respondChatError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Message deleted")
	c.Status(http.StatusNoContent)
}

func (h *MessageHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
