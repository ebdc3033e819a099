package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"realtime-service/internal/middleware"
	"realtime-service/internal/notify"
)

// NotificationHandler manages the notification inbox endpoints.
type NotificationHandler struct {
	notify notify.API
}

// NewNotificationHandler builds a NotificationHandler.
func NewNotificationHandler(notifyAPI notify.API) *NotificationHandler {
	return &NotificationHandler{notify: notifyAPI}
}

// List returns one page of the caller's notifications, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	userID := middleware.UserID(c)

	items, err := h.notify.List(c.Request.Context(), userID, pageQuery(c))
	if err != nil {
		respondNotifyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

// MarkRead marks one notification read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := parseIDParam(c, "notification_id")
	if !ok {
		return
	}

	userID := middleware.UserID(c)
	if err := h.notify.SetRead(c.Request.Context(), id, userID); err != nil {
		respondNotifyError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllRead marks the caller's whole backlog read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID := middleware.UserID(c)
	if err := h.notify.SetAllRead(c.Request.Context(), userID); err != nil {
		respondNotifyError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete removes one notification.
func (h *NotificationHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "notification_id")
	if !ok {
		return
	}

	userID := middleware.UserID(c)
	if err := h.notify.Delete(c.Request.Context(), id, userID); err != nil {
		respondNotifyError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Clear drops every notification the caller has.
func (h *NotificationHandler) Clear(c *gin.Context) {
	userID := middleware.UserID(c)
	if err := h.notify.Clear(c.Request.Context(), userID); err != nil {
		respondNotifyError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
