package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"realtime-service/internal/middleware"
	"realtime-service/internal/notify"
	"realtime-service/internal/telemetry"
)

// EngagementHandler accepts engagement events from the feed service: likes,
// follows, comments, replies and shares. Each one drives the paired
// notification.
type EngagementHandler struct {
	notify notify.API
	audit  *telemetry.AuditEmitter
}

// NewEngagementHandler builds an EngagementHandler.
func NewEngagementHandler(notifyAPI notify.API, audit *telemetry.AuditEmitter) *EngagementHandler {
	return &EngagementHandler{notify: notifyAPI, audit: audit}
}

type engagementRequest struct {
	TargetUserID int64 `json:"targetUserId" binding:"required"`
	PostID       int64 `json:"postId"`
}

// params builds the engagement identity from the route, body and caller.
// When the body carries no post id the subject itself is the post.
func (h *EngagementHandler) params(c *gin.Context, subjectParam string) (notify.EngagementParams, bool) {
	subjectID, ok := parseIDParam(c, subjectParam)
	if !ok {
		return notify.EngagementParams{}, false
	}

	var req engagementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return notify.EngagementParams{}, false
	}

	postID := req.PostID
	if postID == 0 {
		postID = subjectID
	}
	return notify.EngagementParams{
		ActorID:      middleware.UserID(c),
		TargetUserID: req.TargetUserID,
		SubjectID:    subjectID,
		PostID:       postID,
	}, true
}

func (h *EngagementHandler) respondToggle(c *gin.Context, active bool, err error) {
	if err != nil {
		respondNotifyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": active})
}

// TogglePostLike flips the caller's like on a post.
func (h *EngagementHandler) TogglePostLike(c *gin.Context) {
	p, ok := h.params(c, "post_id")
	if !ok {
		return
	}
	active, err := h.notify.TogglePostLike(c.Request.Context(), p)
	h.respondToggle(c, active, err)
}

// ToggleCommentLike flips the caller's like on a comment.
func (h *EngagementHandler) ToggleCommentLike(c *gin.Context) {
	p, ok := h.params(c, "comment_id")
	if !ok {
		return
	}
	active, err := h.notify.ToggleCommentLike(c.Request.Context(), p)
	h.respondToggle(c, active, err)
}

// ToggleReplyLike flips the caller's like on a reply.
func (h *EngagementHandler) ToggleReplyLike(c *gin.Context) {
	p, ok := h.params(c, "reply_id")
	if !ok {
		return
	}
	active, err := h.notify.ToggleReplyLike(c.Request.Context(), p)
	h.respondToggle(c, active, err)
}

// ToggleFollow flips the caller's follow of another user.
func (h *EngagementHandler) ToggleFollow(c *gin.Context) {
	targetID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}
	active, err := h.notify.ToggleFollow(c.Request.Context(), middleware.UserID(c), targetID)
	h.respondToggle(c, active, err)
}

// RecordComment registers a new comment and notifies the post author.
func (h *EngagementHandler) RecordComment(c *gin.Context) {
	p, ok := h.params(c, "comment_id")
	if !ok {
		return
	}
	if err := h.notify.RecordComment(c.Request.Context(), p); err != nil {
		respondNotifyError(c, err)
		return
	}
	h.emitAudit(c, "INFO", "Comment recorded")
	c.Status(http.StatusNoContent)
}

// removeParams identifies an engagement to reverse: the caller plus the
// subject from the route. Reversal looks the rest up from the stored row.
func (h *EngagementHandler) removeParams(c *gin.Context, subjectParam string) (notify.EngagementParams, bool) {
	subjectID, ok := parseIDParam(c, subjectParam)
	if !ok {
		return notify.EngagementParams{}, false
	}
	return notify.EngagementParams{
		ActorID:   middleware.UserID(c),
		SubjectID: subjectID,
	}, true
}

// RemoveComment retracts a deleted comment's notification.
func (h *EngagementHandler) RemoveComment(c *gin.Context) {
	p, ok := h.removeParams(c, "comment_id")
	if !ok {
		return
	}
	if err := h.notify.RemoveComment(c.Request.Context(), p); err != nil {
		respondNotifyError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RecordReply registers a new reply and notifies the comment author.
func (h *EngagementHandler) RecordReply(c *gin.Context) {
	p, ok := h.params(c, "reply_id")
	if !ok {
		return
	}
	if err := h.notify.RecordReply(c.Request.Context(), p); err != nil {
		respondNotifyError(c, err)
		return
	}
	h.emitAudit(c, "INFO", "Reply recorded")
	c.Status(http.StatusNoContent)
}

// RemoveReply retracts a deleted reply's notification.
func (h *EngagementHandler) RemoveReply(c *gin.Context) {
	p, ok := h.removeParams(c, "reply_id")
	if !ok {
		return
	}
	if err := h.notify.RemoveReply(c.Request.Context(), p); err != nil {
		respondNotifyError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RecordShare registers a share and notifies the post author.
func (h *EngagementHandler) RecordShare(c *gin.Context) {
	p, ok := h.params(c, "post_id")
	if !ok {
		return
	}
	if err := h.notify.RecordShare(c.Request.Context(), p); err != nil {
		respondNotifyError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveShare retracts an undone share's notification.
func (h *EngagementHandler) RemoveShare(c *gin.Context) {
	p, ok := h.removeParams(c, "post_id")
	if !ok {
		return
	}
	if err := h.notify.RemoveShare(c.Request.Context(), p); err != nil {
		respondNotifyError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *EngagementHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
