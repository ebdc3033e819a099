package models

import "time"

// NotificationType enumerates the engagement kinds that can notify a user.
type NotificationType string

const (
	NotificationComment     NotificationType = "comment"
	NotificationReply       NotificationType = "reply"
	NotificationPostLike    NotificationType = "postLike"
	NotificationCommentLike NotificationType = "commentLike"
	NotificationReplyLike   NotificationType = "replyLike"
	NotificationFollow      NotificationType = "follow"
	NotificationShare       NotificationType = "share"
)

// Notification is a durable, dismissible record of an engagement event. It
// is paired 1:1 with the engagement row that caused it so reversing the
// engagement tears the notification down symmetrically.
type Notification struct {
	ID           int64            `db:"id" json:"id"`
	UserID       int64            `db:"user_id" json:"userId"`
	ActingUserID int64            `db:"acting_user_id" json:"actingUserId"`
	Type         NotificationType `db:"type" json:"type"`
	Path         string           `db:"path" json:"path"`
	IsRead       bool             `db:"is_read" json:"isRead"`
	CreatedAt    time.Time        `db:"created_at" json:"createdAt"`

	// ActingProfile is joined in for rendering; never persisted here.
	ActingProfile *Profile `json:"actingProfile,omitempty"`
}
