package models

import "time"

// EngagementKind enumerates the rows that can carry a notification
// cross-reference.
type EngagementKind string

const (
	EngagementPostLike    EngagementKind = "post_like"
	EngagementCommentLike EngagementKind = "comment_like"
	EngagementReplyLike   EngagementKind = "reply_like"
	EngagementFollow      EngagementKind = "follow"
	EngagementComment     EngagementKind = "comment"
	EngagementReply       EngagementKind = "reply"
	EngagementShare       EngagementKind = "share"
)

// Engagement is the explicit cross-reference between an engagement row (a
// like, follow, comment, reply or share) and the notification it produced.
// SubjectID is the engaged entity (post, comment, reply or followed profile)
// held by reference; the entity itself lives outside this core.
type Engagement struct {
	ID             int64          `db:"id" json:"id"`
	Kind           EngagementKind `db:"kind" json:"kind"`
	ActorID        int64          `db:"actor_id" json:"actorId"`
	TargetUserID   int64          `db:"target_user_id" json:"targetUserId"`
	SubjectID      int64          `db:"subject_id" json:"subjectId"`
	NotificationID *int64         `db:"notification_id" json:"notificationId,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
}
