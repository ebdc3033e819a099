package notify

import (
	"context"
	"errors"
	"fmt"

	"realtime-service/internal/models"
	"realtime-service/internal/repositories"
)

// EngagementParams identifies one engagement: who acted, whose content it
// was, the engaged entity and the post it hangs off. PostID feeds the
// notification path; for a post engagement it equals SubjectID.
type EngagementParams struct {
	ActorID      int64
	TargetUserID int64
	SubjectID    int64
	PostID       int64
}

func postPath(postID int64) string {
	return fmt.Sprintf("/post?_id=%d", postID)
}

func userPath(userID int64) string {
	return fmt.Sprintf("/user?_id=%d", userID)
}

// toggle records the engagement when absent and reverses it when present,
// keeping the paired notification in lockstep. Returns whether the
// engagement exists after the call.
func (e *Engine) toggle(ctx context.Context, kind models.EngagementKind, p EngagementParams, typ models.NotificationType, path string) (bool, error) {
	existing, err := e.engagements.Find(ctx, kind, p.ActorID, p.SubjectID)
	if err == nil {
		if err := e.engagements.Delete(ctx, existing.ID); err != nil {
			return true, err
		}
		return false, e.retract(ctx, existing.TargetUserID, existing.NotificationID)
	}
	if !errors.Is(err, repositories.ErrEngagementNotFound) {
		return false, err
	}

	return true, e.record(ctx, kind, p, typ, path)
}

// record stores the engagement and pushes its notification.
func (e *Engine) record(ctx context.Context, kind models.EngagementKind, p EngagementParams, typ models.NotificationType, path string) error {
	eng, err := e.engagements.Create(ctx, kind, p.ActorID, p.TargetUserID, p.SubjectID)
	if err != nil {
		if errors.Is(err, repositories.ErrEngagementExists) {
			return nil
		}
		return err
	}
	return e.push(ctx, eng.ID, p, typ, path)
}

// remove reverses a recorded engagement. Removing one that was never
// recorded changes nothing.
func (e *Engine) remove(ctx context.Context, kind models.EngagementKind, p EngagementParams) error {
	existing, err := e.engagements.Find(ctx, kind, p.ActorID, p.SubjectID)
	if err != nil {
		if errors.Is(err, repositories.ErrEngagementNotFound) {
			return nil
		}
		return err
	}
	if err := e.engagements.Delete(ctx, existing.ID); err != nil {
		return err
	}
	return e.retract(ctx, existing.TargetUserID, existing.NotificationID)
}

// TogglePostLike flips the actor's like on a post.
func (e *Engine) TogglePostLike(ctx context.Context, p EngagementParams) (bool, error) {
	return e.toggle(ctx, models.EngagementPostLike, p, models.NotificationPostLike, postPath(p.PostID))
}

// ToggleCommentLike flips the actor's like on a comment.
func (e *Engine) ToggleCommentLike(ctx context.Context, p EngagementParams) (bool, error) {
	return e.toggle(ctx, models.EngagementCommentLike, p, models.NotificationCommentLike, postPath(p.PostID))
}

// ToggleReplyLike flips the actor's like on a reply.
func (e *Engine) ToggleReplyLike(ctx context.Context, p EngagementParams) (bool, error) {
	return e.toggle(ctx, models.EngagementReplyLike, p, models.NotificationReplyLike, postPath(p.PostID))
}

// ToggleFollow flips the actor's follow of another user. Following yourself
// is rejected outright.
func (e *Engine) ToggleFollow(ctx context.Context, actorID, targetUserID int64) (bool, error) {
	if actorID == targetUserID {
		return false, ErrSelfAction
	}
	p := EngagementParams{ActorID: actorID, TargetUserID: targetUserID, SubjectID: targetUserID}
	return e.toggle(ctx, models.EngagementFollow, p, models.NotificationFollow, userPath(actorID))
}

// RecordComment notifies the post author about a new comment.
func (e *Engine) RecordComment(ctx context.Context, p EngagementParams) error {
	return e.record(ctx, models.EngagementComment, p, models.NotificationComment, postPath(p.PostID))
}

// RemoveComment retracts a deleted comment's notification.
func (e *Engine) RemoveComment(ctx context.Context, p EngagementParams) error {
	return e.remove(ctx, models.EngagementComment, p)
}

// RecordReply notifies the comment author about a new reply.
func (e *Engine) RecordReply(ctx context.Context, p EngagementParams) error {
	return e.record(ctx, models.EngagementReply, p, models.NotificationReply, postPath(p.PostID))
}

// RemoveReply retracts a deleted reply's notification.
func (e *Engine) RemoveReply(ctx context.Context, p EngagementParams) error {
	return e.remove(ctx, models.EngagementReply, p)
}

// RecordShare notifies the post author about a share.
func (e *Engine) RecordShare(ctx context.Context, p EngagementParams) error {
	return e.record(ctx, models.EngagementShare, p, models.NotificationShare, postPath(p.PostID))
}

// RemoveShare retracts an undone share's notification.
func (e *Engine) RemoveShare(ctx context.Context, p EngagementParams) error {
	return e.remove(ctx, models.EngagementShare, p)
}
