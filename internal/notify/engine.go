package notify

import (
	"context"
	"errors"

	"realtime-service/internal/delivery"
	"realtime-service/internal/models"
	"realtime-service/internal/repositories"
)

const pageSize = 10

var (
	// ErrNotFound is returned for notifications that do not exist or belong
	// to someone else.
	ErrNotFound = errors.New("notification not found")
	// ErrSelfAction rejects engagements a user cannot direct at themselves.
	ErrSelfAction = errors.New("cannot perform this action on yourself")
)

// API is the notification and engagement surface consumed by HTTP handlers.
type API interface {
	List(ctx context.Context, userID int64, page int) ([]models.Notification, error)
	SetRead(ctx context.Context, id, userID int64) error
	SetAllRead(ctx context.Context, userID int64) error
	Delete(ctx context.Context, id, userID int64) error
	Clear(ctx context.Context, userID int64) error

	TogglePostLike(ctx context.Context, p EngagementParams) (bool, error)
	ToggleCommentLike(ctx context.Context, p EngagementParams) (bool, error)
	ToggleReplyLike(ctx context.Context, p EngagementParams) (bool, error)
	ToggleFollow(ctx context.Context, actorID, targetUserID int64) (bool, error)
	RecordComment(ctx context.Context, p EngagementParams) error
	RemoveComment(ctx context.Context, p EngagementParams) error
	RecordReply(ctx context.Context, p EngagementParams) error
	RemoveReply(ctx context.Context, p EngagementParams) error
	RecordShare(ctx context.Context, p EngagementParams) error
	RemoveShare(ctx context.Context, p EngagementParams) error
}

// Engine pairs engagement records with their notifications so every recorded
// engagement can be reversed without leaving a stale notification behind.
type Engine struct {
	notifications repositories.NotificationRepository
	engagements   repositories.EngagementRepository
	counters      repositories.CounterRepository
	profiles      repositories.ProfileRepository
	delivery      *delivery.Engine
}

// NewEngine wires the notification engine.
func NewEngine(
	notifications repositories.NotificationRepository,
	engagements repositories.EngagementRepository,
	counters repositories.CounterRepository,
	profiles repositories.ProfileRepository,
	deliveryEngine *delivery.Engine,
) *Engine {
	return &Engine{
		notifications: notifications,
		engagements:   engagements,
		counters:      counters,
		profiles:      profiles,
		delivery:      deliveryEngine,
	}
}

var _ API = (*Engine)(nil)

// List returns one page of the user's notifications, newest first, with the
// acting user's profile snapshot attached where it still exists.
func (e *Engine) List(ctx context.Context, userID int64, page int) ([]models.Notification, error) {
	items, err := e.notifications.List(ctx, userID, page, pageSize)
	if err != nil {
		return nil, err
	}

	actorIDs := make([]int64, 0, len(items))
	for _, n := range items {
		actorIDs = append(actorIDs, n.ActingUserID)
	}
	profiles, err := e.profiles.GetMany(ctx, actorIDs)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if p, ok := profiles[items[i].ActingUserID]; ok {
			profile := p
			items[i].ActingProfile = &profile
		}
	}
	return items, nil
}

// SetRead marks one notification read. Marking an already-read notification
// again changes nothing.
func (e *Engine) SetRead(ctx context.Context, id, userID int64) error {
	changed, err := e.notifications.SetRead(ctx, id, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			return ErrNotFound
		}
		return err
	}
	if changed {
		return e.counters.AddUnreadNotifications(ctx, userID, -1)
	}
	return nil
}

// SetAllRead marks the user's whole backlog read.
func (e *Engine) SetAllRead(ctx context.Context, userID int64) error {
	count, err := e.notifications.SetAllRead(ctx, userID)
	if err != nil {
		return err
	}
	if count > 0 {
		return e.counters.AddUnreadNotifications(ctx, userID, -count)
	}
	return nil
}

// Delete removes one notification for its owner.
func (e *Engine) Delete(ctx context.Context, id, userID int64) error {
	wasUnread, err := e.notifications.Delete(ctx, id, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			return ErrNotFound
		}
		return err
	}
	if wasUnread {
		return e.counters.AddUnreadNotifications(ctx, userID, -1)
	}
	return nil
}

// Clear drops every notification the user has.
func (e *Engine) Clear(ctx context.Context, userID int64) error {
	unread, err := e.notifications.DeleteAll(ctx, userID)
	if err != nil {
		return err
	}
	if unread > 0 {
		return e.counters.AddUnreadNotifications(ctx, userID, -unread)
	}
	return nil
}

// push creates the notification for an engagement, bumps the target's unread
// counter and pushes it to their open connections. Self-engagements produce
// no notification.
func (e *Engine) push(ctx context.Context, engagementID int64, p EngagementParams, typ models.NotificationType, path string) error {
	if p.ActorID == p.TargetUserID {
		return nil
	}
	n, err := e.notifications.Create(ctx, models.Notification{
		UserID:       p.TargetUserID,
		ActingUserID: p.ActorID,
		Type:         typ,
		Path:         path,
	})
	if err != nil {
		return err
	}
	if err := e.engagements.LinkNotification(ctx, engagementID, n.ID); err != nil {
		return err
	}
	if err := e.counters.AddUnreadNotifications(ctx, p.TargetUserID, 1); err != nil {
		return err
	}
	if profile, err := e.profiles.Get(ctx, p.ActorID); err == nil {
		n.ActingProfile = &profile
	}
	e.delivery.Fanout(p.TargetUserID, models.EventPushNotification, n)
	return nil
}

// retract removes the notification linked to a reversed engagement, if any,
// settling the counter and telling the target to drop it.
func (e *Engine) retract(ctx context.Context, targetUserID int64, notificationID *int64) error {
	if notificationID == nil {
		return nil
	}
	wasUnread, err := e.notifications.Delete(ctx, *notificationID, targetUserID)
	if err != nil {
		// Already dismissed by the target; nothing left to retract.
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			return nil
		}
		return err
	}
	if wasUnread {
		if err := e.counters.AddUnreadNotifications(ctx, targetUserID, -1); err != nil {
			return err
		}
	}
	e.delivery.Fanout(targetUserID, models.EventRemoveNotification, map[string]int64{"id": *notificationID})
	return nil
}
