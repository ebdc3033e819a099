package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"realtime-service/internal/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository abstracts notification persistence.
type NotificationRepository interface {
	Create(ctx context.Context, n models.Notification) (models.Notification, error)
	Get(ctx context.Context, id int64) (models.Notification, error)
	List(ctx context.Context, userID int64, page, pageSize int) ([]models.Notification, error)
	SetRead(ctx context.Context, id, userID int64) (bool, error)
	SetAllRead(ctx context.Context, userID int64) (int, error)
	Delete(ctx context.Context, id, userID int64) (bool, error)
	DeleteAll(ctx context.Context, userID int64) (int, error)
}

// NotificationRepo is the sqlx implementation of NotificationRepository.
type NotificationRepo struct {
	db *sqlx.DB
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// Create persists a notification.
func (r *NotificationRepo) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	err := r.db.QueryRowxContext(ctx, `
        INSERT INTO notifications (user_id, acting_user_id, type, path)
        VALUES ($1, $2, $3, $4)
        RETURNING id, user_id, acting_user_id, type, path, is_read, created_at`,
		n.UserID, n.ActingUserID, n.Type, n.Path).
		Scan(&n.ID, &n.UserID, &n.ActingUserID, &n.Type, &n.Path, &n.IsRead, &n.CreatedAt)
	return n, err
}

// Get fetches one notification by id.
func (r *NotificationRepo) Get(ctx context.Context, id int64) (models.Notification, error) {
	var n models.Notification
	err := r.db.GetContext(ctx, &n, `
        SELECT id, user_id, acting_user_id, type, path, is_read, created_at
        FROM notifications WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Notification{}, ErrNotificationNotFound
	}
	return n, err
}

// List returns one page of the user's notifications, newest first.
func (r *NotificationRepo) List(ctx context.Context, userID int64, page, pageSize int) ([]models.Notification, error) {
	if page < 1 {
		page = 1
	}
	notifications := []models.Notification{}
	err := r.db.SelectContext(ctx, &notifications, `
        SELECT id, user_id, acting_user_id, type, path, is_read, created_at
        FROM notifications WHERE user_id=$1
        ORDER BY created_at DESC, id DESC
        LIMIT $2 OFFSET $3`, userID, pageSize, (page-1)*pageSize)
	return notifications, err
}

// SetRead marks the user's notification read and reports whether the row
// actually transitioned, so repeated calls stay idempotent.
func (r *NotificationRepo) SetRead(ctx context.Context, id, userID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
        UPDATE notifications SET is_read = TRUE
        WHERE id=$1 AND user_id=$2 AND is_read = FALSE`, id, userID)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if count == 0 {
		// Distinguish an already-read row from a missing one.
		var exists bool
		if err := r.db.GetContext(ctx, &exists,
			`SELECT EXISTS(SELECT 1 FROM notifications WHERE id=$1 AND user_id=$2)`, id, userID); err != nil {
			return false, err
		}
		if !exists {
			return false, ErrNotificationNotFound
		}
		return false, nil
	}
	return true, nil
}

// SetAllRead marks everything read and returns how many rows transitioned.
func (r *NotificationRepo) SetAllRead(ctx context.Context, userID int64) (int, error) {
	res, err := r.db.ExecContext(ctx, `
        UPDATE notifications SET is_read = TRUE
        WHERE user_id=$1 AND is_read = FALSE`, userID)
	if err != nil {
		return 0, err
	}
	count, err := res.RowsAffected()
	return int(count), err
}

// Delete removes the user's notification and reports whether it was still
// unread when destroyed.
func (r *NotificationRepo) Delete(ctx context.Context, id, userID int64) (bool, error) {
	var wasUnread bool
	err := r.db.QueryRowxContext(ctx, `
        DELETE FROM notifications WHERE id=$1 AND user_id=$2
        RETURNING NOT is_read`, id, userID).Scan(&wasUnread)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotificationNotFound
	}
	return wasUnread, err
}

// DeleteAll clears the user's notifications and returns how many were unread.
func (r *NotificationRepo) DeleteAll(ctx context.Context, userID int64) (int, error) {
	rows, err := r.db.QueryxContext(ctx, `
        DELETE FROM notifications WHERE user_id=$1
        RETURNING NOT is_read`, userID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	unread := 0
	for rows.Next() {
		var wasUnread bool
		if err := rows.Scan(&wasUnread); err != nil {
			return 0, err
		}
		if wasUnread {
			unread++
		}
	}
	return unread, rows.Err()
}
