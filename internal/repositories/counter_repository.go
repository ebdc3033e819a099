package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"realtime-service/internal/models"
)

// CounterRepository owns the denormalized per-user unread totals. Every
// mutation is a commutative delta applied atomically in the store, never a
// read-modify-write round trip.
type CounterRepository interface {
	AddUnreadMessages(ctx context.Context, userID int64, delta int) error
	AddUnreadNotifications(ctx context.Context, userID int64, delta int) error
	Get(ctx context.Context, userID int64) (models.UserCounters, error)
}

// CounterRepo is the sqlx implementation of CounterRepository.
type CounterRepo struct {
	db *sqlx.DB
}

// NewCounterRepo constructs a CounterRepo.
func NewCounterRepo(db *sqlx.DB) *CounterRepo {
	return &CounterRepo{db: db}
}

// AddUnreadMessages applies a floor-at-zero delta to the message counter.
func (r *CounterRepo) AddUnreadMessages(ctx context.Context, userID int64, delta int) error {
	if delta == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO user_counters (user_id, unread_messages) VALUES ($1, GREATEST($2, 0))
        ON CONFLICT (user_id) DO UPDATE
        SET unread_messages = GREATEST(user_counters.unread_messages + $2, 0)`, userID, delta)
	return err
}

// AddUnreadNotifications applies a floor-at-zero delta to the notification
// counter.
func (r *CounterRepo) AddUnreadNotifications(ctx context.Context, userID int64, delta int) error {
	if delta == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO user_counters (user_id, unread_notifications) VALUES ($1, GREATEST($2, 0))
        ON CONFLICT (user_id) DO UPDATE
        SET unread_notifications = GREATEST(user_counters.unread_notifications + $2, 0)`, userID, delta)
	return err
}

// Get returns the user's totals; a user without a row has zero counters.
func (r *CounterRepo) Get(ctx context.Context, userID int64) (models.UserCounters, error) {
	var counters models.UserCounters
	err := r.db.GetContext(ctx, &counters, `
        SELECT user_id, unread_messages, unread_notifications
        FROM user_counters WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserCounters{UserID: userID}, nil
	}
	return counters, err
}
