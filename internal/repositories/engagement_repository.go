package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"realtime-service/internal/models"
)

var (
	ErrEngagementNotFound = errors.New("engagement not found")
	ErrEngagementExists   = errors.New("engagement already exists")
)

// EngagementRepository owns the cross-reference rows linking likes, follows,
// comments, replies and shares to the notifications they produced.
type EngagementRepository interface {
	Create(ctx context.Context, kind models.EngagementKind, actorID, targetUserID, subjectID int64) (models.Engagement, error)
	Find(ctx context.Context, kind models.EngagementKind, actorID, subjectID int64) (models.Engagement, error)
	Delete(ctx context.Context, id int64) error
	LinkNotification(ctx context.Context, id, notificationID int64) error
}

// EngagementRepo is the sqlx implementation of EngagementRepository.
type EngagementRepo struct {
	db *sqlx.DB
}

// NewEngagementRepo constructs an EngagementRepo.
func NewEngagementRepo(db *sqlx.DB) *EngagementRepo {
	return &EngagementRepo{db: db}
}

// Create inserts the engagement row; ErrEngagementExists on a duplicate
// (kind, actor, subject) triple.
func (r *EngagementRepo) Create(ctx context.Context, kind models.EngagementKind, actorID, targetUserID, subjectID int64) (models.Engagement, error) {
	var e models.Engagement
	err := r.db.QueryRowxContext(ctx, `
        INSERT INTO engagements (kind, actor_id, target_user_id, subject_id)
        VALUES ($1, $2, $3, $4)
        RETURNING id, kind, actor_id, target_user_id, subject_id, notification_id, created_at`,
		kind, actorID, targetUserID, subjectID).
		Scan(&e.ID, &e.Kind, &e.ActorID, &e.TargetUserID, &e.SubjectID, &e.NotificationID, &e.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return models.Engagement{}, ErrEngagementExists
	}
	return e, err
}

// Find looks up the engagement for a (kind, actor, subject) triple.
func (r *EngagementRepo) Find(ctx context.Context, kind models.EngagementKind, actorID, subjectID int64) (models.Engagement, error) {
	var e models.Engagement
	err := r.db.GetContext(ctx, &e, `
        SELECT id, kind, actor_id, target_user_id, subject_id, notification_id, created_at
        FROM engagements WHERE kind=$1 AND actor_id=$2 AND subject_id=$3`,
		kind, actorID, subjectID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Engagement{}, ErrEngagementNotFound
	}
	return e, err
}

// Delete removes the engagement row.
func (r *EngagementRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM engagements WHERE id=$1`, id)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrEngagementNotFound
	}
	return nil
}

// LinkNotification stores the paired notification id on the engagement row.
func (r *EngagementRepo) LinkNotification(ctx context.Context, id, notificationID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE engagements SET notification_id=$2 WHERE id=$1`, id, notificationID)
	return err
}
