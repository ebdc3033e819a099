package repositories

import (
	"context"
	"sort"

	"github.com/jmoiron/sqlx"

	"realtime-service/internal/models"
)

// QueueRepository is the undelivered-message queue for offline recipients.
// Best-effort only: entries vanish silently when their conversation or
// message does, and the persisted message state stays authoritative.
type QueueRepository interface {
	Enqueue(ctx context.Context, userID, convID, messageID int64) error
	TakeForUser(ctx context.Context, userID int64) ([]models.QueueEntry, error)
	TakeForConversation(ctx context.Context, userID, convID int64) ([]models.QueueEntry, error)
	Remove(ctx context.Context, userID, messageID int64) error
	PurgeConversation(ctx context.Context, convID int64) error
	PurgeConversationForUser(ctx context.Context, convID, userID int64) error
}

// QueueRepo is the sqlx implementation of QueueRepository.
type QueueRepo struct {
	db *sqlx.DB
}

// NewQueueRepo constructs a QueueRepo.
func NewQueueRepo(db *sqlx.DB) *QueueRepo {
	return &QueueRepo{db: db}
}

// Enqueue records an undelivered message for an offline recipient.
// Duplicate sends of the same message are collapsed.
func (r *QueueRepo) Enqueue(ctx context.Context, userID, convID, messageID int64) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO undelivered_queue (user_id, conversation_id, message_id)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id, message_id) DO NOTHING`, userID, convID, messageID)
	return err
}

// TakeForUser atomically removes and returns every queued entry for the
// user, oldest first.
func (r *QueueRepo) TakeForUser(ctx context.Context, userID int64) ([]models.QueueEntry, error) {
	entries := []models.QueueEntry{}
	err := r.db.SelectContext(ctx, &entries, `
        DELETE FROM undelivered_queue WHERE user_id=$1
        RETURNING user_id, conversation_id, message_id, queued_at`, userID)
	if err != nil {
		return nil, err
	}
	sortEntries(entries)
	return entries, nil
}

// TakeForConversation removes and returns the user's queued entries for one
// conversation.
func (r *QueueRepo) TakeForConversation(ctx context.Context, userID, convID int64) ([]models.QueueEntry, error) {
	entries := []models.QueueEntry{}
	err := r.db.SelectContext(ctx, &entries, `
        DELETE FROM undelivered_queue WHERE user_id=$1 AND conversation_id=$2
        RETURNING user_id, conversation_id, message_id, queued_at`, userID, convID)
	if err != nil {
		return nil, err
	}
	sortEntries(entries)
	return entries, nil
}

// Remove drops a single queued entry, used when the underlying message is
// deleted before delivery.
func (r *QueueRepo) Remove(ctx context.Context, userID, messageID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM undelivered_queue WHERE user_id=$1 AND message_id=$2`, userID, messageID)
	return err
}

// PurgeConversation drops every user's entries for a deleted conversation.
func (r *QueueRepo) PurgeConversation(ctx context.Context, convID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM undelivered_queue WHERE conversation_id=$1`, convID)
	return err
}

// PurgeConversationForUser drops one user's entries for a conversation.
func (r *QueueRepo) PurgeConversationForUser(ctx context.Context, convID, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM undelivered_queue WHERE conversation_id=$1 AND user_id=$2`, convID, userID)
	return err
}

func sortEntries(entries []models.QueueEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].MessageID < entries[j].MessageID
	})
}
