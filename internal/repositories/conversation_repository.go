package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"realtime-service/internal/models"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationExists   = errors.New("conversation already exists")
)

// ConversationListRow is one raw row of the conversation list before the
// service joins in presence and profile data.
type ConversationListRow struct {
	ID        int64      `db:"id"`
	PeerID    int64      `db:"peer_id"`
	Unread    int        `db:"unread_count"`
	UpdatedAt *time.Time `db:"updated_at"`
}

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	Create(ctx context.Context, userID, peerID int64) (models.Conversation, error)
	Get(ctx context.Context, convID int64) (models.Conversation, error)
	ListForUser(ctx context.Context, userID int64, page, pageSize int) ([]ConversationListRow, error)
	Touch(ctx context.Context, convID int64, at *time.Time) error
	IncrementUnread(ctx context.Context, convID int64, userIDs []int64) error
	DecrementUnread(ctx context.Context, convID, userID int64, delta int) error
	ZeroUnread(ctx context.Context, convID, userID int64) error
	AdvanceCursor(ctx context.Context, convID, userID, lastMessageID int64, readCount int) error
	SetCursor(ctx context.Context, convID, userID, messageID int64) error
	Delete(ctx context.Context, convID int64) error
	ContactIDs(ctx context.Context, userID int64) ([]int64, error)
	RemoveContacts(ctx context.Context, convID int64) error
}

// ConversationRepo is the sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// Create persists a two-party conversation plus the reciprocal contact rows.
// Fails with ErrConversationExists when an active conversation between the
// pair already exists. The contacts primary key is the uniqueness guard, so
// two concurrent creates for the same pair cannot both commit.
func (r *ConversationRepo) Create(ctx context.Context, userID, peerID int64) (models.Conversation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer tx.Rollback()

	var conv models.Conversation
	if err := tx.QueryRowxContext(ctx,
		`INSERT INTO conversations DEFAULT VALUES RETURNING id, updated_at, created_at`).
		Scan(&conv.ID, &conv.UpdatedAt, &conv.CreatedAt); err != nil {
		return models.Conversation{}, err
	}

	for _, id := range []int64{userID, peerID} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2)`,
			conv.ID, id); err != nil {
			return models.Conversation{}, err
		}
		conv.Participants = append(conv.Participants, models.Participant{ConversationID: conv.ID, UserID: id})
	}

	res, err := tx.ExecContext(ctx, `
        INSERT INTO contacts (user_id, contact_id, conversation_id) VALUES ($1, $2, $3), ($2, $1, $3)
        ON CONFLICT (user_id, contact_id) DO NOTHING`,
		userID, peerID, conv.ID)
	if err != nil {
		return models.Conversation{}, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return models.Conversation{}, err
	}
	if inserted != 2 {
		return models.Conversation{}, ErrConversationExists
	}

	if err := tx.Commit(); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// Get fetches a conversation with its participant sub-records.
func (r *ConversationRepo) Get(ctx context.Context, convID int64) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv,
		`SELECT id, updated_at, created_at FROM conversations WHERE id=$1`, convID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	if err != nil {
		return models.Conversation{}, err
	}

	err = r.db.SelectContext(ctx, &conv.Participants, `
        SELECT conversation_id, user_id, unread_count, last_read_message_id
        FROM conversation_participants WHERE conversation_id=$1 ORDER BY user_id`, convID)
	if err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// ListForUser returns one page of the user's conversation list, newest
// activity first. Conversations without messages sort last.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID int64, page, pageSize int) ([]ConversationListRow, error) {
	if page < 1 {
		page = 1
	}
	rows := []ConversationListRow{}
	err := r.db.SelectContext(ctx, &rows, `
        SELECT c.id, peer.user_id AS peer_id, own.unread_count, c.updated_at
        FROM conversations c
        JOIN conversation_participants own ON own.conversation_id = c.id AND own.user_id = $1
        JOIN conversation_participants peer ON peer.conversation_id = c.id AND peer.user_id <> $1
        ORDER BY c.updated_at DESC NULLS LAST, c.id DESC
        LIMIT $2 OFFSET $3`, userID, pageSize, (page-1)*pageSize)
	return rows, err
}

// Touch sets updated_at; nil marks the conversation as having no messages.
func (r *ConversationRepo) Touch(ctx context.Context, convID int64, at *time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversations SET updated_at=$2 WHERE id=$1`, convID, at)
	return err
}

// IncrementUnread applies the atomic +1 for a new message to every listed
// recipient's participant row.
func (r *ConversationRepo) IncrementUnread(ctx context.Context, convID int64, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
        UPDATE conversation_participants SET unread_count = unread_count + 1
        WHERE conversation_id=$1 AND user_id = ANY($2)`, convID, pq.Array(userIDs))
	return err
}

// DecrementUnread applies an atomic, floor-at-zero decrement.
func (r *ConversationRepo) DecrementUnread(ctx context.Context, convID, userID int64, delta int) error {
	if delta <= 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
        UPDATE conversation_participants SET unread_count = GREATEST(unread_count - $3, 0)
        WHERE conversation_id=$1 AND user_id=$2`, convID, userID, delta)
	return err
}

// ZeroUnread resets a participant's counter.
func (r *ConversationRepo) ZeroUnread(ctx context.Context, convID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
        UPDATE conversation_participants SET unread_count = 0
        WHERE conversation_id=$1 AND user_id=$2`, convID, userID)
	return err
}

// AdvanceCursor moves the read cursor forward and subtracts the messages
// read over in the same statement, so a concurrent send cannot interleave a
// lost update between the two.
func (r *ConversationRepo) AdvanceCursor(ctx context.Context, convID, userID, lastMessageID int64, readCount int) error {
	_, err := r.db.ExecContext(ctx, `
        UPDATE conversation_participants
        SET last_read_message_id = GREATEST(COALESCE(last_read_message_id, 0), $3),
            unread_count = GREATEST(unread_count - $4, 0)
        WHERE conversation_id=$1 AND user_id=$2`, convID, userID, lastMessageID, readCount)
	return err
}

// SetCursor moves the cursor without touching the unread counter (sender
// cursor advance on send).
func (r *ConversationRepo) SetCursor(ctx context.Context, convID, userID, messageID int64) error {
	_, err := r.db.ExecContext(ctx, `
        UPDATE conversation_participants
        SET last_read_message_id = GREATEST(COALESCE(last_read_message_id, 0), $3)
        WHERE conversation_id=$1 AND user_id=$2`, convID, userID, messageID)
	return err
}

// Delete destroys the conversation; participants, messages and files cascade.
func (r *ConversationRepo) Delete(ctx context.Context, convID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id=$1`, convID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// ContactIDs lists the user's contacts, one per active conversation.
func (r *ConversationRepo) ContactIDs(ctx context.Context, userID int64) ([]int64, error) {
	ids := []int64{}
	err := r.db.SelectContext(ctx, &ids,
		`SELECT contact_id FROM contacts WHERE user_id=$1`, userID)
	return ids, err
}

// RemoveContacts drops the reciprocal contact rows of a conversation.
func (r *ConversationRepo) RemoveContacts(ctx context.Context, convID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE conversation_id=$1`, convID)
	return err
}
