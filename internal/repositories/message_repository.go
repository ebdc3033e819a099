package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"realtime-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// CreateMessageParams carries everything needed to persist a message with
// its recipient rows in one transaction.
type CreateMessageParams struct {
	ConversationID int64
	SenderID       int64
	Text           string
	Files          []models.FileRef
	ReplyTo        *int64
	Recipients     []int64
	DeliveredTo    []int64
}

// MessageRepository defines interactions for conversation messages.
type MessageRepository interface {
	Create(ctx context.Context, p CreateMessageParams) (models.Message, error)
	Get(ctx context.Context, messageID int64) (models.Message, error)
	ListPageForUser(ctx context.Context, convID, userID int64, page, pageSize int) ([]models.Message, error)
	LastForUser(ctx context.Context, convID, userID int64) (*models.Message, error)
	UnreadAfter(ctx context.Context, convID, userID, afterID int64) ([]models.Message, error)
	MarkRead(ctx context.Context, messageIDs []int64, userID int64) error
	MarkDelivered(ctx context.Context, messageIDs []int64, userID int64) error
	ToggleLike(ctx context.Context, messageID, userID int64) (bool, error)
	RemoveRecipient(ctx context.Context, messageID, userID int64) error
	Delete(ctx context.Context, messageID int64) error
	DeleteAll(ctx context.Context, convID int64) error
	DeleteWhereSoleRecipient(ctx context.Context, convID, userID int64) error
	StripRecipient(ctx context.Context, convID, userID int64) error
	Newest(ctx context.Context, convID int64) (*models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create stores the message, its file references and one recipient row per
// participant. The sender's row starts delivered and read; other recipients
// start delivered when their connection was reachable at send time.
func (r *MessageRepo) Create(ctx context.Context, p CreateMessageParams) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	var msg models.Message
	if err := tx.QueryRowxContext(ctx, `
        INSERT INTO messages (conversation_id, sender_id, text, reply_to)
        VALUES ($1, $2, $3, $4)
        RETURNING id, conversation_id, sender_id, text, reply_to, created_at`,
		p.ConversationID, p.SenderID, p.Text, p.ReplyTo).
		Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Text, &msg.ReplyTo, &msg.CreatedAt); err != nil {
		return models.Message{}, err
	}

	for _, f := range p.Files {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO message_files (message_id, path, file_type) VALUES ($1, $2, $3)`,
			msg.ID, f.Path, f.FileType); err != nil {
			return models.Message{}, err
		}
	}

	delivered := make(map[int64]bool, len(p.DeliveredTo))
	for _, id := range p.DeliveredTo {
		delivered[id] = true
	}

	for _, id := range p.Recipients {
		isSender := id == p.SenderID
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO message_recipients (message_id, user_id, delivered, read)
            VALUES ($1, $2, $3, $4)`,
			msg.ID, id, delivered[id] || isSender, isSender); err != nil {
			return models.Message{}, err
		}
		msg.To = append(msg.To, id)
		if delivered[id] || isSender {
			msg.Info.DeliveredTo = append(msg.Info.DeliveredTo, id)
		}
		if isSender {
			msg.Info.ReadBy = append(msg.Info.ReadBy, id)
		}
	}
	msg.Files = p.Files

	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// Get retrieves a single message with its delivery info.
func (r *MessageRepo) Get(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `
        SELECT id, conversation_id, sender_id, text, reply_to, created_at
        FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	msgs := []models.Message{msg}
	if err := r.attachInfo(ctx, msgs); err != nil {
		return models.Message{}, err
	}
	return msgs[0], nil
}

// ListPageForUser returns one page of messages still addressed to the user,
// newest first.
func (r *MessageRepo) ListPageForUser(ctx context.Context, convID, userID int64, page, pageSize int) ([]models.Message, error) {
	if page < 1 {
		page = 1
	}
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `
        SELECT m.id, m.conversation_id, m.sender_id, m.text, m.reply_to, m.created_at
        FROM messages m
        JOIN message_recipients mr ON mr.message_id = m.id AND mr.user_id = $2
        WHERE m.conversation_id=$1
        ORDER BY m.id DESC
        LIMIT $3 OFFSET $4`, convID, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	if err := r.attachInfo(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// LastForUser returns the newest message addressed to the user, or nil.
func (r *MessageRepo) LastForUser(ctx context.Context, convID, userID int64) (*models.Message, error) {
	msgs, err := r.ListPageForUser(ctx, convID, userID, 1, 1)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return &msgs[0], nil
}

// UnreadAfter returns, in id order, the messages addressed to the user with
// an id greater than the read cursor.
func (r *MessageRepo) UnreadAfter(ctx context.Context, convID, userID, afterID int64) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `
        SELECT m.id, m.conversation_id, m.sender_id, m.text, m.reply_to, m.created_at
        FROM messages m
        JOIN message_recipients mr ON mr.message_id = m.id AND mr.user_id = $2
        WHERE m.conversation_id=$1 AND m.id > $3
        ORDER BY m.id ASC`, convID, userID, afterID)
	if err != nil {
		return nil, err
	}
	if err := r.attachInfo(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkRead records the read transition; read implies delivered.
func (r *MessageRepo) MarkRead(ctx context.Context, messageIDs []int64, userID int64) error {
	if len(messageIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
        UPDATE message_recipients SET read = TRUE, delivered = TRUE
        WHERE message_id = ANY($1) AND user_id=$2`, pq.Array(messageIDs), userID)
	return err
}

// MarkDelivered records the delivery transition.
func (r *MessageRepo) MarkDelivered(ctx context.Context, messageIDs []int64, userID int64) error {
	if len(messageIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
        UPDATE message_recipients SET delivered = TRUE
        WHERE message_id = ANY($1) AND user_id=$2`, pq.Array(messageIDs), userID)
	return err
}

// ToggleLike flips the user's like on a message they can still see and
// returns the new state. ErrMessageNotFound covers both a vanished message
// and one deleted for this user.
func (r *MessageRepo) ToggleLike(ctx context.Context, messageID, userID int64) (bool, error) {
	var liked bool
	err := r.db.QueryRowxContext(ctx, `
        UPDATE message_recipients SET liked = NOT liked
        WHERE message_id=$1 AND user_id=$2
        RETURNING liked`, messageID, userID).Scan(&liked)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrMessageNotFound
	}
	return liked, err
}

// RemoveRecipient deletes the user from the message's recipient set.
func (r *MessageRepo) RemoveRecipient(ctx context.Context, messageID, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM message_recipients WHERE message_id=$1 AND user_id=$2`, messageID, userID)
	return err
}

// Delete destroys a message entirely; recipient and file rows cascade.
func (r *MessageRepo) Delete(ctx context.Context, messageID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// DeleteAll destroys every message in the conversation.
func (r *MessageRepo) DeleteAll(ctx context.Context, convID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id=$1`, convID)
	return err
}

// DeleteWhereSoleRecipient destroys the conversation's messages addressed
// only to the given user (per-self clear of their exclusive messages).
func (r *MessageRepo) DeleteWhereSoleRecipient(ctx context.Context, convID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
        DELETE FROM messages m
        WHERE m.conversation_id=$1
        AND NOT EXISTS (
            SELECT 1 FROM message_recipients mr
            WHERE mr.message_id = m.id AND mr.user_id <> $2
        )
        AND EXISTS (
            SELECT 1 FROM message_recipients mr
            WHERE mr.message_id = m.id AND mr.user_id = $2
        )`, convID, userID)
	return err
}

// StripRecipient removes the user from every remaining recipient set in the
// conversation.
func (r *MessageRepo) StripRecipient(ctx context.Context, convID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
        DELETE FROM message_recipients mr
        USING messages m
        WHERE mr.message_id = m.id AND m.conversation_id=$1 AND mr.user_id=$2`, convID, userID)
	return err
}

// Newest returns the newest surviving message of the conversation, or nil
// when none remain.
func (r *MessageRepo) Newest(ctx context.Context, convID int64) (*models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `
        SELECT id, conversation_id, sender_id, text, reply_to, created_at
        FROM messages WHERE conversation_id=$1
        ORDER BY id DESC LIMIT 1`, convID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

type recipientRow struct {
	MessageID int64 `db:"message_id"`
	UserID    int64 `db:"user_id"`
	Delivered bool  `db:"delivered"`
	Read      bool  `db:"read"`
	Liked     bool  `db:"liked"`
}

type fileRow struct {
	MessageID int64  `db:"message_id"`
	Path      string `db:"path"`
	FileType  string `db:"file_type"`
}

func (r *MessageRepo) attachInfo(ctx context.Context, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(msgs))
	index := make(map[int64]*models.Message, len(msgs))
	for i := range msgs {
		ids = append(ids, msgs[i].ID)
		index[msgs[i].ID] = &msgs[i]
	}

	var recipients []recipientRow
	if err := r.db.SelectContext(ctx, &recipients, `
        SELECT message_id, user_id, delivered, read, liked
        FROM message_recipients WHERE message_id = ANY($1)
        ORDER BY user_id`, pq.Array(ids)); err != nil {
		return err
	}
	for _, row := range recipients {
		msg := index[row.MessageID]
		msg.To = append(msg.To, row.UserID)
		if row.Delivered {
			msg.Info.DeliveredTo = append(msg.Info.DeliveredTo, row.UserID)
		}
		if row.Read {
			msg.Info.ReadBy = append(msg.Info.ReadBy, row.UserID)
		}
		if row.Liked {
			msg.Info.LikedBy = append(msg.Info.LikedBy, row.UserID)
		}
	}

	var files []fileRow
	if err := r.db.SelectContext(ctx, &files, `
        SELECT message_id, path, file_type
        FROM message_files WHERE message_id = ANY($1)`, pq.Array(ids)); err != nil {
		return err
	}
	for _, row := range files {
		msg := index[row.MessageID]
		msg.Files = append(msg.Files, models.FileRef{Path: row.Path, FileType: row.FileType})
	}
	return nil
}
