package models

import "time"

// Participant is the per-user state embedded in a conversation: the unread
// counter and the monotonic read cursor. A nil LastReadMessageID means the
// user has read nothing, i.e. the cursor sits before all messages.
type Participant struct {
	ConversationID    int64  `db:"conversation_id" json:"-"`
	UserID            int64  `db:"user_id" json:"userId"`
	UnreadCount       int    `db:"unread_count" json:"unreadMessagesCount"`
	LastReadMessageID *int64 `db:"last_read_message_id" json:"lastReadMessageId,omitempty"`
}

// Conversation is the authoritative record of a chat thread. UpdatedAt is
// the conversation-list sort key and is null while the conversation holds no
// messages.
type Conversation struct {
	ID           int64         `db:"id" json:"id"`
	UpdatedAt    *time.Time    `db:"updated_at" json:"updatedAt"`
	CreatedAt    time.Time     `db:"created_at" json:"createdAt"`
	Participants []Participant `json:"participants"`
}

// Participant returns the sub-record for the user, or nil when the user is
// not part of the conversation.
func (c *Conversation) Participant(userID int64) *Participant {
	for i := range c.Participants {
		if c.Participants[i].UserID == userID {
			return &c.Participants[i]
		}
	}
	return nil
}

// ParticipantIDs lists every participant's user id.
func (c *Conversation) ParticipantIDs() []int64 {
	ids := make([]int64, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

// RecipientIDs lists every participant except the sender.
func (c *Conversation) RecipientIDs(senderID int64) []int64 {
	ids := make([]int64, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p.UserID != senderID {
			ids = append(ids, p.UserID)
		}
	}
	return ids
}

// Contact is the live view of a conversation counterpart: the profile
// snapshot plus presence. Online comes from the registry only; LastSeenAt is
// the last-known-offline timestamp kept for display.
type Contact struct {
	Profile
	ConversationID int64      `json:"conversationId"`
	Online         bool       `json:"online"`
	LastSeenAt     *time.Time `json:"lastSeenAt,omitempty"`
}

// ConversationSummary is one row of the conversation list.
type ConversationSummary struct {
	ID          int64      `json:"id"`
	Contact     Contact    `json:"contact"`
	LastMessage *Message   `json:"lastMessage,omitempty"`
	UnreadCount int        `json:"unreadMessagesCount"`
	UpdatedAt   *time.Time `json:"updatedAt"`
}

// ConversationPage is one page of a single conversation's messages as seen
// by one participant.
type ConversationPage struct {
	Conversation Conversation `json:"conversation"`
	Messages     []Message    `json:"messages"`
}

// QueueEntry is one undelivered-queue record: a message a disconnected
// recipient has not observed yet. Best-effort only; the persisted message
// remains the source of truth.
type QueueEntry struct {
	UserID         int64     `db:"user_id" json:"userId"`
	ConversationID int64     `db:"conversation_id" json:"conversationId"`
	MessageID      int64     `db:"message_id" json:"messageId"`
	QueuedAt       time.Time `db:"queued_at" json:"queuedAt"`
}
