package models

import "time"

// FileRef points at an already-stored media object. Upload and transcoding
// happen elsewhere; the core only carries the reference.
type FileRef struct {
	Path     string `db:"path" json:"path"`
	FileType string `db:"file_type" json:"fileType"`
}

// DeliveryInfo is the per-message delivery block. ReadBy is always a subset
// of DeliveredTo, which is always a subset of the recipient set.
type DeliveryInfo struct {
	DeliveredTo []int64 `json:"deliveredTo"`
	ReadBy      []int64 `json:"readBy"`
	LikedBy     []int64 `json:"likedBy"`
}

// Message is a chat message inside one conversation. To shrinks as
// individual recipients delete the message for themselves; when it becomes
// empty the message is destroyed.
type Message struct {
	ID             int64     `db:"id" json:"id"`
	ConversationID int64     `db:"conversation_id" json:"conversationId"`
	SenderID       int64     `db:"sender_id" json:"senderId"`
	Text           string    `db:"text" json:"text"`
	ReplyTo        *int64    `db:"reply_to" json:"replyTo,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`

	Files []FileRef    `json:"files,omitempty"`
	To    []int64      `json:"to"`
	Info  DeliveryInfo `json:"info"`
}

// Addressed reports whether the message is still addressed to the user.
func (m Message) Addressed(userID int64) bool {
	return contains(m.To, userID)
}

// IsReadBy reports whether the user has read the message.
func (m Message) IsReadBy(userID int64) bool {
	return contains(m.Info.ReadBy, userID)
}

// IsDeliveredTo reports whether the message reached the user.
func (m Message) IsDeliveredTo(userID int64) bool {
	return contains(m.Info.DeliveredTo, userID)
}

// IsLikedBy reports whether the user has liked the message.
func (m Message) IsLikedBy(userID int64) bool {
	return contains(m.Info.LikedBy, userID)
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// MessageInfo carries a message id plus its delivery block, used by the
// update-conversation event so clients can render read receipts.
type MessageInfo struct {
	ID   int64        `json:"id"`
	Info DeliveryInfo `json:"info"`
}
