package models

import "time"

// Event names pushed over the real-time channel.
const (
	EventSendMessage         = "send-message"
	EventUpdateConversation  = "update-conversation"
	EventMessageLikeToggle   = "message-like-toggle"
	EventDeleteMessage       = "delete-message"
	EventAddNewConversation  = "add-new-conversation"
	EventClearConversation   = "clear-conversation"
	EventDeleteConversation  = "delete-conversation"
	EventPushNotification    = "push-notification"
	EventRemoveNotification  = "remove-notification"
	EventNotifyTyping        = "notify-typing"
	EventContactConnected    = "contact-connected"
	EventContactDisconnected = "contact-disconnected"
)

// Event is the frame written to websocket clients.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type SendMessageEvent struct {
	ConversationID int64      `json:"conversationId"`
	Message        Message    `json:"message"`
	UnreadCount    int        `json:"unreadMessagesCount"`
	UpdatedAt      *time.Time `json:"updatedAt"`
}

type UpdateConversationEvent struct {
	ConversationID int64         `json:"conversationId"`
	MessagesInfo   []MessageInfo `json:"messagesInfo"`
}

type MessageLikeToggleEvent struct {
	ConversationID int64      `json:"conversationId"`
	Message        Message    `json:"message"`
	UpdatedAt      *time.Time `json:"updatedAt"`
}

// DeleteMessageEvent omits UnreadCount for the actor who deleted; everyone
// else receives their refreshed counter.
type DeleteMessageEvent struct {
	ConversationID int64      `json:"conversationId"`
	MessageID      int64      `json:"messageId"`
	UnreadCount    *int       `json:"unreadMessagesCount,omitempty"`
	UpdatedAt      *time.Time `json:"updatedAt"`
}

type AddNewConversationEvent struct {
	Conversation Conversation `json:"conversation"`
	Contact      Contact      `json:"contact"`
}

// ClearConversationEvent carries ContactID only for a per-self clear.
type ClearConversationEvent struct {
	ConversationID int64  `json:"conversationId"`
	ContactID      *int64 `json:"contactId,omitempty"`
}

type DeleteConversationEvent struct {
	ConversationID int64 `json:"conversationId"`
	ContactID      int64 `json:"contactId"`
}

type TypingEvent struct {
	ConversationID int64 `json:"conversationId"`
	UserID         int64 `json:"userId,omitempty"`
	IsTyping       bool  `json:"isTyping"`
}

type PresenceEvent struct {
	ID         int64      `json:"id"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
}
