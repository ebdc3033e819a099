package chat

import "errors"

var (
	// ErrNotFound covers conversations and messages that do not exist or
	// are not visible to the acting user.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when the actor is not allowed to perform
	// the operation on the target.
	ErrUnauthorized = errors.New("not allowed")
	// ErrEmptyMessage rejects a message with no text and no files.
	ErrEmptyMessage = errors.New("message must contain text or files")
	// ErrTooLong rejects a message whose text exceeds the ceiling.
	ErrTooLong = errors.New("message text is too long")
	// ErrConversationExists is returned when the pair already shares a
	// conversation.
	ErrConversationExists = errors.New("conversation already exists")
	// ErrSelfConversation rejects a conversation where both sides are the
	// same user.
	ErrSelfConversation = errors.New("cannot start a conversation with yourself")
)
