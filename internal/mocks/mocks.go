package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"realtime-service/internal/chat"
	"realtime-service/internal/models"
	"realtime-service/internal/notify"
)

type ChatAPIMock struct {
	mock.Mock
}

var _ chat.API = (*ChatAPIMock)(nil)

func (m *ChatAPIMock) CreateConversation(ctx context.Context, actorID, peerID int64) (models.AddNewConversationEvent, error) {
	args := m.Called(ctx, actorID, peerID)
	var created models.AddNewConversationEvent
	if val := args.Get(0); val != nil {
		created = val.(models.AddNewConversationEvent)
	}
	return created, args.Error(1)
}

func (m *ChatAPIMock) ListConversations(ctx context.Context, userID int64, page int) ([]models.ConversationSummary, error) {
	args := m.Called(ctx, userID, page)
	var list []models.ConversationSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ConversationSummary)
	}
	return list, args.Error(1)
}

func (m *ChatAPIMock) GetConversation(ctx context.Context, convID, userID int64, page int) (models.ConversationPage, error) {
	args := m.Called(ctx, convID, userID, page)
	var result models.ConversationPage
	if val := args.Get(0); val != nil {
		result = val.(models.ConversationPage)
	}
	return result, args.Error(1)
}

func (m *ChatAPIMock) SendMessage(ctx context.Context, p chat.SendParams) (models.Message, error) {
	args := m.Called(ctx, p)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *ChatAPIMock) MarkRead(ctx context.Context, convID, userID int64) ([]models.MessageInfo, error) {
	args := m.Called(ctx, convID, userID)
	var infos []models.MessageInfo
	if val := args.Get(0); val != nil {
		infos = val.([]models.MessageInfo)
	}
	return infos, args.Error(1)
}

func (m *ChatAPIMock) ToggleLike(ctx context.Context, convID, messageID, userID int64) (models.Message, error) {
	args := m.Called(ctx, convID, messageID, userID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *ChatAPIMock) DeleteMessage(ctx context.Context, convID, messageID, userID int64, forEveryone bool) error {
	args := m.Called(ctx, convID, messageID, userID, forEveryone)
	return args.Error(0)
}

func (m *ChatAPIMock) Clear(ctx context.Context, convID, userID int64, forEveryone bool) error {
	args := m.Called(ctx, convID, userID, forEveryone)
	return args.Error(0)
}

func (m *ChatAPIMock) DeleteConversation(ctx context.Context, convID, userID int64) error {
	args := m.Called(ctx, convID, userID)
	return args.Error(0)
}

func (m *ChatAPIMock) Typing(ctx context.Context, convID, userID int64, isTyping bool) error {
	args := m.Called(ctx, convID, userID, isTyping)
	return args.Error(0)
}

func (m *ChatAPIMock) FlushQueue(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *ChatAPIMock) ContactIDs(ctx context.Context, userID int64) ([]int64, error) {
	args := m.Called(ctx, userID)
	var ids []int64
	if val := args.Get(0); val != nil {
		ids = val.([]int64)
	}
	return ids, args.Error(1)
}

type NotifyAPIMock struct {
	mock.Mock
}

var _ notify.API = (*NotifyAPIMock)(nil)

func (m *NotifyAPIMock) List(ctx context.Context, userID int64, page int) ([]models.Notification, error) {
	args := m.Called(ctx, userID, page)
	var list []models.Notification
	if val := args.Get(0); val != nil {
		list = val.([]models.Notification)
	}
	return list, args.Error(1)
}

func (m *NotifyAPIMock) SetRead(ctx context.Context, id, userID int64) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *NotifyAPIMock) SetAllRead(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *NotifyAPIMock) Delete(ctx context.Context, id, userID int64) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *NotifyAPIMock) Clear(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *NotifyAPIMock) TogglePostLike(ctx context.Context, p notify.EngagementParams) (bool, error) {
	args := m.Called(ctx, p)
	return args.Bool(0), args.Error(1)
}

func (m *NotifyAPIMock) ToggleCommentLike(ctx context.Context, p notify.EngagementParams) (bool, error) {
	args := m.Called(ctx, p)
	return args.Bool(0), args.Error(1)
}

func (m *NotifyAPIMock) ToggleReplyLike(ctx context.Context, p notify.EngagementParams) (bool, error) {
	args := m.Called(ctx, p)
	return args.Bool(0), args.Error(1)
}

func (m *NotifyAPIMock) ToggleFollow(ctx context.Context, actorID, targetUserID int64) (bool, error) {
	args := m.Called(ctx, actorID, targetUserID)
	return args.Bool(0), args.Error(1)
}

func (m *NotifyAPIMock) RecordComment(ctx context.Context, p notify.EngagementParams) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *NotifyAPIMock) RemoveComment(ctx context.Context, p notify.EngagementParams) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *NotifyAPIMock) RecordReply(ctx context.Context, p notify.EngagementParams) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *NotifyAPIMock) RemoveReply(ctx context.Context, p notify.EngagementParams) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *NotifyAPIMock) RecordShare(ctx context.Context, p notify.EngagementParams) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *NotifyAPIMock) RemoveShare(ctx context.Context, p notify.EngagementParams) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}
