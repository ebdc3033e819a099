package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"realtime-service/internal/chat"
	"realtime-service/internal/mocks"
	"realtime-service/internal/models"
)

func setupConversationRouter(handler *ConversationHandler, msgHandler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", int64(1))
		c.Next()
	})
	r.GET("/conversations", handler.List)
	r.POST("/conversations", handler.Create)
	r.GET("/conversations/:conversation_id", handler.Get)
	r.POST("/conversations/:conversation_id/clear", handler.Clear)
	r.DELETE("/conversations/:conversation_id", handler.Delete)
	if msgHandler != nil {
		r.POST("/conversations/:conversation_id/messages", msgHandler.Send)
		r.POST("/conversations/:conversation_id/read", msgHandler.MarkRead)
		r.DELETE("/conversations/:conversation_id/messages/:message_id", msgHandler.Delete)
	}
	return r
}

func TestListConversationsSuccess(t *testing.T) {
	api := new(mocks.ChatAPIMock)
	router := setupConversationRouter(NewConversationHandler(api, nil), nil)

	api.On("ListConversations", mock.Anything, int64(1), 1).
		Return([]models.ConversationSummary{{ID: 3, UnreadCount: 2}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp, "conversations")
	api.AssertExpectations(t)
}

func TestListConversationsPageQuery(t *testing.T) {
	api := new(mocks.ChatAPIMock)
	router := setupConversationRouter(NewConversationHandler(api, nil), nil)

	api.On("ListConversations", mock.Anything, int64(1), 4).
		Return([]models.ConversationSummary{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations?page=4", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	api.AssertExpectations(t)
}

func TestCreateConversationConflict(t *testing.T) {
	api := new(mocks.ChatAPIMock)
	router := setupConversationRouter(NewConversationHandler(api, nil), nil)

	api.On("CreateConversation", mock.Anything, int64(1), int64(2)).
		Return(models.AddNewConversationEvent{}, chat.ErrConversationExists).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations", bytes.NewBufferString(`{"contactId":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	api.AssertExpectations(t)
}

func TestCreateConversationBadPayload(t *testing.T) {
	api := new(mocks.ChatAPIMock)
	router := setupConversationRouter(NewConversationHandler(api, nil), nil)

	req := httptest.NewRequest(http.MethodPost, "/conversations", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetConversationNotFound(t *testing.T) {
	api := new(mocks.ChatAPIMock)
	router := setupConversationRouter(NewConversationHandler(api, nil), nil)

	api.On("GetConversation", mock.Anything, int64(9), int64(1), 1).
		Return(models.ConversationPage{}, chat.ErrNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	api.AssertExpectations(t)
}

func TestGetConversationInvalidID(t *testing.T) {
	api := new(mocks.ChatAPIMock)
	router := setupConversationRouter(NewConversationHandler(api, nil), nil)

	req := httptest.NewRequest(http.MethodGet, "/conversations/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearConversationForEveryone(t *testing.T) {
	api := new(mocks.ChatAPIMock)
	router := setupConversationRouter(NewConversationHandler(api, nil), nil)

	api.On("Clear", mock.Anything, int64(3), int64(1), true).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/3/clear?forEveryone=true", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	api.AssertExpectations(t)
}

func TestDeleteConversationSuccess(t *testing.T) {
	api := new(mocks.ChatAPIMock)
	router := setupConversationRouter(NewConversationHandler(api, nil), nil)

	api.On("DeleteConversation", mock.Anything, int64(3), int64(1)).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/conversations/3", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	api.AssertExpectations(t)
}

func TestSendMessageCreated(t *testing.T) {
	api := new(mocks.ChatAPIMock)
	router := setupConversationRouter(NewConversationHandler(api, nil), NewMessageHandler(api, nil))

	api.On("SendMessage", mock.Anything, chat.SendParams{ConversationID: 3, SenderID: 1, Text: "hi"}).
		Return(models.Message{ID: 5, Text: "hi"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/3/messages", bytes.NewBufferString(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var msg models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	assert.Equal(t, int64(5), msg.ID)
	api.AssertExpectations(t)
}

func TestSendMessageEmpty(t *testing.T) {
	api := new(mocks.ChatAPIMock)
	router := setupConversationRouter(NewConversationHandler(api, nil), NewMessageHandler(api, nil))

	api.On("SendMessage", mock.Anything, mock.Anything).
		Return(models.Message{}, chat.ErrEmptyMessage).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/3/messages", bytes.NewBufferString(`{"text":""}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	api.AssertExpectations(t)
}

func TestMarkReadReturnsInfos(t *testing.T) {
	api := new(mocks.ChatAPIMock)
	router := setupConversationRouter(NewConversationHandler(api, nil), NewMessageHandler(api, nil))

	api.On("MarkRead", mock.Anything, int64(3), int64(1)).
		Return([]models.MessageInfo{{ID: 5}}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/3/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	api.AssertExpectations(t)
}

func TestDeleteMessageForbidden(t *testing.T) {
	api := new(mocks.ChatAPIMock)
	router := setupConversationRouter(NewConversationHandler(api, nil), NewMessageHandler(api, nil))

	api.On("DeleteMessage", mock.Anything, int64(3), int64(5), int64(1), true).
		Return(chat.ErrUnauthorized).Once()

	req := httptest.NewRequest(http.MethodDelete, "/conversations/3/messages/5?forEveryone=true", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	api.AssertExpectations(t)
}
