package web

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatline/auth"
	"chatline/domain"
	"chatline/errors"
	"chatline/mocks"
	"chatline/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type webFixture struct {
	handler http.Handler
	chats   *mocks.MockIChatService
	auths   *mocks.MockIAuthService
	gate    *auth.Gate
}

func newWebFixture(t *testing.T) webFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	chats := mocks.NewMockIChatService(ctrl)
	auths := mocks.NewMockIAuthService(ctrl)
	gate := auth.NewGate("test-secret", time.Hour)
	server := NewServer(slog.Default(), chats, auths, gate, nil, 16, []string{"*"})
	return webFixture{handler: server.Routes(), chats: chats, auths: auths, gate: gate}
}

func (fx webFixture) do(t *testing.T, method, path, userID string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	request := httptest.NewRequest(method, path, body)
	if userID != "" {
		token, err := fx.gate.GenerateToken(userID)
		require.NoError(t, err)
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	fx.handler.ServeHTTP(recorder, request)
	return recorder
}

func TestHandleRegister(t *testing.T) {
	req := require.New(t)
	fx := newWebFixture(t)

	fx.auths.EXPECT().
		Register("Alice", "alice@example.com", "Chatline#2024").
		Return(services.Token("signed-token"), nil)

	recorder := fx.do(t, http.MethodPost, "/register", "", map[string]string{
		"name":     "Alice",
		"email":    "alice@example.com",
		"password": "Chatline#2024",
	})

	req.Equal(http.StatusCreated, recorder.Code)
	var resp map[string]string
	req.NoError(json.Unmarshal(recorder.Body.Bytes(), &resp))
	req.Equal("signed-token", resp["access_token"])
	req.Equal("bearer", resp["token_type"])
}

func TestHandleRegister_DuplicateEmail(t *testing.T) {
	req := require.New(t)
	fx := newWebFixture(t)

	fx.auths.EXPECT().
		Register(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(services.Token(""), errors.ErrUserAlreadyExists)

	recorder := fx.do(t, http.MethodPost, "/register", "", map[string]string{
		"name":     "Alice",
		"email":    "alice@example.com",
		"password": "Chatline#2024",
	})
	req.Equal(http.StatusConflict, recorder.Code)
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	req := require.New(t)
	fx := newWebFixture(t)

	fx.auths.EXPECT().
		Login("alice@example.com", "wrong").
		Return(services.Token(""), errors.ErrInvalidCredentials)

	recorder := fx.do(t, http.MethodPost, "/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	req.Equal(http.StatusUnauthorized, recorder.Code)
}

func TestHandleCreatePersonalChat_UsesCallerIdentity(t *testing.T) {
	req := require.New(t)
	fx := newWebFixture(t)

	chat := domain.Chat{
		ID:      uuid.New(),
		Kind:    domain.ChatPersonal,
		Members: []string{"alice", "bob"},
	}
	// The caller comes from the token, never from the request body.
	fx.chats.EXPECT().
		CreatePersonalChat("alice", "bob").
		Return(chat, nil)

	recorder := fx.do(t, http.MethodPost, "/chats", "alice", map[string]string{"peer_id": "bob"})
	req.Equal(http.StatusCreated, recorder.Code)

	var resp map[string]any
	req.NoError(json.Unmarshal(recorder.Body.Bytes(), &resp))
	req.Equal(chat.ID.String(), resp["id"])
	req.Equal("personal", resp["kind"])
}

func TestHandleCreatePersonalChat_Duplicate(t *testing.T) {
	req := require.New(t)
	fx := newWebFixture(t)

	fx.chats.EXPECT().
		CreatePersonalChat("alice", "bob").
		Return(domain.Chat{}, errors.ErrChatAlreadyExists)

	recorder := fx.do(t, http.MethodPost, "/chats", "alice", map[string]string{"peer_id": "bob"})
	req.Equal(http.StatusConflict, recorder.Code)
}

func TestHandleSendMessage(t *testing.T) {
	req := require.New(t)
	fx := newWebFixture(t)

	chatID := uuid.New()
	stored := domain.Message{
		ID:        uuid.New(),
		ChatID:    chatID,
		SenderID:  "alice",
		Body:      "hello",
		Seq:       7,
		CreatedAt: time.Now().UTC(),
	}
	fx.chats.EXPECT().
		SendMessage(gomock.Any(), chatID, "alice", "hello").
		Return(stored, nil)

	recorder := fx.do(t, http.MethodPost, "/chats/"+chatID.String()+"/messages", "alice",
		map[string]string{"body": "hello"})
	req.Equal(http.StatusCreated, recorder.Code)

	var resp map[string]any
	req.NoError(json.Unmarshal(recorder.Body.Bytes(), &resp))
	req.Equal(float64(7), resp["seq"])
}

func TestHandleSendMessage_NotAMember(t *testing.T) {
	req := require.New(t)
	fx := newWebFixture(t)

	chatID := uuid.New()
	fx.chats.EXPECT().
		SendMessage(gomock.Any(), chatID, "mallory", "hello").
		Return(domain.Message{}, errors.ErrNotAMember)

	recorder := fx.do(t, http.MethodPost, "/chats/"+chatID.String()+"/messages", "mallory",
		map[string]string{"body": "hello"})
	req.Equal(http.StatusForbidden, recorder.Code)
}

func TestHandleHistory_CursorAndLimit(t *testing.T) {
	req := require.New(t)
	fx := newWebFixture(t)

	chatID := uuid.New()
	fx.chats.EXPECT().
		GetHistory(chatID, gomock.Cond(func(beforeSeq *uint64) bool {
			return beforeSeq != nil && *beforeSeq == 42
		}), 10).
		Return([]domain.Message{{ID: uuid.New(), ChatID: chatID, Seq: 41}}, nil)

	recorder := fx.do(t, http.MethodGet, "/history/"+chatID.String()+"?before=42&limit=10", "alice", nil)
	req.Equal(http.StatusOK, recorder.Code)

	var resp []map[string]any
	req.NoError(json.Unmarshal(recorder.Body.Bytes(), &resp))
	req.Len(resp, 1)
	req.Equal(float64(41), resp[0]["seq"])
}

func TestHandleHistory_UnknownChat(t *testing.T) {
	req := require.New(t)
	fx := newWebFixture(t)

	chatID := uuid.New()
	fx.chats.EXPECT().
		GetHistory(chatID, nil, 0).
		Return(nil, errors.ErrChatNotFound)

	recorder := fx.do(t, http.MethodGet, "/history/"+chatID.String(), "alice", nil)
	req.Equal(http.StatusNotFound, recorder.Code)
}

func TestAuthedRoutes_RejectMissingToken(t *testing.T) {
	req := require.New(t)
	fx := newWebFixture(t)

	// No service expectations: the middleware must stop the request.
	for _, route := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/chats"},
		{http.MethodPost, "/groups"},
		{http.MethodGet, "/history/" + uuid.NewString()},
	} {
		recorder := fx.do(t, route.method, route.path, "", nil)
		req.Equal(http.StatusUnauthorized, recorder.Code, route.path)
	}
}

func TestHandleAddMember(t *testing.T) {
	req := require.New(t)
	fx := newWebFixture(t)

	chatID := uuid.New()
	fx.chats.EXPECT().AddMember(chatID, "carol").Return(nil)

	recorder := fx.do(t, http.MethodPost, "/groups/"+chatID.String()+"/members", "alice",
		map[string]string{"user_id": "carol"})
	req.Equal(http.StatusNoContent, recorder.Code)
}

func TestHandleRemoveMember_NotFound(t *testing.T) {
	req := require.New(t)
	fx := newWebFixture(t)

	chatID := uuid.New()
	fx.chats.EXPECT().RemoveMember(chatID, "carol").Return(errors.ErrChatNotFound)

	recorder := fx.do(t, http.MethodDelete, "/groups/"+chatID.String()+"/members/carol", "alice", nil)
	req.Equal(http.StatusNotFound, recorder.Code)
}
