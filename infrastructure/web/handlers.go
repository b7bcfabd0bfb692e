package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"chatline/auth"
	"chatline/domain"
	"chatline/errors"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/samber/lo"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type createPersonalChatRequest struct {
	PeerID string `json:"peer_id"`
}

type createGroupRequest struct {
	Name string `json:"name"`
}

type addMemberRequest struct {
	UserID string `json:"user_id"`
}

type sendMessageRequest struct {
	Body string `json:"body"`
}

type chatResponse struct {
	ID        string   `json:"id"`
	Kind      string   `json:"kind"`
	Name      string   `json:"name,omitempty"`
	CreatorID string   `json:"creator_id,omitempty"`
	Members   []string `json:"members"`
	CreatedAt string   `json:"created_at"`
}

type messageResponse struct {
	ID        string `json:"id"`
	ChatID    string `json:"chat_id"`
	SenderID  string `json:"sender_id"`
	Body      string `json:"body"`
	Seq       uint64 `json:"seq"`
	CreatedAt string `json:"created_at"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := s.authService.Register(req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, errors.MapToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{AccessToken: string(token), TokenType: "bearer"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := s.authService.Login(req.Email, req.Password)
	if err != nil {
		writeError(w, errors.MapToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: string(token), TokenType: "bearer"})
}

func (s *Server) handleCreatePersonalChat(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}
	var req createPersonalChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PeerID == "" {
		writeError(w, http.StatusBadRequest, "peer_id is required")
		return
	}
	chat, err := s.chatService.CreatePersonalChat(callerID, req.PeerID)
	if err != nil {
		writeError(w, errors.MapToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, toChatResponse(chat))
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}
	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	chat, err := s.chatService.CreateGroup(req.Name, callerID)
	if err != nil {
		writeError(w, errors.MapToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, toChatResponse(chat))
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	chatID, err := chatIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat_id")
		return
	}
	var req addMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if err := s.chatService.AddMember(chatID, req.UserID); err != nil {
		writeError(w, errors.MapToHTTPStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	chatID, err := chatIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat_id")
		return
	}
	userID := pathVar(r, "user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if err := s.chatService.RemoveMember(chatID, userID); err != nil {
		writeError(w, errors.MapToHTTPStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}
	chatID, err := chatIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat_id")
		return
	}
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Body == "" {
		writeError(w, http.StatusBadRequest, "body is required")
		return
	}
	message, err := s.chatService.SendMessage(r.Context(), chatID, callerID, req.Body)
	if err != nil {
		writeError(w, errors.MapToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, toMessageResponse(message))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	chatID, err := chatIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat_id")
		return
	}

	var beforeSeq *uint64
	if raw := r.URL.Query().Get("before"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid before cursor")
			return
		}
		beforeSeq = lo.ToPtr(parsed)
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	messages, err := s.chatService.GetHistory(chatID, beforeSeq, limit)
	if err != nil {
		writeError(w, errors.MapToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(messages, func(m domain.Message, _ int) messageResponse {
		return toMessageResponse(m)
	}))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Latest())
}

func chatIDFromPath(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(pathVar(r, "chat_id"))
}

func pathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

func toChatResponse(chat domain.Chat) chatResponse {
	return chatResponse{
		ID:        chat.ID.String(),
		Kind:      string(chat.Kind),
		Name:      chat.Name,
		CreatorID: chat.CreatorID,
		Members:   chat.Members,
		CreatedAt: chat.CreatedAt.Format(time.RFC3339),
	}
}

func toMessageResponse(message domain.Message) messageResponse {
	return messageResponse{
		ID:        message.ID.String(),
		ChatID:    message.ChatID.String(),
		SenderID:  message.SenderID,
		Body:      message.Body,
		Seq:       message.Seq,
		CreatedAt: message.CreatedAt.Format(time.RFC3339Nano),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
