package handlers

import (
	"net/http"

	"companion-backend/internal/models"
	"companion-backend/internal/services"

	"go.uber.org/zap"
)

type ChatbotHandler struct {
	Conversations *services.ConversationService
	Logger        *zap.Logger
	MaxBodyBytes  int64
}

func NewChatbotHandler(conversations *services.ConversationService, logger *zap.Logger) *ChatbotHandler {
	return &ChatbotHandler{Conversations: conversations, Logger: loggerOrNop(logger)}
}

type chatRequest struct {
	UserID     string `json:"user_id"`
	Msg        string `json:"msg"`
	NewSession bool   `json:"new_session"`
}

type quizRequest struct {
	UserID  string               `json:"user_id"`
	Msg     string               `json:"msg"`
	History []models.ChatMessage `json:"history"`
}

type quizResponse struct {
	envelope
	History []models.ChatMessage `json:"history"`
}

// Chat answers one chat message and logs the exchange
func (h *ChatbotHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, h.MaxBodyBytes, &req, "user_id", "msg"); err != nil {
		writeError(w, h.Logger, err)
		return
	}

	reply, err := h.Conversations.Chat(r.Context(), req.UserID, req.Msg, req.NewSession)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(reply))
}

// Quiz runs one memory-quiz round. The result is "end" once the score was
// stored.
func (h *ChatbotHandler) Quiz(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if err := decodeJSON(w, r, h.MaxBodyBytes, &req, "user_id"); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	for _, m := range req.History {
		switch m.Role {
		case models.RoleUser, models.RoleAssistant:
		default:
			writeError(w, h.Logger, invalid("history role must be user or assistant"))
			return
		}
	}

	turn, err := h.Conversations.Quiz(r.Context(), req.UserID, req.Msg, req.History)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	resp := quizResponse{envelope: ok(turn.Reply), History: turn.History}
	if turn.Ended {
		resp.Result = resultEnd
	}
	writeJSON(w, http.StatusOK, resp)
}
