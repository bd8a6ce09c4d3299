package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quantumchem/quantumchem-backend/internal/http/response"
	"github.com/quantumchem/quantumchem-backend/internal/service"
)

type ChatHandler struct {
	chatSvc service.ChatServiceInterface
}

func NewChatHandler(chatSvc service.ChatServiceInterface) *ChatHandler {
	return &ChatHandler{chatSvc: chatSvc}
}

func (h *ChatHandler) Reply(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}

	reply, err := h.chatSvc.Reply(r.Context(), req.Message)
	switch {
	case err == nil:
		response.JSON(w, r, http.StatusOK, map[string]string{"reply": reply})
	case errors.Is(err, service.ErrEmptyMessage):
		response.Error(w, r, http.StatusBadRequest, "VALIDATION", "message is required", nil)
	case errors.Is(err, service.ErrChatDisabled):
		response.Error(w, r, http.StatusServiceUnavailable, "CHAT_DISABLED", "chat is not available", nil)
	case errors.Is(err, service.ErrChatUnavailable):
		response.Error(w, r, http.StatusBadGateway, "CHAT_UNAVAILABLE", "the assistant could not answer right now", nil)
	default:
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "chat failed", nil)
	}
}
