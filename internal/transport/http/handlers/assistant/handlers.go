package assistanthandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrcopilot/internal/domain/assistant"
	"hrcopilot/internal/transport/http/api"
	"hrcopilot/internal/transport/http/middleware"
	"hrcopilot/internal/transport/http/shared"
)

type Handler struct {
	Service *assistant.Service
}

func NewHandler(service *assistant.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
}

type chatPayload struct {
	SessionID  string `json:"sessionId"`
	Message    string `json:"message"`
	EmployeeID string `json:"empId"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload chatPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}

	reply, err := h.Service.Chat(r.Context(), assistant.ChatInput{
		SessionID:  payload.SessionID,
		Message:    payload.Message,
		EmployeeID: payload.EmployeeID,
	})
	if errors.Is(err, assistant.ErrEmptyMessage) {
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "message", Reason: "is required"}})
		return
	}
	if err != nil {
		slog.Error("chat failed", "err", err, "requestId", requestID)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", requestID)
		return
	}
	api.Success(w, reply, requestID)
}
