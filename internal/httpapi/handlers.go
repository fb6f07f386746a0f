package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/plotpilot/server/internal/assistant/connection"
	"github.com/plotpilot/server/internal/assistant/model"
	errx "github.com/plotpilot/server/internal/core/error"
	logx "github.com/plotpilot/server/pkg/logger"
)

// Assistant is the slice of the orchestrator the HTTP layer needs.
type Assistant interface {
	Chat(ctx context.Context, farmID, blockID string, in model.ChatInput) (*model.ChatResult, error)
	Confirm(ctx context.Context, farmID, blockID, actionID string, approved bool) (*model.ConfirmResult, error)
}

// HubManager is the slice of the connection manager the HTTP layer needs.
type HubManager interface {
	Connect(ctx context.Context, farmID, blockID string, in connection.ConnectInput) (*connection.Status, error)
	Disconnect(ctx context.Context, farmID, blockID string) error
	GetStatus(ctx context.Context, farmID, blockID string) (*connection.Status, error)
}

// Handlers is thin glue: decode, delegate, encode. The history repository
// makes this layer the caller that owns the conversation cap.
type Handlers struct {
	assistant Assistant
	hubs      HubManager
	history   model.ConversationRepository
}

func NewHandlers(assistant Assistant, hubs HubManager, history model.ConversationRepository) *Handlers {
	return &Handlers{assistant: assistant, hubs: hubs, history: history}
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type chatResponse struct {
	ConversationID string `json:"conversation_id"`
	*model.ChatResult
}

func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	farmID, blockID := pathIDs(r)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	history, err := h.history.LoadHistory(r.Context(), conversationID)
	if err != nil {
		logx.Warn().Err(err).Str("conversation_id", conversationID).Msg("history load failed, continuing without it")
		history = nil
	}

	result, err := h.assistant.Chat(r.Context(), farmID, blockID, model.ChatInput{
		ConversationID: conversationID,
		Message:        req.Message,
		History:        history,
	})
	if err != nil {
		logx.Error().Err(err).Str("block_id", blockID).Msg("chat turn failed")
		writeError(w, errx.StatusOf(err, http.StatusInternalServerError), "chat turn failed")
		return
	}

	if err := h.history.AppendMessages(r.Context(), conversationID,
		model.ChatMessage{Role: model.RoleUser, Content: req.Message},
		model.ChatMessage{Role: model.RoleModel, Content: result.Message},
	); err != nil {
		logx.Warn().Err(err).Str("conversation_id", conversationID).Msg("history append failed")
	}

	writeJSON(w, http.StatusOK, chatResponse{ConversationID: conversationID, ChatResult: result})
}

type confirmRequest struct {
	ActionID string `json:"action_id"`
	Approved bool   `json:"approved"`
}

func (h *Handlers) Confirm(w http.ResponseWriter, r *http.Request) {
	farmID, blockID := pathIDs(r)

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ActionID == "" {
		writeError(w, http.StatusBadRequest, "action_id is required")
		return
	}

	result, err := h.assistant.Confirm(r.Context(), farmID, blockID, req.ActionID, req.Approved)
	if err != nil {
		logx.Error().Err(err).Str("action_id", req.ActionID).Msg("confirm failed")
		writeError(w, errx.StatusOf(err, http.StatusInternalServerError), "confirm failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) ConnectHub(w http.ResponseWriter, r *http.Request) {
	farmID, blockID := pathIDs(r)

	var req connection.ConnectInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Endpoint == "" || req.Port <= 0 || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "endpoint, port, email and password are required")
		return
	}

	status, err := h.hubs.Connect(r.Context(), farmID, blockID, req)
	if err != nil {
		// Connect errors are administrative and user-actionable; pass the
		// message through.
		writeError(w, errx.StatusOf(err, http.StatusBadGateway), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handlers) DisconnectHub(w http.ResponseWriter, r *http.Request) {
	farmID, blockID := pathIDs(r)
	if err := h.hubs.Disconnect(r.Context(), farmID, blockID); err != nil {
		writeError(w, errx.StatusOf(err, http.StatusInternalServerError), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"connection_status": model.HubStatusDisconnected})
}

func (h *Handlers) HubStatus(w http.ResponseWriter, r *http.Request) {
	farmID, blockID := pathIDs(r)
	status, err := h.hubs.GetStatus(r.Context(), farmID, blockID)
	if err != nil {
		writeError(w, errx.StatusOf(err, http.StatusInternalServerError), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func pathIDs(r *http.Request) (farmID, blockID string) {
	return chi.URLParam(r, "farmID"), chi.URLParam(r, "blockID")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Warn().Err(err).Msg("response encode failed")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
