package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/defi-rag-assistant/server/internal/agent/model"
	errx "github.com/defi-rag-assistant/server/internal/core/error"
	logx "github.com/defi-rag-assistant/server/pkg/logger"
)

const maxRequestBody = 1 << 20

// Answerer runs one query through the pipeline.
type Answerer interface {
	Invoke(ctx context.Context, in model.QueryInput) (string, error)
}

// SessionMemory reads and evicts what the answer stage recorded for a session.
type SessionMemory interface {
	History(ctx context.Context, sessionID string) (*model.MemoryHistory, error)
	Evict(ctx context.Context, sessionID string) error
}

// ChatRequest is the body of POST /api/chat. History roles must be user or assistant.
type ChatRequest struct {
	Message   string                   `json:"message"`
	History   []model.ConversationTurn `json:"history,omitempty"`
	SessionID string                   `json:"session_id,omitempty"`
}

// ChatResponse is returned when a query was answered.
type ChatResponse struct {
	Success   bool   `json:"success"`
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

// MemoryMessage is one recorded memory entry.
type MemoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MemoryResponse is returned by GET /api/sessions/{sessionID}/memory.
type MemoryResponse struct {
	SessionID string          `json:"session_id"`
	Count     int             `json:"count"`
	Messages  []MemoryMessage `json:"messages"`
}

// ChatHandler serves the chat and session memory routes.
type ChatHandler struct {
	answerer Answerer
	memory   SessionMemory
}

func NewChatHandler(answerer Answerer, memory SessionMemory) *ChatHandler {
	return &ChatHandler{answerer: answerer, memory: memory}
}

// RegisterRoutes mounts the chat routes on r.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/chat", h.Chat)
	r.Get("/api/sessions/{sessionID}/memory", h.GetMemory)
	r.Delete("/api/sessions/{sessionID}/memory", h.DeleteMemory)
}

// Chat answers one message. A session id is generated when the client sends none.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			err = fmt.Errorf("empty request body")
		}
		Error(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		Error(w, http.StatusBadRequest, "Invalid request", "message is required")
		return
	}

	if err := validateHistory(req.History); err != nil {
		Error(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	answer, err := h.answerer.Invoke(r.Context(), model.QueryInput{
		SessionID: sessionID,
		Query:     req.Message,
		History:   req.History,
	})
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("Chat API error")
		Error(w, http.StatusInternalServerError, errx.PipelineErrorMessage, err.Error())
		return
	}

	JSON(w, http.StatusOK, ChatResponse{
		Success:   true,
		Response:  answer,
		SessionID: sessionID,
	})
}

// GetMemory lists what the answer stage recorded for a session.
func (h *ChatHandler) GetMemory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	history, err := h.memory.History(r.Context(), sessionID)
	if err != nil {
		Error(w, errx.StatusOf(err), "Failed to load memory", err.Error())
		return
	}

	resp := MemoryResponse{
		SessionID: sessionID,
		Messages:  make([]MemoryMessage, 0, len(history.Messages)),
	}
	for _, m := range history.Messages {
		if m == nil {
			continue
		}
		resp.Messages = append(resp.Messages, MemoryMessage{Role: string(m.Role), Content: m.Content})
	}
	resp.Count = len(resp.Messages)

	JSON(w, http.StatusOK, resp)
}

// DeleteMemory evicts a session's memory.
func (h *ChatHandler) DeleteMemory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.memory.Evict(r.Context(), sessionID); err != nil {
		Error(w, errx.StatusOf(err), "Failed to clear memory", err.Error())
		return
	}

	logx.Info().Str("session_id", sessionID).Msg("Session memory evicted")
	w.WriteHeader(http.StatusNoContent)
}

func validateHistory(history []model.ConversationTurn) error {
	for i, turn := range history {
		switch turn.Role {
		case string(schema.User), string(schema.Assistant):
		default:
			return fmt.Errorf("history[%d]: unsupported role %q", i, turn.Role)
		}
	}
	return nil
}
