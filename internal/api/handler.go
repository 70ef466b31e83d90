package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/RichardoC/aip-chat/internal/db"
	"github.com/RichardoC/aip-chat/internal/llm"
	"github.com/RichardoC/aip-chat/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// historyLimit bounds how many earlier messages are given to the responder.
const historyLimit = 20

type Handler struct {
	db     *db.Database
	llm    llm.Responder
	tokens *TokenIssuer
	logger *zap.Logger
}

func NewHandler(database *db.Database, responder llm.Responder, tokens *TokenIssuer, logger *zap.Logger) *Handler {
	return &Handler{
		db:     database,
		llm:    responder,
		tokens: tokens,
		logger: logger,
	}
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type MessageRequest struct {
	Content string `json:"content"`
}

type MessageResponse struct {
	Message models.Message `json:"message"`
}

func (h *Handler) CreateChat(w http.ResponseWriter, r *http.Request) {
	chat := models.NewChat(models.Now())
	if err := h.db.CreateChat(r.Context(), chat); err != nil {
		h.logger.Error("Failed to create chat", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create chat", r))
		return
	}

	h.logger.Debug("Created chat", zap.String("chat_id", chat.ID))
	writeJSON(w, http.StatusCreated, chat)
}

func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.db.GetChats(r.Context())
	if err != nil {
		h.logger.Error("Failed to get chats",
			zap.Error(err),
			zap.String("path", r.URL.Path))
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to get chats", r))
		return
	}

	h.logger.Debug("Retrieved chats", zap.Int("count", len(chats)))
	writeJSON(w, http.StatusOK, chats)
}

func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	chat, err := h.db.GetChat(r.Context(), chi.URLParam(r, "chatId"))
	if err != nil {
		h.handleDBError(w, r, err, "Chat not found")
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

func (h *Handler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	if err := h.db.DeleteChat(r.Context(), chi.URLParam(r, "chatId")); err != nil {
		h.handleDBError(w, r, err, "Chat not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendMessage stores the user's message, asks the responder for a reply
// and stores that too.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := chi.URLParam(r, "chatId")

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Content is required", r))
		return
	}

	chat, err := h.db.GetChat(ctx, chatID)
	if err != nil {
		h.handleDBError(w, r, err, "Chat not found")
		return
	}

	history, err := h.db.GetHistory(ctx, chatID, historyLimit)
	if err != nil {
		h.handleDBError(w, r, err, "Chat not found")
		return
	}

	userMsg := models.NewMessage(chatID, models.RoleUser, content)
	title := models.DeriveTitle(chat.Title, content)
	if title == chat.Title {
		title = ""
	}
	if err := h.db.SaveMessage(ctx, userMsg, title); err != nil {
		h.handleDBError(w, r, err, "Chat not found")
		return
	}

	text, err := h.llm.Reply(ctx, history, userMsg)
	if err != nil {
		h.logger.Error("Failed to generate reply",
			zap.String("chat_id", chatID),
			zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResp("LLM_ERROR", "Failed to generate reply", r))
		return
	}

	reply := models.NewMessage(chatID, models.RoleAssistant, text)
	if err := h.db.SaveMessage(ctx, reply, ""); err != nil {
		h.handleDBError(w, r, err, "Chat not found")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: reply})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleDBError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	if errors.Is(err, db.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", notFound, r))
		return
	}
	h.logger.Error("Database error",
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path))
	writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) ErrorResponse {
	return ErrorResponse{
		Error: APIError{
			Code:      code,
			Message:   message,
			RequestID: middlewareRequestID(r),
		},
	}
}
