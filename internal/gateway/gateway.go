// Package gateway is the network boundary for chat operations. When the
// backend cannot be reached it answers locally instead, so callers always
// get a usable result.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/RichardoC/aip-chat/internal/canned"
	"github.com/RichardoC/aip-chat/internal/models"
	"github.com/RichardoC/aip-chat/internal/transport"
	"go.uber.org/zap"
)

// Gateway is what the chat session needs from the backend.
type Gateway interface {
	CreateChat(ctx context.Context) (models.Chat, error)
	SendMessage(ctx context.Context, chatID, content string) (models.Message, error)
	FetchChats(ctx context.Context) ([]models.Chat, error)
	FetchChat(ctx context.Context, chatID string) (*models.Chat, error)
}

// Delays are the simulated latencies of the offline responder.
type Delays struct {
	SendMessage time.Duration
	CreateChat  time.Duration
	FetchChats  time.Duration
	FetchChat   time.Duration
}

func DefaultDelays() Delays {
	return Delays{
		SendMessage: 1200 * time.Millisecond,
		CreateChat:  300 * time.Millisecond,
		FetchChats:  200 * time.Millisecond,
	}
}

// ErrMalformed marks a 2xx response whose payload is not a usable result.
var ErrMalformed = errors.New("malformed response")

// checkChat rejects chats without an id or creation time and fills in the
// defaults a backend may leave out.
func checkChat(c *models.Chat) error {
	if c.ID == "" {
		return fmt.Errorf("%w: chat has no id", ErrMalformed)
	}
	if c.CreatedAt.IsZero() {
		return fmt.Errorf("%w: chat %s has no createdAt", ErrMalformed, c.ID)
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	if c.Title == "" {
		c.Title = models.DefaultTitle
	}
	if c.Messages == nil {
		c.Messages = []models.Message{}
	}
	return nil
}

func checkReply(m *models.Message, chatID string) error {
	switch {
	case m.ID == "":
		return fmt.Errorf("%w: reply has no id", ErrMalformed)
	case m.Role != models.RoleAssistant:
		return fmt.Errorf("%w: reply role %q", ErrMalformed, m.Role)
	case m.CreatedAt.IsZero():
		return fmt.Errorf("%w: reply %s has no createdAt", ErrMalformed, m.ID)
	}
	if m.ChatID == "" {
		m.ChatID = chatID
	}
	return nil
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

type sendMessageResponse struct {
	Message models.Message `json:"message"`
}

// HTTPGateway talks to the chat backend over JSON.
type HTTPGateway struct {
	client *transport.Client
	delays Delays
	logger *zap.Logger
}

func NewHTTPGateway(client *transport.Client, delays Delays, logger *zap.Logger) *HTTPGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPGateway{client: client, delays: delays, logger: logger}
}

// CreateChat asks the backend for a new chat, or makes one up offline.
func (g *HTTPGateway) CreateChat(ctx context.Context) (models.Chat, error) {
	var chat models.Chat
	err := g.client.Do(ctx, http.MethodPost, "/chats", nil, &chat)
	if err == nil {
		err = checkChat(&chat)
	}
	if err == nil {
		return chat, nil
	}

	g.fallback("create_chat", err)
	if err := sleep(ctx, g.delays.CreateChat); err != nil {
		return models.Chat{}, err
	}
	return models.NewChat(models.Now()), nil
}

// SendMessage posts the user's content and returns the assistant's reply.
func (g *HTTPGateway) SendMessage(ctx context.Context, chatID, content string) (models.Message, error) {
	var resp sendMessageResponse
	path := "/chats/" + url.PathEscape(chatID) + "/messages"
	err := g.client.Do(ctx, http.MethodPost, path, sendMessageRequest{Content: content}, &resp)
	if err == nil {
		err = checkReply(&resp.Message, chatID)
	}
	if err == nil {
		return resp.Message, nil
	}

	g.fallback("send_message", err)
	if err := sleep(ctx, g.delays.SendMessage); err != nil {
		return models.Message{}, err
	}
	return models.NewMessage(chatID, models.RoleAssistant, canned.Pick()), nil
}

// FetchChats lists the backend's chats. Offline it returns nothing and the
// local cache stays authoritative.
func (g *HTTPGateway) FetchChats(ctx context.Context) ([]models.Chat, error) {
	var chats []models.Chat
	err := g.client.Do(ctx, http.MethodGet, "/chats", nil, &chats)
	if err == nil {
		valid := make([]models.Chat, 0, len(chats))
		for i := range chats {
			if cerr := checkChat(&chats[i]); cerr != nil {
				g.logger.Warn("Dropping malformed chat from backend", zap.Error(cerr))
				continue
			}
			valid = append(valid, chats[i])
		}
		return valid, nil
	}

	g.fallback("fetch_chats", err)
	if err := sleep(ctx, g.delays.FetchChats); err != nil {
		return nil, err
	}
	return []models.Chat{}, nil
}

// FetchChat returns nil when the chat does not exist or the backend is offline.
func (g *HTTPGateway) FetchChat(ctx context.Context, chatID string) (*models.Chat, error) {
	var chat models.Chat
	err := g.client.Do(ctx, http.MethodGet, "/chats/"+url.PathEscape(chatID), nil, &chat)
	if err == nil {
		err = checkChat(&chat)
	}
	if err == nil {
		return &chat, nil
	}

	if !transport.IsStatus(err, http.StatusNotFound) {
		g.fallback("fetch_chat", err)
	}
	if err := sleep(ctx, g.delays.FetchChat); err != nil {
		return nil, err
	}
	return nil, nil
}

func (g *HTTPGateway) fallback(op string, err error) {
	g.logger.Warn("Backend unavailable, answering offline",
		zap.String("op", op),
		zap.Error(err))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
