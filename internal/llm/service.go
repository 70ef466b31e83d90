package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/RichardoC/aip-chat/internal/canned"
	"github.com/RichardoC/aip-chat/internal/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// Responder produces the assistant's reply to the latest user message.
// history holds the earlier messages of the chat, oldest first.
type Responder interface {
	Reply(ctx context.Context, history []models.Message, msg models.Message) (string, error)
}

const systemPrompt = `You are AIP Genius, an assistant for intellectual property professionals.
Answer questions about trademarks, patents, copyright and related filings clearly and concisely.
Point out when a question depends on jurisdiction, and never present your answer as formal legal advice.`

const replyTimeout = 30 * time.Second

// Service answers through an OpenAI-compatible endpoint such as Ollama.
type Service struct {
	llm llms.Model
}

func New(baseURL, token, model string) (*Service, error) {
	llm, err := openai.New(
		openai.WithToken(token),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, err
	}
	return &Service{llm: llm}, nil
}

func (s *Service) Reply(ctx context.Context, history []models.Message, msg models.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()

	completion, err := llms.GenerateFromSinglePrompt(ctx, s.llm, buildPrompt(history, msg))
	if err != nil {
		return "", fmt.Errorf("failed to generate completion: %w", err)
	}

	reply := strings.TrimSpace(completion)
	if reply == "" {
		return "", fmt.Errorf("empty completion")
	}
	return reply, nil
}

func buildPrompt(history []models.Message, msg models.Message) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nConversation history:\n")
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	fmt.Fprintf(&b, "\nCurrent message:\n%s: %s\n\nResponse:", msg.Role, msg.Content)
	return b.String()
}

// Canned replies with one of the stock assistant responses.
type Canned struct{}

func (Canned) Reply(ctx context.Context, history []models.Message, msg models.Message) (string, error) {
	return canned.Pick(), nil
}

// Fallback tries Primary and answers from Canned when it fails.
type Fallback struct {
	Primary Responder
	Logger  *zap.Logger
}

func (f Fallback) Reply(ctx context.Context, history []models.Message, msg models.Message) (string, error) {
	reply, err := f.Primary.Reply(ctx, history, msg)
	if err == nil {
		return reply, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if f.Logger != nil {
		f.Logger.Warn("LLM unavailable, using canned reply",
			zap.String("chat_id", msg.ChatID),
			zap.Error(err))
	}
	return Canned{}.Reply(ctx, history, msg)
}
